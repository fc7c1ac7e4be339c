package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/prasidya/minimart/internal/cart"
	"github.com/prasidya/minimart/internal/catalog"
	"github.com/prasidya/minimart/internal/checkout"
	"github.com/prasidya/minimart/internal/config"
	"github.com/prasidya/minimart/internal/httpx"
	kafkax "github.com/prasidya/minimart/internal/kafka"
	"github.com/prasidya/minimart/internal/metrics"
	"github.com/prasidya/minimart/internal/orders"
	"github.com/prasidya/minimart/internal/postgres"
	"github.com/prasidya/minimart/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	if cfg.MigrationsDir != "" {
		if err := postgres.Migrate(cfg.PostgresDSN, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicCheckoutCompleted, 1024)
	prod.Start(ctx)

	// Catalog + cart
	catalogRepo := &catalog.Repo{DB: db}
	cached := &catalog.Cached{Source: catalogRepo, Redis: rdb}
	store := &cart.Store{
		Redis:   rdb,
		Durable: &cart.Repo{DB: db},
		Catalog: cached,
		TTL:     cfg.CartSessionTTL,
	}

	// Checkout engine
	svc := &checkout.Service{
		Committer: &checkout.Repo{DB: db, LockWait: cfg.CheckoutLockWait},
		Cart:      store,
		Cache:     cached,
		Producer:  prod,
		Metrics:   metrics.NewCheckout("api"),
		Service:   cfg.ServiceName,
	}

	// Handlers
	router := httpx.NewRouter()
	(&httpx.CartHandler{Store: store, Catalog: cached}).Register(router)
	(&httpx.CheckoutHandler{Service: svc, Cart: store}).Register(router)
	(&httpx.OrdersHandler{Repo: &orders.Repo{DB: db}}).Register(router)
	(&httpx.ProductsHandler{Repo: catalogRepo, Cache: cached}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush buffered events, then close the writer
	prod.WaitClosed()
}
