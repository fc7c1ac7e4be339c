package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/prasidya/minimart/internal/catalog"
	"github.com/prasidya/minimart/internal/config"
	kafkax "github.com/prasidya/minimart/internal/kafka"
	"github.com/prasidya/minimart/internal/orders"
	"github.com/prasidya/minimart/internal/postgres"
	"github.com/prasidya/minimart/internal/redisx"
	"github.com/prasidya/minimart/internal/stockwatch"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockLow, 1024)
	prod.Start(ctx)

	svc := &stockwatch.Service{
		Catalog:     &catalog.Repo{DB: db},
		Redis:       rdb,
		Producer:    prod,
		Threshold:   cfg.LowStockThreshold,
		ServiceName: cfg.ServiceName + "-stockwatch",
	}

	group := getenv("STOCKWATCH_GROUP", "stockwatch-svc")
	workers := atoiOr(os.Getenv("STOCKWATCH_WORKERS"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicCheckoutCompleted, workers)

	go func() {
		log.Printf("stockwatch consumer started: group=%s topic=%s workers=%d",
			group, orders.TopicCheckoutCompleted, workers)
		if err := cons.Start(ctx, svc.HandleCheckoutCompleted); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Println("shutting down consumer...")
	case <-ctx.Done():
	}
	prod.Close()
	prod.WaitClosed()
	cancel()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
