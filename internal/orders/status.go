package orders

type Status string

const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// An order is written as completed; the only further transition is an
// administrative cancel. Terminal states accept nothing.
var validNext = map[Status]map[Status]bool{
	StatusCompleted: {StatusCancelled: true},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
