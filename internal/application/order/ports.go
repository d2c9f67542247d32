package order

import "time"

type IDGenerator interface {
	NewID() string
}

// NumberGenerator produces the human readable order number shown on receipts.
type NumberGenerator interface {
	NewNumber(now time.Time) string
}
