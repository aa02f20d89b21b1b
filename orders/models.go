package orders

import (
	"fmt"
	"time"
)

// Delivery statuses kept in the notification row. Invalid recipients
// stay pending so a cadastre fix re-arms the send; hard failures are
// parked as failed for operator review.
const (
	StatusPending = "P"
	StatusSent    = "E"
	StatusFailed  = "F"
)

// Ref identifies one pending sales-order notification.
type Ref struct {
	Estab  int
	Series string
	Number int
}

// Key is the dispatch identity of the notification row.
func (r Ref) Key() string {
	return fmt.Sprintf("%d-%s-%d", r.Estab, r.Series, r.Number)
}

// Header carries the order and client data shown in the notification.
type Header struct {
	Estab      int
	Status     string
	Number     string
	IssuedAt   time.Time
	ValidUntil time.Time
	ExpectedAt time.Time
	Situation  string
	ClientName string
	RawPhone   string
	Address    string
	Total      float64
}

// Item is one order line.
type Item struct {
	Seq         int
	Description string
	Brand       string
	Quantity    float64
	Unit        string
	UnitPrice   float64
	Total       float64
}

// Order is a fully loaded sales order ready for rendering.
type Order struct {
	Header Header
	Items  []Item
}
