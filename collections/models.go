package collections

import "time"

// Receivable is one open duplicata owed by a client.
type Receivable struct {
	DocumentID string
	ClientID   string
	ClientName string
	RawPhone   string
	DueDate    time.Time
	Amount     float64
}

// Category is one collection reminder bucket: a name (which doubles as
// the send-log category) plus the due-date range it covers.
type Category struct {
	Name string
	From time.Time
	To   time.Time
}

// ActiveCategories returns the reminder buckets in effect for the
// reference day. Only the due-today reminder is live; past-due tiers can
// be reintroduced here with their own ranges.
func ActiveCategories(today time.Time) []Category {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	return []Category{
		{Name: "vence_hoje", From: day, To: day},
	}
}
