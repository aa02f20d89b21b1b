package invoices

// Invoice is one pending NF-e notification row.
type Invoice struct {
	AccessKey  string
	Number     string
	Series     string
	Model      string
	ClientID   string
	ClientName string
	RawPhone   string
}

// Delivery statuses kept in the notification row.
const (
	StatusPending = "P"
	StatusSent    = "E"
	StatusFailed  = "F"
)
