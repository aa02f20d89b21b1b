package payables

import "time"

// Payable is one open duplicata the cooperative owes a supplier.
type Payable struct {
	SupplierID   string
	SupplierName string
	DocumentID   string
	IssuedAt     time.Time
	DueDate      time.Time
	Balance      float64
}
