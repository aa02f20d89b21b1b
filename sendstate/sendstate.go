// Package sendstate persists "already sent" markers for notification
// workflows. Stores are loaded once per run and flushed after every write
// so a crash loses at most the delivery in flight.
package sendstate

import "time"

// Status records the outcome of a delivery attempt.
type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERRO"
)

// Record is the durable outcome for one dispatch key. A terminal OK gates
// future sends of the same (entity, category, period); ERRO never does.
type Record struct {
	Status Status
	SentAt time.Time
	Detail string
}
