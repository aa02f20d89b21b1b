// Package dispatch implements the idempotent delivery engine shared by
// every notification workflow: normalize the recipient, skip what was
// already sent, render, deliver, and record the outcome. Per-candidate
// failures become counters; they never abort the rest of the batch.
package dispatch

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"coopflow/gateway"
	"coopflow/phone"
)

// Candidate is one pending unit of outbound work, rebuilt from the source
// of truth on every poll cycle.
type Candidate struct {
	EntityID    string
	DisplayName string
	RawPhone    string
	// DocumentIDs are the idempotency keys covered by one delivery. A
	// grouped send marks all of them, or none. Empty means the entity id
	// itself is the key.
	DocumentIDs []string
}

// Keys returns the idempotency keys this candidate's delivery covers.
func (c Candidate) Keys() []string {
	if len(c.DocumentIDs) == 0 {
		return []string{c.EntityID}
	}
	return c.DocumentIDs
}

// Document is a binary attachment delivered via the gateway.
type Document struct {
	Data     []byte
	MimeType string
	FileName string
	Caption  string
}

// Message is the rendered payload for one candidate: either plain text or
// a document.
type Message struct {
	Text     string
	Document *Document
}

// Summary aggregates one workflow run. Every workflow returns this shape
// so operational tooling can treat them uniformly.
type Summary struct {
	Total            int
	Sent             int
	AlreadySent      int
	InvalidRecipient int
	Failed           int
}

// Store answers and records "already sent" for a dispatch key.
// Implementations degrade read failures to "not sent": re-sending is
// preferred over blocking forever.
type Store interface {
	HasSent(ctx context.Context, entityID, category, period string) (bool, error)
	MarkSent(ctx context.Context, entityID, category, period string, at time.Time) error
}

// Loader is implemented by file-backed stores that read their backing
// file on demand. Workflows reload before each run so state survives
// process restarts.
type Loader interface {
	Load() error
}

// Flusher is implemented by file-backed stores that persist on demand.
// The runner flushes after every successful mark to keep the at-most-once
// window narrow.
type Flusher interface {
	Flush() error
}

// ErrorRecorder is implemented by stores that keep failed-attempt audit
// records. Such records never gate future sends.
type ErrorRecorder interface {
	RecordError(ctx context.Context, entityID, category, period, detail string) error
}

// Sender is the delivery contract the runner depends on; *gateway.Client
// satisfies it.
type Sender interface {
	SendText(ctx context.Context, number, text string) (map[string]any, error)
	SendMedia(ctx context.Context, p gateway.MediaParams) (map[string]any, error)
}

// Runner drives one workflow's candidates through the delivery state
// machine.
type Runner struct {
	Category string
	Store    Store
	Sender   Sender
	// Render produces the outbound message for one candidate.
	Render func(c Candidate) (Message, error)
	// Alerts, when set, is notified about invalid recipients.
	Alerts *AlertNotifier
	// AlertContext labels alert messages (e.g. "Pedido", "NF-e").
	AlertContext string
	// Delay, when positive, is a blocking pause after every attempted
	// send, successful or not.
	Delay    time.Duration
	AreaCode string

	now   func() time.Time
	sleep func(d time.Duration)
}

func (r *Runner) clock() func() time.Time {
	if r.now == nil {
		return time.Now
	}
	return r.now
}

// WithClock overrides the runner's notion of now. Test hook.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// WithSleep overrides the inter-send pause. Test hook.
func (r *Runner) WithSleep(sleep func(time.Duration)) *Runner {
	r.sleep = sleep
	return r
}

// Run processes candidates sequentially and returns the aggregate
// summary. period is the idempotency period for this cycle ("" for
// single-shot categories).
func (r *Runner) Run(ctx context.Context, period string, candidates []Candidate) Summary {
	runID := uuid.NewString()
	now := r.clock()
	pause := r.sleep
	if pause == nil {
		pause = time.Sleep
	}

	var sum Summary
	for _, c := range candidates {
		if c.EntityID == "" {
			continue
		}
		sum.Total++

		if r.alreadySent(ctx, c, period) {
			sum.AlreadySent++
			continue
		}

		number, ok := phone.Normalize(c.RawPhone, r.AreaCode)
		if !ok {
			sum.InvalidRecipient++
			log.Printf("[%s] run %s: telefone inválido para %s (%q)", r.Category, runID, c.EntityID, c.RawPhone)
			r.alert(ctx, c, period)
			continue
		}

		msg, err := r.Render(c)
		if err != nil {
			sum.Failed++
			log.Printf("[%s] run %s: render %s: %v", r.Category, runID, c.EntityID, err)
			continue
		}

		if err := r.deliver(ctx, number, msg); err != nil {
			sum.Failed++
			log.Printf("[%s] run %s: envio %s (%s): %v", r.Category, runID, c.EntityID, number, err)
			r.recordError(ctx, c, period, err)

			var apiErr *gateway.APIError
			if errors.As(err, &apiErr) && apiErr.BadRecipient() {
				r.alert(ctx, c, period)
			}
			if r.Delay > 0 {
				pause(r.Delay)
			}
			continue
		}

		r.markSent(ctx, c, period, now())
		sum.Sent++

		if r.Delay > 0 {
			pause(r.Delay)
		}
	}

	return sum
}

// alreadySent reports whether every key of the candidate is already
// marked for the period. Store read errors count as "not sent".
func (r *Runner) alreadySent(ctx context.Context, c Candidate, period string) bool {
	for _, key := range c.Keys() {
		sent, err := r.Store.HasSent(ctx, key, r.Category, period)
		if err != nil || !sent {
			return false
		}
	}
	return true
}

// markSent records OK for every key, atomically from the caller's view:
// the single delivery already succeeded, so a partial write here only
// risks a duplicate, never a lost send.
func (r *Runner) markSent(ctx context.Context, c Candidate, period string, at time.Time) {
	for _, key := range c.Keys() {
		if err := r.Store.MarkSent(ctx, key, r.Category, period, at); err != nil {
			log.Printf("[%s] marcar envio %s: %v", r.Category, key, err)
		}
	}
	if f, ok := r.Store.(Flusher); ok {
		if err := f.Flush(); err != nil {
			log.Printf("[%s] flush estado: %v", r.Category, err)
		}
	}
}

func (r *Runner) recordError(ctx context.Context, c Candidate, period string, cause error) {
	rec, ok := r.Store.(ErrorRecorder)
	if !ok {
		return
	}
	for _, key := range c.Keys() {
		if err := rec.RecordError(ctx, key, r.Category, period, cause.Error()); err != nil {
			log.Printf("[%s] registrar erro %s: %v", r.Category, key, err)
		}
	}
}

func (r *Runner) alert(ctx context.Context, c Candidate, period string) {
	if r.Alerts == nil {
		return
	}
	r.Alerts.InvalidPhone(ctx, AlertParams{
		Context:    r.AlertContext,
		Identifier: c.EntityID,
		Name:       c.DisplayName,
		RawPhone:   c.RawPhone,
		Keys:       c.Keys(),
		Period:     period,
	})
}

func (r *Runner) deliver(ctx context.Context, number string, msg Message) error {
	if msg.Document != nil {
		_, err := r.Sender.SendMedia(ctx, gateway.MediaParams{
			Number:    number,
			MediaType: "document",
			MimeType:  msg.Document.MimeType,
			Caption:   msg.Document.Caption,
			Media:     base64.StdEncoding.EncodeToString(msg.Document.Data),
			FileName:  msg.Document.FileName,
		})
		return err
	}
	_, err := r.Sender.SendText(ctx, number, msg.Text)
	return err
}
