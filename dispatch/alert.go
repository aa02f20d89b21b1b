package dispatch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"coopflow/phone"
)

// CategoryInvalidPhone is the reserved send-state category used to
// deduplicate operational alerts about invalid recipient numbers.
const CategoryInvalidPhone = "TI_TELEFONE_INVALIDO"

// AlertParams describes one invalid-recipient alert.
type AlertParams struct {
	Context    string
	Identifier string
	Name       string
	RawPhone   string
	// Keys are the dispatch keys blocked by the invalid number; the alert
	// is deduplicated per key so it is raised once, not every cycle.
	Keys   []string
	Period string
}

// AlertNotifier sends invalid-recipient warnings to the operations
// (TI) WhatsApp number.
type AlertNotifier struct {
	sender Sender
	number string
	store  Store

	now func() time.Time
}

// NewAlertNotifier wires the alert channel. rawPhone is the TI number as
// configured; if it does not normalize it is used as-is. store is the
// dedup state and may be nil to alert on every cycle.
func NewAlertNotifier(sender Sender, rawPhone, areaCode string, store Store) *AlertNotifier {
	number, ok := phone.Normalize(rawPhone, areaCode)
	if !ok {
		number = strings.TrimSpace(rawPhone)
	}
	return &AlertNotifier{
		sender: sender,
		number: number,
		store:  store,
		now:    time.Now,
	}
}

// WithClock overrides the notifier's notion of now. Test hook.
func (a *AlertNotifier) WithClock(now func() time.Time) *AlertNotifier {
	a.now = now
	return a
}

// InvalidPhone warns TI that a candidate could not be reached. Failures
// here are logged and swallowed: the alert channel must never break the
// workflow run.
func (a *AlertNotifier) InvalidPhone(ctx context.Context, p AlertParams) {
	if a == nil || a.number == "" {
		return
	}

	keys := a.pendingKeys(ctx, p)
	if len(keys) == 0 {
		return
	}

	name := p.Name
	if name == "" {
		name = "Cliente não informado"
	}
	raw := p.RawPhone
	if raw == "" {
		raw = "não informado"
	}

	text := fmt.Sprintf(
		"Olá TI! %s %s não foi enviado para %s por inconsistências no número do celular (%s). Verifique!",
		p.Context, p.Identifier, name, raw,
	)

	if _, err := a.sender.SendText(ctx, a.number, text); err != nil {
		log.Printf("[alerta-ti] envio para %s sobre %s %s: %v", a.number, p.Context, p.Identifier, err)
		return
	}

	if a.store != nil {
		at := a.now()
		for _, key := range keys {
			if err := a.store.MarkSent(ctx, key, CategoryInvalidPhone, p.Period, at); err != nil {
				log.Printf("[alerta-ti] marcar aviso %s: %v", key, err)
			}
		}
		if f, ok := a.store.(Flusher); ok {
			if err := f.Flush(); err != nil {
				log.Printf("[alerta-ti] flush estado: %v", err)
			}
		}
	}
}

func (a *AlertNotifier) pendingKeys(ctx context.Context, p AlertParams) []string {
	keys := p.Keys
	if len(keys) == 0 {
		keys = []string{p.Identifier}
	}
	if a.store == nil {
		return keys
	}

	pending := keys[:0:0]
	for _, key := range keys {
		sent, err := a.store.HasSent(ctx, key, CategoryInvalidPhone, p.Period)
		if err != nil || !sent {
			pending = append(pending, key)
		}
	}
	return pending
}
