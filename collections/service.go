// Package collections reminds clients of duplicatas due today, one
// grouped message per client, inside business hours only. The Postgres
// send log is the durable send-state, so a reminder marked OK is never
// repeated even across restarts.
package collections

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coopflow/dispatch"
	"coopflow/render"
	"coopflow/schedule"
)

// ReceivableSource defines the data access required by the service.
type ReceivableSource interface {
	PendingByCategory(ctx context.Context, q Querier, cat Category) ([]Receivable, error)
}

// Result is the outcome of one collections cycle.
type Result struct {
	Skipped bool
	Items   int
	Clients int
	Summary dispatch.Summary
}

type Service struct {
	pool   Querier
	repo   ReceivableSource
	store  dispatch.Store
	sender dispatch.Sender
	alerts *dispatch.AlertNotifier
	gate   schedule.BusinessHoursGate

	areaCode string
	now      func() time.Time
}

func NewService(pool Querier, repo ReceivableSource, store dispatch.Store, sender dispatch.Sender, alerts *dispatch.AlertNotifier, gate schedule.BusinessHoursGate, areaCode string) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	return &Service{
		pool:     pool,
		repo:     repo,
		store:    store,
		sender:   sender,
		alerts:   alerts,
		gate:     gate,
		areaCode: areaCode,
		now:      time.Now,
	}
}

// WithClock overrides the service's notion of now. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Run processes every active reminder category. Outside business hours
// the whole cycle is skipped with a single gate check.
func (s *Service) Run(ctx context.Context) (Result, error) {
	now := s.now()
	if !s.gate.Allowed(now) {
		return Result{Skipped: true}, nil
	}

	var res Result
	for _, cat := range ActiveCategories(now) {
		items, err := s.repo.PendingByCategory(ctx, s.pool, cat)
		if err != nil {
			return res, fmt.Errorf("collections: fetch %s: %w", cat.Name, err)
		}
		res.Items += len(items)

		groups, order := groupByClient(items)
		res.Clients += len(order)

		candidates := make([]dispatch.Candidate, 0, len(order))
		for _, clientID := range order {
			g := groups[clientID]
			docs := make([]string, 0, len(g))
			for _, it := range g {
				docs = append(docs, it.DocumentID)
			}
			candidates = append(candidates, dispatch.Candidate{
				EntityID:    clientID,
				DisplayName: g[0].ClientName,
				RawPhone:    g[0].RawPhone,
				DocumentIDs: docs,
			})
		}

		runner := &dispatch.Runner{
			Category: cat.Name,
			Store:    s.store,
			Sender:   s.sender,
			Render: func(c dispatch.Candidate) (dispatch.Message, error) {
				return dispatch.Message{Text: reminderText(c.DisplayName, cat.Name, groups[c.EntityID])}, nil
			},
			Alerts:       s.alerts,
			AlertContext: "Cobrança",
			AreaCode:     s.areaCode,
		}

		sum := runner.Run(ctx, "", candidates)
		res.Summary.Total += sum.Total
		res.Summary.Sent += sum.Sent
		res.Summary.AlreadySent += sum.AlreadySent
		res.Summary.InvalidRecipient += sum.InvalidRecipient
		res.Summary.Failed += sum.Failed
	}

	return res, nil
}

// groupByClient merges duplicatas of the same client into one candidate,
// preserving first-seen order for deterministic sends.
func groupByClient(items []Receivable) (map[string][]Receivable, []string) {
	groups := make(map[string][]Receivable)
	var order []string
	for _, it := range items {
		if _, seen := groups[it.ClientID]; !seen {
			order = append(order, it.ClientID)
		}
		groups[it.ClientID] = append(groups[it.ClientID], it)
	}
	return groups, order
}

func reminderText(clientName, category string, items []Receivable) string {
	var title string
	switch {
	case category == "vence_hoje":
		title = "📌 Passando para lembrar você sobre um vencimento de hoje"
	case strings.HasPrefix(category, "a_vencer"):
		title = "📌 Passando para lembrar você sobre um próximo vencimento"
	default:
		title = "⚠️ Aviso importante"
	}

	lines := make([]string, 0, len(items))
	for _, it := range items {
		due := "-"
		if !it.DueDate.IsZero() {
			due = render.Date(it.DueDate)
		}
		lines = append(lines, fmt.Sprintf("• Duplicata %s, vencimento %s, valor %s",
			it.DocumentID, due, render.Money(it.Amount)))
	}
	body := "• (sem itens no momento)"
	if len(lines) > 0 {
		body = strings.Join(lines, "\n")
	}

	name := clientName
	if name == "" {
		name = "Cliente"
	}

	return fmt.Sprintf(
		"Olá, %s! 😊\n\n%s.\n\n%s\n\n"+
			"Caso o pagamento já tenha sido realizado, por favor desconsidere esta mensagem.\n"+
			"Se precisar de algo ou tiver qualquer dúvida, estamos à disposição. 🤝",
		name, title, body,
	)
}
