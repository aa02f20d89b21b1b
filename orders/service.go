// Package orders notifies the client of each freshly invoiced sales
// order, preferably as a PDF summary. Rows whose order data cannot be
// loaded are parked as failed; invalid recipient numbers stay pending
// until the cadastre is fixed.
package orders

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"coopflow/dispatch"
	"coopflow/render"
)

// Category is the send-state category used for operational alerts.
const Category = "pedido"

// maxMessageItems caps the lines shown in the text fallback message.
const maxMessageItems = 5

// OrderSource defines the data access required by the service.
type OrderSource interface {
	PendingRefs(ctx context.Context, q Querier) ([]Ref, error)
	LoadOrder(ctx context.Context, q Querier, ref Ref) (Order, error)
	UpdateStatus(ctx context.Context, q Querier, ref Ref, status string) error
}

// DocumentBuilder renders an order into a PDF document. Optional; when
// absent the service sends the text summary instead.
type DocumentBuilder interface {
	BuildOrderPDF(o Order) (fileName string, pdf []byte, err error)
}

type Service struct {
	pool    Querier
	repo    OrderSource
	builder DocumentBuilder
	sender  dispatch.Sender
	alerts  *dispatch.AlertNotifier

	areaCode string
}

func NewService(pool Querier, repo OrderSource, builder DocumentBuilder, sender dispatch.Sender, alerts *dispatch.AlertNotifier, areaCode string) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	return &Service{
		pool:     pool,
		repo:     repo,
		builder:  builder,
		sender:   sender,
		alerts:   alerts,
		areaCode: areaCode,
	}
}

// statusStore adapts the notification row's status column to the
// dispatch store contract. Delivery failures are parked as failed so the
// row does not loop forever against a broken gateway.
type statusStore struct {
	q    Querier
	repo OrderSource
	refs map[string]Ref
}

func (s statusStore) HasSent(context.Context, string, string, string) (bool, error) {
	return false, nil
}

func (s statusStore) MarkSent(ctx context.Context, key, _, _ string, _ time.Time) error {
	return s.repo.UpdateStatus(ctx, s.q, s.refs[key], StatusSent)
}

func (s statusStore) RecordError(ctx context.Context, key, _, _, _ string) error {
	return s.repo.UpdateStatus(ctx, s.q, s.refs[key], StatusFailed)
}

// Run notifies every pending sales order.
func (s *Service) Run(ctx context.Context) (dispatch.Summary, error) {
	refs, err := s.repo.PendingRefs(ctx, s.pool)
	if err != nil {
		return dispatch.Summary{}, fmt.Errorf("orders: fetch candidates: %w", err)
	}

	var preloadFailed int
	byKey := make(map[string]Ref, len(refs))
	loaded := make(map[string]Order, len(refs))
	candidates := make([]dispatch.Candidate, 0, len(refs))
	for _, ref := range refs {
		order, err := s.repo.LoadOrder(ctx, s.pool, ref)
		if err != nil {
			preloadFailed++
			log.Printf("[pedido] carregar pedido %s: %v", ref.Key(), err)
			if err := s.repo.UpdateStatus(ctx, s.pool, ref, StatusFailed); err != nil {
				log.Printf("[pedido] marcar falha %s: %v", ref.Key(), err)
			}
			continue
		}
		byKey[ref.Key()] = ref
		loaded[ref.Key()] = order
		candidates = append(candidates, dispatch.Candidate{
			EntityID:    ref.Key(),
			DisplayName: order.Header.ClientName,
			RawPhone:    order.Header.RawPhone,
		})
	}

	runner := &dispatch.Runner{
		Category: Category,
		Store:    statusStore{q: s.pool, repo: s.repo, refs: byKey},
		Sender:   s.sender,
		Render: func(c dispatch.Candidate) (dispatch.Message, error) {
			return s.render(loaded[c.EntityID])
		},
		Alerts:       s.alerts,
		AlertContext: "Pedido",
		AreaCode:     s.areaCode,
	}

	sum := runner.Run(ctx, "", candidates)
	sum.Total += preloadFailed
	sum.Failed += preloadFailed
	return sum, nil
}

func (s *Service) render(o Order) (dispatch.Message, error) {
	if s.builder == nil {
		return dispatch.Message{Text: summaryText(o)}, nil
	}

	name, pdf, err := s.builder.BuildOrderPDF(o)
	if err != nil {
		return dispatch.Message{}, err
	}
	return dispatch.Message{Document: &dispatch.Document{
		Data:     pdf,
		MimeType: "application/pdf",
		FileName: name,
		Caption:  "CooperVerê - Novo Pedido Faturado",
	}}, nil
}

// summaryText is the text fallback: order header plus the first lines.
func summaryText(o Order) string {
	h := o.Header

	var b strings.Builder
	fmt.Fprintf(&b, "📦 *Pedido faturado*\n")
	fmt.Fprintf(&b, "*Número:* %s   *Estab:* %d\n", h.Number, h.Estab)
	fmt.Fprintf(&b, "*Situação:* %s\n", h.Situation)
	if !h.IssuedAt.IsZero() {
		fmt.Fprintf(&b, "*Emissão:* %s\n", render.Date(h.IssuedAt))
	}
	fmt.Fprintf(&b, "*Cliente:* %s\n", h.ClientName)
	if h.Address != "" {
		fmt.Fprintf(&b, "*Endereço:* %s\n", h.Address)
	}
	fmt.Fprintf(&b, "*Valor total do pedido:* %s\n", render.Money(h.Total))
	b.WriteString("----------\n*Itens:*")

	for i, item := range o.Items {
		if i == maxMessageItems {
			fmt.Fprintf(&b, "\n... e mais %d item(ns).", len(o.Items)-maxMessageItems)
			break
		}
		desc := item.Description
		if item.Brand != "" {
			desc += " (" + item.Brand + ")"
		}
		fmt.Fprintf(&b, "\n%d. %s\n   Qtde: %s %s  Vlr Un.: %s  Vlr: %s",
			i+1, desc,
			render.Quantity(item.Quantity), item.Unit,
			render.Money(item.UnitPrice), render.Money(item.Total))
	}

	return b.String()
}
