// Package invoices delivers the DANFE of each freshly issued sales NF-e
// to the client as a PDF document. The notification table's own status
// column is the send-state: rows stay pending until a delivery succeeds.
package invoices

import (
	"context"
	"fmt"
	"time"

	"coopflow/dispatch"
)

// Category is the send-state category used for operational alerts.
const Category = "nfe"

// InvoiceSource defines the data access required by the service.
type InvoiceSource interface {
	Pending(ctx context.Context, q Querier) ([]Invoice, error)
	FetchXML(ctx context.Context, q Querier, accessKey string) (string, error)
	UpdateStatus(ctx context.Context, q Querier, accessKey, status string) error
}

// DocumentConverter renders a signed XML into a PDF document.
type DocumentConverter interface {
	Convert(ctx context.Context, xml string) (fileName string, pdf []byte, err error)
}

type Service struct {
	pool      Querier
	repo      InvoiceSource
	converter DocumentConverter
	sender    dispatch.Sender
	alerts    *dispatch.AlertNotifier

	areaCode string
}

func NewService(pool Querier, repo InvoiceSource, converter DocumentConverter, sender dispatch.Sender, alerts *dispatch.AlertNotifier, areaCode string) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	return &Service{
		pool:      pool,
		repo:      repo,
		converter: converter,
		sender:    sender,
		alerts:    alerts,
		areaCode:  areaCode,
	}
}

// statusStore adapts the notification row's status column to the
// dispatch store contract. The pending query already filters delivered
// rows, so lookups always answer "not sent".
type statusStore struct {
	q    Querier
	repo InvoiceSource
}

func (s statusStore) HasSent(context.Context, string, string, string) (bool, error) {
	return false, nil
}

func (s statusStore) MarkSent(ctx context.Context, accessKey, _, _ string, _ time.Time) error {
	return s.repo.UpdateStatus(ctx, s.q, accessKey, StatusSent)
}

// Run delivers every pending invoice. Failed rows keep their pending
// status and are retried on the next poll cycle; a gateway rejection of
// the recipient number additionally raises the operational alert.
func (s *Service) Run(ctx context.Context) (dispatch.Summary, error) {
	pending, err := s.repo.Pending(ctx, s.pool)
	if err != nil {
		return dispatch.Summary{}, fmt.Errorf("invoices: fetch candidates: %w", err)
	}

	byKey := make(map[string]Invoice, len(pending))
	candidates := make([]dispatch.Candidate, 0, len(pending))
	for _, inv := range pending {
		byKey[inv.AccessKey] = inv
		candidates = append(candidates, dispatch.Candidate{
			EntityID:    inv.AccessKey,
			DisplayName: inv.ClientName,
			RawPhone:    inv.RawPhone,
		})
	}

	runner := &dispatch.Runner{
		Category: Category,
		Store:    statusStore{q: s.pool, repo: s.repo},
		Sender:   s.sender,
		Render: func(c dispatch.Candidate) (dispatch.Message, error) {
			return s.render(ctx, byKey[c.EntityID])
		},
		Alerts:       s.alerts,
		AlertContext: "NF-e",
		AreaCode:     s.areaCode,
	}

	return runner.Run(ctx, "", candidates), nil
}

func (s *Service) render(ctx context.Context, inv Invoice) (dispatch.Message, error) {
	xml, err := s.repo.FetchXML(ctx, s.pool, inv.AccessKey)
	if err != nil {
		return dispatch.Message{}, err
	}

	name, pdf, err := s.converter.Convert(ctx, xml)
	if err != nil {
		return dispatch.Message{}, err
	}
	if name == "" {
		name = fmt.Sprintf("NFE-%s.pdf", inv.AccessKey)
	}

	return dispatch.Message{Document: &dispatch.Document{
		Data:     pdf,
		MimeType: "application/pdf",
		FileName: name,
		Caption:  caption(inv),
	}}, nil
}

func caption(inv Invoice) string {
	name := inv.ClientName
	if name == "" {
		name = "Cliente"
	}
	num := "(sem número)"
	if inv.Number != "" || inv.Series != "" {
		num = fmt.Sprintf("%s-%s", inv.Number, inv.Series)
	}
	return fmt.Sprintf("Olá %s! CooperVerê informa o Faturamento da Nota Fiscal Nº %s.", name, num)
}
