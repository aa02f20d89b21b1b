// Package payables sends the weekly accounts-payable outlook to the
// configured management phones: every open duplicata due in the report
// window, grouped by due date and supplier. The weekly gate plus a
// last-run day file keep it to one report per calendar day.
package payables

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"coopflow/dispatch"
	"coopflow/phone"
	"coopflow/render"
	"coopflow/schedule"
)

// ErrNoRecipients signals that no report phone is configured.
var ErrNoRecipients = errors.New("payables: no notify phones configured")

// PayableSource defines the data access required by the service.
type PayableSource interface {
	DueBetween(ctx context.Context, q Querier, from, to time.Time) ([]Payable, error)
}

// LastRunStore keeps the day of the previous successful report.
type LastRunStore interface {
	Load() (time.Time, bool)
	Save(day time.Time) error
}

// Result is the outcome of one report run.
type Result struct {
	From       time.Time
	To         time.Time
	Lines      int
	Suppliers  int
	Recipients int
	Sent       int
	Failed     int
}

type Service struct {
	pool    Querier
	repo    PayableSource
	sender  dispatch.Sender
	lastRun LastRunStore
	gate    schedule.WeeklyGate

	phones     []string
	rangeDays  int
	offsetDays int
	areaCode   string
	now        func() time.Time
}

func NewService(pool Querier, repo PayableSource, sender dispatch.Sender, lastRun LastRunStore, gate schedule.WeeklyGate, phones []string, rangeDays, offsetDays int, areaCode string) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	if rangeDays <= 0 {
		rangeDays = 7
	}
	return &Service{
		pool:       pool,
		repo:       repo,
		sender:     sender,
		lastRun:    lastRun,
		gate:       gate,
		phones:     phones,
		rangeDays:  rangeDays,
		offsetDays: offsetDays,
		areaCode:   areaCode,
		now:        time.Now,
	}
}

// WithClock overrides the service's notion of now. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Run builds and delivers the report when the weekly gate permits it.
// skipped is true when the gate blocked the run.
func (s *Service) Run(ctx context.Context) (Result, bool, error) {
	now := s.now()

	last, _ := s.lastRun.Load()
	if !s.gate.Allowed(now, last) {
		return Result{}, true, nil
	}

	if len(s.phones) == 0 {
		return Result{}, false, ErrNoRecipients
	}

	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, s.offsetDays)
	to := from.AddDate(0, 0, s.rangeDays-1)

	lines, err := s.repo.DueBetween(ctx, s.pool, from, to)
	if err != nil {
		return Result{}, false, fmt.Errorf("payables: fetch due: %w", err)
	}

	grouped := groupByDateAndSupplier(lines)
	text := reportText(grouped, s.rangeDays, from, to)

	res := Result{From: from, To: to, Lines: len(lines), Suppliers: supplierCount(grouped), Recipients: len(s.phones)}
	for _, raw := range s.phones {
		number, ok := phone.Normalize(raw, s.areaCode)
		if !ok {
			number = strings.TrimSpace(raw)
		}
		if _, err := s.sender.SendText(ctx, number, text); err != nil {
			res.Failed++
			log.Printf("[contas-pagar] envio para %s: %v", number, err)
			continue
		}
		res.Sent++
	}

	if err := s.lastRun.Save(now); err != nil {
		log.Printf("[contas-pagar] salvar última execução: %v", err)
	}

	return res, false, nil
}

// groupByDateAndSupplier sums balances per due date, then per supplier.
func groupByDateAndSupplier(lines []Payable) map[time.Time]map[string]float64 {
	grouped := make(map[time.Time]map[string]float64)
	for _, p := range lines {
		if p.DueDate.IsZero() {
			continue
		}
		day := time.Date(p.DueDate.Year(), p.DueDate.Month(), p.DueDate.Day(), 0, 0, 0, 0, p.DueDate.Location())
		supplier := p.SupplierName
		if supplier == "" {
			supplier = "Fornecedor não informado"
		}
		if grouped[day] == nil {
			grouped[day] = make(map[string]float64)
		}
		grouped[day][supplier] += p.Balance
	}
	return grouped
}

func supplierCount(grouped map[time.Time]map[string]float64) int {
	seen := map[string]struct{}{}
	for _, suppliers := range grouped {
		for name := range suppliers {
			seen[name] = struct{}{}
		}
	}
	return len(seen)
}

func reportText(grouped map[time.Time]map[string]float64, days int, from, to time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b,
		"Olá, Gestor! Aqui estão os compromissos da CooperVerê\n"+
			"para os próximos *%d dias*\n(*%s* a *%s*).\n",
		days, render.Date(from), render.Date(to))

	if len(grouped) == 0 {
		b.WriteString("\nNão há compromissos previstos neste período.")
		return b.String()
	}

	dates := make([]time.Time, 0, len(grouped))
	for d := range grouped {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	for _, d := range dates {
		fmt.Fprintf(&b, "\n*Vencimento:* %s", render.Date(d))

		suppliers := make([]string, 0, len(grouped[d]))
		for name := range grouped[d] {
			suppliers = append(suppliers, name)
		}
		sort.Strings(suppliers)
		for _, name := range suppliers {
			fmt.Fprintf(&b, "\n   - %s: %s", name, render.Money(grouped[d][name]))
		}
	}

	return b.String()
}
