// Package birthdays sends a greeting to every active client on the day
// of their birthday, at most once per day per client.
package birthdays

import (
	"context"
	"fmt"
	"log"
	"time"

	"coopflow/dispatch"
	"coopflow/render"
)

// Category is the send-state category for birthday greetings.
const Category = "aniversario"

// ClientSource defines the data access required by the service.
type ClientSource interface {
	DueOn(ctx context.Context, q Querier, month time.Month, day int) ([]Client, error)
}

type Service struct {
	pool   Querier
	repo   ClientSource
	store  dispatch.Store
	sender dispatch.Sender
	alerts *dispatch.AlertNotifier

	areaCode string
	now      func() time.Time
}

func NewService(pool Querier, repo ClientSource, store dispatch.Store, sender dispatch.Sender, alerts *dispatch.AlertNotifier, areaCode string) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	return &Service{
		pool:     pool,
		repo:     repo,
		store:    store,
		sender:   sender,
		alerts:   alerts,
		areaCode: areaCode,
		now:      time.Now,
	}
}

// WithClock overrides the service's notion of now. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Run sends today's birthday greetings. Re-running on the same day only
// reaches clients that were not delivered yet.
func (s *Service) Run(ctx context.Context) (dispatch.Summary, error) {
	today := s.now()

	if l, ok := s.store.(dispatch.Loader); ok {
		if err := l.Load(); err != nil {
			log.Printf("[aniversario] carregar estado: %v", err)
		}
	}

	clients, err := s.repo.DueOn(ctx, s.pool, today.Month(), today.Day())
	if err != nil {
		return dispatch.Summary{}, fmt.Errorf("birthdays: fetch candidates: %w", err)
	}

	candidates := make([]dispatch.Candidate, 0, len(clients))
	for _, c := range clients {
		candidates = append(candidates, dispatch.Candidate{
			EntityID:    c.ID,
			DisplayName: c.Name,
			RawPhone:    c.RawPhone,
		})
	}

	runner := &dispatch.Runner{
		Category: Category,
		Store:    s.store,
		Sender:   s.sender,
		Render: func(c dispatch.Candidate) (dispatch.Message, error) {
			return dispatch.Message{Text: greeting(c.DisplayName)}, nil
		},
		Alerts:       s.alerts,
		AlertContext: "Aniversariante",
		AreaCode:     s.areaCode,
	}

	return runner.Run(ctx, today.Format("2006-01-02"), candidates), nil
}

func greeting(name string) string {
	return fmt.Sprintf(
		"🎉 Feliz aniversário, %s!\n"+
			"A CooperVerê deseja a você um dia iluminado e cheio de alegria. "+
			"Obrigado por fazer parte da nossa história e por caminhar junto com a cooperativa!",
		render.FirstName(name),
	)
}
