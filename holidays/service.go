// Package holidays sends Christmas and New Year greetings to every
// reachable client, one season per calendar day, with a fixed pause
// between sends to stay under the gateway's spam radar.
package holidays

import (
	"context"
	"fmt"
	"log"
	"time"

	"coopflow/dispatch"
	"coopflow/render"
	"coopflow/schedule"
)

// Season is a seasonal greeting campaign. The season name doubles as the
// send-state category.
type Season string

const (
	SeasonChristmas Season = "natal"
	SeasonNewYear   Season = "ano_novo"
)

// InterSendDelay is the mandatory pause after every attempted send.
const InterSendDelay = 10 * time.Second

// greetingFromHour is the hour of day (local) from which seasonal
// greetings go out on their calendar day.
const greetingFromHour = 22

func (s Season) gate() (schedule.FixedDayGate, error) {
	switch s {
	case SeasonChristmas:
		return schedule.FixedDayGate{Month: time.December, Day: 24, FromHour: greetingFromHour}, nil
	case SeasonNewYear:
		return schedule.FixedDayGate{Month: time.December, Day: 31, FromHour: greetingFromHour}, nil
	}
	return schedule.FixedDayGate{}, fmt.Errorf("holidays: unknown season %q", string(s))
}

// ContactSource defines the data access required by the service.
type ContactSource interface {
	ActiveContacts(ctx context.Context, q Querier) ([]Contact, error)
}

type Service struct {
	pool   Querier
	repo   ContactSource
	store  dispatch.Store
	sender dispatch.Sender

	areaCode string
	now      func() time.Time
	sleep    func(d time.Duration)
}

func NewService(pool Querier, repo ContactSource, store dispatch.Store, sender dispatch.Sender, areaCode string) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	return &Service{
		pool:     pool,
		repo:     repo,
		store:    store,
		sender:   sender,
		areaCode: areaCode,
		now:      time.Now,
	}
}

// WithClock overrides the service's notion of now. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithSleep overrides the inter-send pause. Test hook.
func (s *Service) WithSleep(sleep func(time.Duration)) *Service {
	s.sleep = sleep
	return s
}

// Run sends the season's greeting to every reachable client. skipped is
// true when the calendar gate blocked the whole run.
func (s *Service) Run(ctx context.Context, season Season) (dispatch.Summary, bool, error) {
	gate, err := season.gate()
	if err != nil {
		return dispatch.Summary{}, false, err
	}

	now := s.now()
	if !gate.Allowed(now) {
		return dispatch.Summary{}, true, nil
	}

	if l, ok := s.store.(dispatch.Loader); ok {
		if err := l.Load(); err != nil {
			log.Printf("[%s] carregar estado: %v", season, err)
		}
	}

	contacts, err := s.repo.ActiveContacts(ctx, s.pool)
	if err != nil {
		return dispatch.Summary{}, false, fmt.Errorf("holidays: fetch candidates: %w", err)
	}

	candidates := make([]dispatch.Candidate, 0, len(contacts))
	for _, c := range contacts {
		candidates = append(candidates, dispatch.Candidate{
			EntityID:    c.ID,
			DisplayName: c.Name,
			RawPhone:    c.RawPhone,
		})
	}

	runner := &dispatch.Runner{
		Category: string(season),
		Store:    s.store,
		Sender:   s.sender,
		Render: func(c dispatch.Candidate) (dispatch.Message, error) {
			return dispatch.Message{Text: season.message(c.DisplayName, now.Year())}, nil
		},
		Delay:    InterSendDelay,
		AreaCode: s.areaCode,
	}
	if s.sleep != nil {
		runner.WithSleep(s.sleep)
	}

	return runner.Run(ctx, now.Format("2006-01-02"), candidates), false, nil
}

func (s Season) message(name string, year int) string {
	first := render.FirstName(name)

	if s == SeasonChristmas {
		return fmt.Sprintf(
			"🎄 Olá, %s!\n\n"+
				"A CooperVerê agradece por você fazer parte da nossa história este ano. "+
				"Que o seu Natal seja repleto de luz, união e momentos especiais ao lado de quem você ama. "+
				"Boas festas!",
			first,
		)
	}

	return fmt.Sprintf(
		"✨ Olá, %s!\n\n"+
			"A CooperVerê deseja que o seu Ano Novo chegue com saúde, fartura e boas colheitas. "+
			"Obrigado por caminhar com a cooperativa em %d. "+
			"Que em %d possamos alcançar novas conquistas juntos. Feliz Ano Novo!",
		first, year, year+1,
	)
}
