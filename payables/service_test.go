package payables

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"coopflow/gateway"
	"coopflow/schedule"
)

type fakeSource struct {
	items    []Payable
	from, to time.Time
	calls    int
}

func (f *fakeSource) DueBetween(_ context.Context, _ Querier, from, to time.Time) ([]Payable, error) {
	f.calls++
	f.from, f.to = from, to
	return f.items, nil
}

type fakeLastRun struct {
	day   time.Time
	saved []time.Time
}

func (f *fakeLastRun) Load() (time.Time, bool) {
	return f.day, !f.day.IsZero()
}

func (f *fakeLastRun) Save(day time.Time) error {
	f.saved = append(f.saved, day)
	f.day = day
	return nil
}

type fakeSender struct {
	texts map[string]string
	fail  map[string]error
}

func newFakeSender() *fakeSender {
	return &fakeSender{texts: map[string]string{}, fail: map[string]error{}}
}

func (f *fakeSender) SendText(_ context.Context, number, text string) (map[string]any, error) {
	if err := f.fail[number]; err != nil {
		return nil, err
	}
	f.texts[number] = text
	return map[string]any{}, nil
}

func (f *fakeSender) SendMedia(_ context.Context, _ gateway.MediaParams) (map[string]any, error) {
	return map[string]any{}, nil
}

// monday 2026-09-07 at the given time.
func monday(hour, minute int) time.Time {
	return time.Date(2026, time.September, 7, hour, minute, 0, 0, time.Local)
}

func mondayGate() schedule.WeeklyGate {
	return schedule.WeeklyGate{Weekday: time.Monday, Hour: 8, Minute: 0}
}

func due(day int, supplier string, balance float64) Payable {
	return Payable{
		SupplierID:   "f-" + supplier,
		SupplierName: supplier,
		DocumentID:   "dup",
		DueDate:      time.Date(2026, time.September, day, 0, 0, 0, 0, time.Local),
		Balance:      balance,
	}
}

func TestRunSkippedOffWeekday(t *testing.T) {
	source := &fakeSource{}
	svc := NewService(nil, source, newFakeSender(), &fakeLastRun{}, mondayGate(), []string{"46999111465"}, 7, 0, "46").
		WithClock(func() time.Time {
			return time.Date(2026, time.September, 8, 9, 0, 0, 0, time.Local) // tuesday
		})

	_, skipped, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !skipped || source.calls != 0 {
		t.Fatalf("expected gate skip, skipped=%v calls=%d", skipped, source.calls)
	}
}

func TestRunOncePerCalendarDay(t *testing.T) {
	source := &fakeSource{items: []Payable{due(8, "AgroInsumos SA", 5925)}}
	lastRun := &fakeLastRun{}
	sender := newFakeSender()
	svc := NewService(nil, source, sender, lastRun, mondayGate(), []string{"46999111465"}, 7, 0, "46").
		WithClock(func() time.Time { return monday(9, 0) })

	res, skipped, err := svc.Run(context.Background())
	if err != nil || skipped {
		t.Fatalf("run: skipped=%v err=%v", skipped, err)
	}
	if res.Sent != 1 || res.Lines != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(lastRun.saved) != 1 {
		t.Fatal("expected last-run day recorded")
	}

	// Later the same day the gate blocks a second report.
	svc.WithClock(func() time.Time { return monday(15, 0) })
	_, skipped, err = svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !skipped {
		t.Fatal("expected once-per-day skip")
	}
}

func TestRunReportWindowAndText(t *testing.T) {
	source := &fakeSource{items: []Payable{
		due(8, "AgroInsumos SA", 5925),
		due(8, "Cereais do Vale", 1000),
		due(10, "AgroInsumos SA", 500.5),
	}}
	sender := newFakeSender()
	svc := NewService(nil, source, sender, &fakeLastRun{}, mondayGate(), []string{"46999111465"}, 7, 1, "46").
		WithClock(func() time.Time { return monday(8, 30) })

	res, _, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	wantFrom := time.Date(2026, time.September, 8, 0, 0, 0, 0, time.Local)
	wantTo := time.Date(2026, time.September, 14, 0, 0, 0, 0, time.Local)
	if !source.from.Equal(wantFrom) || !source.to.Equal(wantTo) {
		t.Fatalf("window = %v..%v, want %v..%v", source.from, source.to, wantFrom, wantTo)
	}
	if res.Suppliers != 2 {
		t.Fatalf("suppliers = %d", res.Suppliers)
	}

	text := sender.texts["5546999111465"]
	if !strings.Contains(text, "*Vencimento:* 08/09/2026") {
		t.Fatalf("report = %q", text)
	}
	if !strings.Contains(text, "AgroInsumos SA: R$ 5.925,00") {
		t.Fatalf("report missing supplier total: %q", text)
	}
	if strings.Index(text, "08/09/2026") > strings.Index(text, "10/09/2026") {
		t.Fatalf("dates out of order: %q", text)
	}
}

func TestRunEmptyWindowStillReports(t *testing.T) {
	sender := newFakeSender()
	svc := NewService(nil, &fakeSource{}, sender, &fakeLastRun{}, mondayGate(), []string{"46999111465"}, 7, 0, "46").
		WithClock(func() time.Time { return monday(8, 0) })

	res, _, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Sent != 1 {
		t.Fatalf("expected report sent, got %+v", res)
	}
	if !strings.Contains(sender.texts["5546999111465"], "Não há compromissos previstos") {
		t.Fatalf("report = %q", sender.texts["5546999111465"])
	}
}

func TestRunFansOutToEveryPhone(t *testing.T) {
	sender := newFakeSender()
	sender.fail["5546999820198"] = errors.New("timeout")
	svc := NewService(nil, &fakeSource{}, sender, &fakeLastRun{}, mondayGate(),
		[]string{"46999111465", "46999820198"}, 7, 0, "46").
		WithClock(func() time.Time { return monday(8, 0) })

	res, _, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Sent != 1 || res.Failed != 1 || res.Recipients != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunWithoutPhonesIsAnError(t *testing.T) {
	svc := NewService(nil, &fakeSource{}, newFakeSender(), &fakeLastRun{}, mondayGate(), nil, 7, 0, "46").
		WithClock(func() time.Time { return monday(8, 0) })

	if _, _, err := svc.Run(context.Background()); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}
