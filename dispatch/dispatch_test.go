package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"coopflow/gateway"
)

type fakeStore struct {
	sent    map[string]string
	errored map[string]string
	flushes int
	hasErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sent: map[string]string{}, errored: map[string]string{}}
}

func stateKey(entityID, category string) string {
	return entityID + "|" + category
}

func (f *fakeStore) HasSent(_ context.Context, entityID, category, period string) (bool, error) {
	if f.hasErr != nil {
		return false, f.hasErr
	}
	v, ok := f.sent[stateKey(entityID, category)]
	return ok && v == period, nil
}

func (f *fakeStore) MarkSent(_ context.Context, entityID, category, period string, _ time.Time) error {
	f.sent[stateKey(entityID, category)] = period
	return nil
}

func (f *fakeStore) RecordError(_ context.Context, entityID, category, _, detail string) error {
	f.errored[stateKey(entityID, category)] = detail
	return nil
}

func (f *fakeStore) Flush() error {
	f.flushes++
	return nil
}

type sentMessage struct {
	number string
	text   string
	media  bool
}

type fakeSender struct {
	messages []sentMessage
	failWith error
	failFor  map[string]error
}

func (f *fakeSender) SendText(_ context.Context, number, text string) (map[string]any, error) {
	if err := f.fail(number); err != nil {
		return nil, err
	}
	f.messages = append(f.messages, sentMessage{number: number, text: text})
	return map[string]any{}, nil
}

func (f *fakeSender) SendMedia(_ context.Context, p gateway.MediaParams) (map[string]any, error) {
	if err := f.fail(p.Number); err != nil {
		return nil, err
	}
	f.messages = append(f.messages, sentMessage{number: p.Number, text: p.Caption, media: true})
	return map[string]any{}, nil
}

func (f *fakeSender) fail(number string) error {
	if f.failWith != nil {
		return f.failWith
	}
	if err, ok := f.failFor[number]; ok {
		return err
	}
	return nil
}

func textRender(c Candidate) (Message, error) {
	return Message{Text: "olá " + c.DisplayName}, nil
}

func TestRunIsIdempotentAcrossCycles(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	runner := &Runner{Category: "aniversario", Store: store, Sender: sender, Render: textRender}

	candidates := []Candidate{
		{EntityID: "42", DisplayName: "Ana", RawPhone: "46999122826"},
		{EntityID: "43", DisplayName: "Bruno", RawPhone: "46999820198"},
	}

	first := runner.Run(context.Background(), "2026-09-01", candidates)
	if first.Sent != 2 || first.AlreadySent != 0 {
		t.Fatalf("first run: expected 2 sent, got %+v", first)
	}

	second := runner.Run(context.Background(), "2026-09-01", candidates)
	if second.Sent != 0 || second.AlreadySent != 2 {
		t.Fatalf("second run: expected 2 already sent, got %+v", second)
	}
	if len(sender.messages) != 2 {
		t.Fatalf("expected exactly 2 deliveries, got %d", len(sender.messages))
	}
}

func TestRunNewPeriodSendsAgain(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	runner := &Runner{Category: "aniversario", Store: store, Sender: sender, Render: textRender}

	c := []Candidate{{EntityID: "42", DisplayName: "Ana", RawPhone: "46999122826"}}

	_ = runner.Run(context.Background(), "2026-08-31", c)
	sum := runner.Run(context.Background(), "2026-09-01", c)
	if sum.Sent != 1 || sum.AlreadySent != 0 {
		t.Fatalf("yesterday's mark must not block today, got %+v", sum)
	}
	if store.sent[stateKey("42", "aniversario")] != "2026-09-01" {
		t.Fatalf("record must advance to today, got %q", store.sent[stateKey("42", "aniversario")])
	}
}

func TestInvalidPhoneIsCountedAndNotMarked(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	runner := &Runner{Category: "pedido", Store: store, Sender: sender, Render: textRender}

	sum := runner.Run(context.Background(), "", []Candidate{
		{EntityID: "10", DisplayName: "Carla", RawPhone: "123"},
	})

	if sum.InvalidRecipient != 1 || sum.Sent != 0 || sum.Failed != 0 {
		t.Fatalf("expected one invalid recipient, got %+v", sum)
	}
	if len(store.sent) != 0 {
		t.Fatal("invalid recipient must stay unmarked so it retries after correction")
	}
}

func TestSendFailureRetriesNextCycle(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{failWith: &gateway.APIError{StatusCode: 502}}
	runner := &Runner{Category: "cobranca", Store: store, Sender: sender, Render: textRender}

	c := []Candidate{{EntityID: "7", DisplayName: "Davi", RawPhone: "46999122826"}}
	sum := runner.Run(context.Background(), "2026-09-01", c)
	if sum.Failed != 1 || sum.Sent != 0 {
		t.Fatalf("expected one failure, got %+v", sum)
	}
	if len(store.sent) != 0 {
		t.Fatal("failed delivery must not be marked OK")
	}
	if store.errored[stateKey("7", "cobranca")] == "" {
		t.Fatal("expected an audit record for the failed attempt")
	}

	sender.failWith = nil
	sum = runner.Run(context.Background(), "2026-09-01", c)
	if sum.Sent != 1 {
		t.Fatalf("candidate must remain eligible after failure, got %+v", sum)
	}
}

func TestGroupedMarkingIsAllOrNothing(t *testing.T) {
	group := Candidate{
		EntityID:    "cli-1",
		DisplayName: "Eva",
		RawPhone:    "46999122826",
		DocumentIDs: []string{"dup-1", "dup-2", "dup-3"},
	}

	store := newFakeStore()
	sender := &fakeSender{failWith: &gateway.APIError{StatusCode: 500}}
	runner := &Runner{Category: "vence_hoje", Store: store, Sender: sender, Render: textRender}

	_ = runner.Run(context.Background(), "", []Candidate{group})
	if len(store.sent) != 0 {
		t.Fatalf("a failed grouped send must mark nothing, got %v", store.sent)
	}

	sender.failWith = nil
	sum := runner.Run(context.Background(), "", []Candidate{group})
	if sum.Sent != 1 {
		t.Fatalf("expected one grouped send, got %+v", sum)
	}
	for _, doc := range group.DocumentIDs {
		if _, ok := store.sent[stateKey(doc, "vence_hoje")]; !ok {
			t.Fatalf("expected %s marked after grouped success", doc)
		}
	}
	if len(sender.messages) != 1 {
		t.Fatalf("grouped candidates must produce one delivery, got %d", len(sender.messages))
	}
}

func TestStoreReadErrorFavorsResend(t *testing.T) {
	store := newFakeStore()
	store.hasErr = errors.New("disk gone")
	sender := &fakeSender{}
	runner := &Runner{Category: "aniversario", Store: store, Sender: sender, Render: textRender}

	sum := runner.Run(context.Background(), "2026-09-01", []Candidate{
		{EntityID: "42", DisplayName: "Ana", RawPhone: "46999122826"},
	})
	if sum.Sent != 1 {
		t.Fatalf("unreadable state must err toward sending, got %+v", sum)
	}
}

func TestDelayAppliesAfterEveryAttempt(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{failFor: map[string]error{
		"5546999820198": &gateway.APIError{StatusCode: 500},
	}}

	var pauses []time.Duration
	runner := &Runner{
		Category: "natal",
		Store:    store,
		Sender:   sender,
		Render:   textRender,
		Delay:    10 * time.Second,
	}
	runner.WithSleep(func(d time.Duration) { pauses = append(pauses, d) })

	sum := runner.Run(context.Background(), "2026-12-24", []Candidate{
		{EntityID: "1", DisplayName: "Ana", RawPhone: "46999122826"},
		{EntityID: "2", DisplayName: "Bia", RawPhone: "46999820198"},
		{EntityID: "3", DisplayName: "Caio", RawPhone: "nope"},
	})

	if sum.Sent != 1 || sum.Failed != 1 || sum.InvalidRecipient != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	// One pause per attempted send; the invalid recipient never reaches
	// the gateway and pays no pause.
	if len(pauses) != 2 {
		t.Fatalf("expected 2 pauses, got %d", len(pauses))
	}
	for _, d := range pauses {
		if d != 10*time.Second {
			t.Fatalf("expected 10s pause, got %v", d)
		}
	}
}

func TestRenderErrorCountsAsFailure(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	runner := &Runner{
		Category: "nfe",
		Store:    store,
		Sender:   sender,
		Render: func(c Candidate) (Message, error) {
			return Message{}, fmt.Errorf("xml indisponível")
		},
	}

	sum := runner.Run(context.Background(), "", []Candidate{
		{EntityID: "9", DisplayName: "Gil", RawPhone: "46999122826"},
	})
	if sum.Failed != 1 || sum.Sent != 0 {
		t.Fatalf("render failure must count as failed, got %+v", sum)
	}
	if len(sender.messages) != 0 {
		t.Fatal("nothing must be delivered when rendering fails")
	}
}

func TestDocumentDeliveryUsesMedia(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	runner := &Runner{
		Category: "pedido",
		Store:    store,
		Sender:   sender,
		Render: func(c Candidate) (Message, error) {
			return Message{Document: &Document{
				Data:     []byte("%PDF-1.4"),
				MimeType: "application/pdf",
				FileName: "pedido-PV-10.pdf",
				Caption:  "CooperVerê - Novo Pedido Faturado",
			}}, nil
		},
	}

	sum := runner.Run(context.Background(), "", []Candidate{
		{EntityID: "10", DisplayName: "Hugo", RawPhone: "46999122826"},
	})
	if sum.Sent != 1 {
		t.Fatalf("expected document sent, got %+v", sum)
	}
	if len(sender.messages) != 1 || !sender.messages[0].media {
		t.Fatalf("expected a media delivery, got %+v", sender.messages)
	}
}

func TestBadRecipientStatusTriggersAlert(t *testing.T) {
	store := newFakeStore()
	alertStore := newFakeStore()
	gatewaySender := &fakeSender{failFor: map[string]error{
		"5546999122826": &gateway.APIError{StatusCode: 400},
	}}

	alerts := NewAlertNotifier(gatewaySender, "46999111465", "46", alertStore)
	runner := &Runner{
		Category:     "nfe",
		Store:        store,
		Sender:       gatewaySender,
		Render:       textRender,
		Alerts:       alerts,
		AlertContext: "NF-e",
	}

	sum := runner.Run(context.Background(), "", []Candidate{
		{EntityID: "55-1", DisplayName: "Iris", RawPhone: "46999122826"},
	})
	if sum.Failed != 1 {
		t.Fatalf("gateway 400 is still a failure, got %+v", sum)
	}
	// The alert went to the TI number, not the candidate.
	if len(gatewaySender.messages) != 1 || gatewaySender.messages[0].number != "5546999111465" {
		t.Fatalf("expected one TI alert, got %+v", gatewaySender.messages)
	}
}

func TestAlertDeduplicatesPerDocument(t *testing.T) {
	alertStore := newFakeStore()
	sender := &fakeSender{}
	alerts := NewAlertNotifier(sender, "46999111465", "46", alertStore)

	params := AlertParams{
		Context:    "Cobrança",
		Identifier: "cli-1",
		Name:       "João",
		RawPhone:   "999",
		Keys:       []string{"dup-1", "dup-2"},
	}

	alerts.InvalidPhone(context.Background(), params)
	alerts.InvalidPhone(context.Background(), params)

	if len(sender.messages) != 1 {
		t.Fatalf("repeated alerts for the same documents must be deduplicated, got %d", len(sender.messages))
	}
}
