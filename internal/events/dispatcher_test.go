package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/go-shelter-alerts/internal/fanout"
	"github.com/mr1hm/go-shelter-alerts/internal/models"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeRunner struct {
	mu   sync.Mutex
	runs []string
	err  error
}

func (r *fakeRunner) OnAlertCreated(ctx context.Context, alert *models.Alert) (*fanout.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, alert.ID)
	return &fanout.Result{AlertID: alert.ID}, r.err
}

func (r *fakeRunner) ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.runs...)
}

type fakeClaims struct {
	mu      sync.Mutex
	claimed map[string]bool
	err     error
}

func (c *fakeClaims) MarkDispatched(ctx context.Context, id string, at time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.claimed == nil {
		c.claimed = make(map[string]bool)
	}
	if c.claimed[id] {
		return false, nil
	}
	c.claimed[id] = true
	return true, nil
}

type fakeSink struct {
	mu      sync.Mutex
	results []*fanout.Result
}

func (s *fakeSink) PublishFanout(ctx context.Context, res *fanout.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
}

func event(kind Kind, id string, status models.AlertStatus) Event {
	return Event{
		Kind: kind,
		At:   now,
		Alert: models.Alert{
			ID:         id,
			Status:     status,
			ValidUntil: now.Add(time.Hour),
		},
	}
}

func TestTriggerPolicy(t *testing.T) {
	expired := event(KindAlertCreated, "old", models.StatusActive)
	expired.Alert.ValidUntil = now.Add(-time.Minute)

	tests := []struct {
		name   string
		policy TriggerPolicy
		event  Event
		want   bool
	}{
		{"live: active at creation", TriggerWhenLive, event(KindAlertCreated, "a", models.StatusActive), true},
		{"live: verified at creation", TriggerWhenLive, event(KindAlertCreated, "a", models.StatusVerified), true},
		{"live: pending at creation", TriggerWhenLive, event(KindAlertCreated, "a", models.StatusPending), false},
		{"live: verified by votes", TriggerWhenLive, event(KindAlertVerified, "a", models.StatusVerified), true},
		{"live: expired", TriggerWhenLive, expired, false},
		{"on create: pending at creation", TriggerOnCreate, event(KindAlertCreated, "a", models.StatusPending), true},
		{"on create: verified by votes", TriggerOnCreate, event(KindAlertVerified, "a", models.StatusVerified), false},
		{"on create: expired", TriggerOnCreate, expired, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Triggers(tt.event))
		})
	}
}

func runDispatcher(t *testing.T, d *Dispatcher, events ...Event) {
	t.Helper()
	b := NewBroadcaster(10, nil)
	_, ch := b.SubscribeReliable()

	done := make(chan struct{})
	go func() {
		d.Run(context.Background(), ch)
		close(done)
	}()

	for _, e := range events {
		b.Publish(context.Background(), e)
	}
	b.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func newTestDispatcher(runner FanoutRunner, claims DispatchClaimer, policy TriggerPolicy, sink ResultSink) *Dispatcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDispatcher(runner, claims, policy, sink, 2, clockwork.NewFakeClockAt(now), logger)
}

func TestDispatcher_PendingAlertFansOutOnVerification(t *testing.T) {
	runner := &fakeRunner{}
	sink := &fakeSink{}
	d := newTestDispatcher(runner, &fakeClaims{}, TriggerWhenLive, sink)

	runDispatcher(t, d,
		event(KindAlertCreated, "official", models.StatusActive),
		event(KindAlertCreated, "community", models.StatusPending),
		event(KindAlertVerified, "community", models.StatusVerified),
	)

	assert.ElementsMatch(t, []string{"official", "community"}, runner.ran())
	assert.Len(t, sink.results, 2)
}

func TestDispatcher_OnCreatePolicy(t *testing.T) {
	runner := &fakeRunner{}
	d := newTestDispatcher(runner, &fakeClaims{}, TriggerOnCreate, nil)

	runDispatcher(t, d,
		event(KindAlertCreated, "community", models.StatusPending),
		event(KindAlertVerified, "community", models.StatusVerified),
	)

	assert.Equal(t, []string{"community"}, runner.ran())
}

func TestDispatcher_DispatchesOnce(t *testing.T) {
	runner := &fakeRunner{}
	d := newTestDispatcher(runner, &fakeClaims{}, TriggerWhenLive, nil)

	runDispatcher(t, d,
		event(KindAlertCreated, "a", models.StatusActive),
		event(KindAlertCreated, "a", models.StatusActive),
		event(KindAlertVerified, "a", models.StatusVerified),
	)

	assert.Equal(t, []string{"a"}, runner.ran())
}

func TestDispatcher_ClaimErrorSkipsRun(t *testing.T) {
	runner := &fakeRunner{}
	d := newTestDispatcher(runner, &fakeClaims{err: errors.New("database is locked")}, TriggerWhenLive, nil)

	runDispatcher(t, d, event(KindAlertCreated, "a", models.StatusActive))

	assert.Empty(t, runner.ran())
}

func TestDispatcher_RunErrorStillReported(t *testing.T) {
	runner := &fakeRunner{err: errors.New("push transport unavailable")}
	sink := &fakeSink{}
	d := newTestDispatcher(runner, &fakeClaims{}, TriggerWhenLive, sink)

	runDispatcher(t, d, event(KindAlertCreated, "a", models.StatusActive))

	require.Len(t, sink.results, 1)
	assert.Equal(t, "a", sink.results[0].AlertID)
}
