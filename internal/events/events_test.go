package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (f *fakeRepo) SaveEvent(_ context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRepo) ListEvents(_ context.Context, userID string, limit int) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Record
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if userID == "" || f.records[i].UserID == userID {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	bus := NewBus(func() time.Time { return fixed })

	var got []string
	bus.Subscribe(func(_ context.Context, e Event) { got = append(got, "first:"+string(e.Type)) })
	bus.Subscribe(func(_ context.Context, e Event) { got = append(got, "second:"+string(e.Type)) })

	bus.Publish(context.Background(), UserVerified, "0xabc", nil)

	assert.Equal(t, []string{"first:user_verified", "second:user_verified"}, got)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(nil)

	calls := 0
	unsubscribe := bus.Subscribe(func(context.Context, Event) { calls++ })

	bus.Publish(context.Background(), KarmaCalculated, "u", nil)
	unsubscribe()
	bus.Publish(context.Background(), KarmaCalculated, "u", nil)

	assert.Equal(t, 1, calls)
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	bus := NewBus(nil)

	var delivered Event
	bus.Subscribe(func(context.Context, Event) { panic("boom") })
	bus.Subscribe(func(_ context.Context, e Event) { delivered = e })

	require.NotPanics(t, func() {
		bus.Publish(context.Background(), AccessDenied, "u", map[string]int{"rule_id": 1})
	})
	assert.Equal(t, AccessDenied, delivered.Type)
	assert.Equal(t, "u", delivered.UserID)
}

func TestRecorderPersistsEncodedPayload(t *testing.T) {
	repo := &fakeRepo{}
	recorder := NewRecorder(repo)
	bus := NewBus(nil)
	bus.Subscribe(recorder.Handle)

	type payload struct {
		RuleID int64 `json:"rule_id"`
	}
	bus.Publish(context.Background(), AccessGranted, "0xabc", payload{RuleID: 7})
	bus.Publish(context.Background(), UserRegistered, "0xdef", nil)

	records, err := recorder.List(context.Background(), "0xabc", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, AccessGranted, records[0].Type)
	assert.JSONEq(t, `{"rule_id":7}`, string(records[0].Payload))

	all, err := recorder.List(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, UserRegistered, all[0].Type)
	assert.JSONEq(t, `{}`, string(all[0].Payload))
}

func TestRecorderSwallowsStorageErrors(t *testing.T) {
	repo := &fakeRepo{err: errors.New("db down")}
	recorder := NewRecorder(repo)

	assert.NotPanics(t, func() {
		recorder.Handle(context.Background(), Event{Type: UserVerified, UserID: "u"})
	})
}
