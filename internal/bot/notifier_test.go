package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/reputation-engine/internal/events"
	"serotonyl.ru/reputation-engine/internal/features/access"
	"serotonyl.ru/reputation-engine/internal/features/karma"
	"serotonyl.ru/reputation-engine/internal/features/ledger"
	"serotonyl.ru/reputation-engine/internal/features/members"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	ch   chan struct{}
}

func (s *fakeSender) SendText(_ context.Context, chatID int64, text string) error {
	s.mu.Lock()
	s.sent = append(s.sent, text)
	s.mu.Unlock()
	s.ch <- struct{}{}
	return nil
}

func TestNotifierSkipsNoisyEvents(t *testing.T) {
	n := NewNotifier(&fakeSender{}, -100, 4)
	ctx := context.Background()

	n.Handle(ctx, events.Event{Type: events.AccessGranted})
	n.Handle(ctx, events.Event{Type: events.AccessDenied})
	n.Handle(ctx, events.Event{Type: events.KarmaCalculated})
	assert.Zero(t, len(n.queue))

	n.Handle(ctx, events.Event{Type: events.UserRegistered})
	assert.Equal(t, 1, len(n.queue))
}

func TestNotifierDropsOnOverflow(t *testing.T) {
	n := NewNotifier(&fakeSender{}, -100, 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		n.Handle(ctx, events.Event{Type: events.ContributionAdded})
	}
	assert.Equal(t, 2, len(n.queue))
	assert.Equal(t, int64(3), n.Dropped())
}

func TestNotifierRunSends(t *testing.T) {
	sender := &fakeSender{ch: make(chan struct{}, 1)}
	n := NewNotifier(sender, -100, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()

	n.Handle(ctx, events.Event{Type: events.UserVerified, UserID: "bob", Payload: members.Verified{VerifiedBy: "owner"}})

	select {
	case <-sender.ch:
	case <-time.After(time.Second):
		t.Fatal("уведомление не отправлено")
	}
	cancel()
	<-done

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "✔️ bob верифицирован владельцем owner", sender.sent[0])
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name string
		e    events.Event
		want string
	}{
		{
			name: "registered without name",
			e:    events.Event{Type: events.UserRegistered, UserID: "0xabc", Payload: members.Registered{}},
			want: "🆕 Зарегистрирован 0xabc (0xabc)",
		},
		{
			name: "registered with name",
			e:    events.Event{Type: events.UserRegistered, UserID: "0xabc", Payload: members.Registered{DisplayName: "Alice"}},
			want: "🆕 Зарегистрирован Alice (0xabc)",
		},
		{
			name: "contribution",
			e: events.Event{Type: events.ContributionAdded, UserID: "alice", Payload: ledger.Added{
				ContributionID: 7, Category: "code", ImpactScore: 80, Total: 3,
			}},
			want: "📦 Вклад #7 от alice: code +80 (всего 3)",
		},
		{
			name: "weights",
			e: events.Event{Type: events.WeightsUpdated, Payload: karma.WeightsChanged{
				ChangedBy: "owner",
				Old:       karma.Weights{Code: 10000, Version: 1},
				New:       karma.Weights{Code: 5000, Forum: 5000, Version: 2},
			}},
			want: "⚖️ owner изменил веса (v1 → v2): " +
				"code=100.00% governance=0.00% forum=0.00% identity_verification=0.00% → " +
				"code=50.00% governance=0.00% forum=50.00% identity_verification=0.00%",
		},
		{
			name: "rule deactivated",
			e: events.Event{Type: events.AccessRuleDeactivated, Payload: access.RuleChanged{
				By: "owner", Rule: access.Rule{ID: 3, Name: "core", Level: access.Trusted},
			}},
			want: "📜 owner деактивировал правило #3 «core» [trusted]",
		},
		{
			name: "dao added",
			e: events.Event{Type: events.DaoIntegrationAdded, Payload: access.DaoChanged{
				By: "owner", Dao: access.Dao{ID: 1, Name: "Guild", RequiredLevel: access.Elite},
			}},
			want: "🏛 owner добавил DAO #1 «Guild» [elite]",
		},
		{
			name: "unknown payload",
			e:    events.Event{Type: events.AccessGranted, UserID: "alice"},
			want: "ℹ️ access_granted: alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatEvent(tt.e))
		})
	}
}

type panicSender struct {
	calls chan struct{}
}

func (s *panicSender) SendText(context.Context, int64, string) error {
	s.calls <- struct{}{}
	panic("telegram упал")
}

func TestNotifierSurvivesPanickingSender(t *testing.T) {
	sender := &panicSender{calls: make(chan struct{}, 2)}
	n := NewNotifier(sender, -100, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	for i := 0; i < 2; i++ {
		n.Handle(ctx, events.Event{Type: events.ContributionAdded, UserID: "alice"})
		select {
		case <-sender.calls:
		case <-time.After(time.Second):
			t.Fatalf("отправка %d не выполнена", i+1)
		}
	}
}
