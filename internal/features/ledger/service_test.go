package ledger_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/db/memory"
	"serotonyl.ru/reputation-engine/internal/events"
	"serotonyl.ru/reputation-engine/internal/features/ledger"
	"serotonyl.ru/reputation-engine/internal/features/members"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*ledger.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.CreateMember(context.Background(), members.Member{
		UserID:         "alice",
		RegisteredAt:   fixedNow.Add(-time.Hour),
		LastActivityAt: fixedNow.Add(-time.Hour),
	}))
	return ledger.NewService(store, events.Discard{}, func() time.Time { return fixedNow }), store
}

func TestAppend(t *testing.T) {
	ctx := context.Background()
	svc, store := setup(t)

	c, err := svc.Append(ctx, "alice", ledger.Code, 80, "merged PR #12")
	require.NoError(t, err)

	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, "alice", c.OwnerID)
	assert.Equal(t, ledger.Code, c.Category)
	assert.Equal(t, uint8(80), c.ImpactScore)
	assert.False(t, c.Verified)
	assert.Equal(t, fixedNow, c.Timestamp)

	m, err := store.GetMember(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.TotalContributions)
	assert.Equal(t, fixedNow, m.LastActivityAt)
	assert.True(t, m.ScoresStale)
}

func TestAppendBoundaries(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	_, err := svc.Append(ctx, "alice", ledger.Forum, 0, "")
	assert.NoError(t, err)
	_, err = svc.Append(ctx, "alice", ledger.Forum, 100, "")
	assert.NoError(t, err)

	n, err := svc.Count(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestAppendRejectsWithoutSideEffects(t *testing.T) {
	tests := []struct {
		name        string
		owner       string
		category    ledger.Category
		impact      int
		description string
		wantErr     error
	}{
		{"impact above range", "alice", ledger.Code, 150, "", common.ErrInvalidImpactScore},
		{"negative impact", "alice", ledger.Code, -1, "", common.ErrInvalidImpactScore},
		{"unknown category", "alice", ledger.Category(9), 10, "", common.ErrInvalidCategory},
		{"description too long", "alice", ledger.Code, 10, strings.Repeat("д", 501), common.ErrDescriptionTooLong},
		{"unknown owner", "bob", ledger.Code, 10, "", common.ErrUnknownOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, store := setup(t)

			_, err := svc.Append(ctx, tt.owner, tt.category, tt.impact, tt.description)
			assert.ErrorIs(t, err, tt.wantErr)

			list, err := svc.ListByOwner(ctx, "alice")
			require.NoError(t, err)
			assert.Empty(t, list)

			m, err := store.GetMember(ctx, "alice")
			require.NoError(t, err)
			assert.Zero(t, m.TotalContributions)
			assert.False(t, m.ScoresStale)
		})
	}
}

func TestListByOwnerKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	impacts := []int{5, 50, 25, 100, 0}
	for _, impact := range impacts {
		_, err := svc.Append(ctx, "alice", ledger.Governance, impact, "")
		require.NoError(t, err)
	}

	list, err := svc.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, len(impacts))
	for i, c := range list {
		assert.Equal(t, uint8(impacts[i]), c.ImpactScore)
		assert.Equal(t, int64(i+1), c.ID)
	}
}

func TestAppendPublishesEvent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateMember(ctx, members.Member{UserID: "alice"}))

	bus := events.NewBus(nil)
	var got []events.Event
	bus.Subscribe(func(_ context.Context, e events.Event) { got = append(got, e) })

	svc := ledger.NewService(store, bus, nil)
	_, err := svc.Append(ctx, "alice", ledger.IdentityVerification, 30, "kyc")
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, events.ContributionAdded, got[0].Type)
	assert.Equal(t, ledger.Added{ContributionID: 1, Category: "identity_verification", ImpactScore: 30, Total: 1}, got[0].Payload)
}

func TestCategoryScores(t *testing.T) {
	scores := ledger.CategoryScores([]ledger.Contribution{
		{Category: ledger.Code, ImpactScore: 80},
		{Category: ledger.Code, ImpactScore: 20},
		{Category: ledger.Forum, ImpactScore: 7},
	})

	assert.Equal(t, uint64(100), scores[ledger.Code])
	assert.Equal(t, uint64(7), scores[ledger.Forum])
	assert.Equal(t, uint64(0), scores[ledger.Governance])
	assert.Len(t, scores, len(ledger.Categories))
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want ledger.Category
	}{
		{"code", ledger.Code},
		{" Governance ", ledger.Governance},
		{"gov", ledger.Governance},
		{"forum", ledger.Forum},
		{"identity", ledger.IdentityVerification},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ledger.ParseCategory(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ledger.ParseCategory("memes")
	assert.ErrorIs(t, err, common.ErrInvalidCategory)
}
