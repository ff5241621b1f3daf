// Package storetest — общие проверки хранилищ. Memory и Postgres обязаны
// вести себя одинаково, поэтому оба прогоняют один и тот же набор.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/events"
	"serotonyl.ru/reputation-engine/internal/features/access"
	"serotonyl.ru/reputation-engine/internal/features/admin"
	"serotonyl.ru/reputation-engine/internal/features/karma"
	"serotonyl.ru/reputation-engine/internal/features/ledger"
	"serotonyl.ru/reputation-engine/internal/features/members"
	"serotonyl.ru/reputation-engine/internal/features/permissions"
)

// Store — все репозитории движка.
type Store interface {
	members.Repository
	ledger.Repository
	karma.Repository
	access.Repository
	permissions.Repository
	admin.Repository
	events.Repository
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Run прогоняет набор. newStore должен возвращать пустое хранилище.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("members", func(t *testing.T) { testMembers(t, newStore(t)) })
	t.Run("ledger", func(t *testing.T) { testLedger(t, newStore(t)) })
	t.Run("karma", func(t *testing.T) { testKarma(t, newStore(t)) })
	t.Run("access", func(t *testing.T) { testAccess(t, newStore(t)) })
	t.Run("permissions", func(t *testing.T) { testPermissions(t, newStore(t)) })
	t.Run("admin", func(t *testing.T) { testAdmin(t, newStore(t)) })
	t.Run("events", func(t *testing.T) { testEvents(t, newStore(t)) })
}

func createMember(t *testing.T, s Store, id string, telegramID int64) {
	t.Helper()
	require.NoError(t, s.CreateMember(context.Background(), members.Member{
		UserID:         id,
		TelegramID:     telegramID,
		RegisteredAt:   t0,
		LastActivityAt: t0,
	}))
}

func testMembers(t *testing.T, s Store) {
	ctx := context.Background()
	createMember(t, s, "alice", 1001)
	createMember(t, s, "bob", 0)
	createMember(t, s, "carol", 0)

	assert.ErrorIs(t, s.CreateMember(ctx, members.Member{UserID: "alice"}), common.ErrUserExists)
	assert.ErrorIs(t, s.CreateMember(ctx, members.Member{UserID: "dave", TelegramID: 1001}), common.ErrUserExists)

	m, err := s.GetMemberByTelegramID(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, "alice", m.UserID)
	assert.Equal(t, t0, m.RegisteredAt)

	_, err = s.GetMemberByTelegramID(ctx, 42)
	assert.ErrorIs(t, err, common.ErrUserNotFound)
	_, err = s.GetMember(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrUserNotFound)

	verified, err := s.MarkVerified(ctx, "bob", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.True(t, verified.ScoresStale)
	require.NotNil(t, verified.VerifiedAt)
	assert.Equal(t, t0.Add(time.Minute), *verified.VerifiedAt)

	_, err = s.MarkVerified(ctx, "bob", t0)
	assert.ErrorIs(t, err, common.ErrAlreadyVerified)
	_, err = s.MarkVerified(ctx, "ghost", t0)
	assert.ErrorIs(t, err, common.ErrUserNotFound)

	ids, err := s.ListMemberIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, ids)
}

func testLedger(t *testing.T, s Store) {
	ctx := context.Background()
	createMember(t, s, "alice", 0)

	_, _, err := s.AppendContribution(ctx, ledger.Contribution{OwnerID: "ghost", Category: ledger.Code, Timestamp: t0})
	assert.ErrorIs(t, err, common.ErrUnknownOwner)

	for i, impact := range []uint8{10, 100, 0} {
		c, total, err := s.AppendContribution(ctx, ledger.Contribution{
			OwnerID:     "alice",
			Category:    ledger.Governance,
			ImpactScore: impact,
			Description: "голосование",
			Timestamp:   t0.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), total)
		assert.False(t, c.Verified)
	}

	list, err := s.ListContributions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, uint8(100), list[1].ImpactScore)
	assert.Equal(t, "голосование", list[2].Description)
	assert.Less(t, list[0].ID, list[1].ID)

	n, err := s.CountContributions(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
	_, err = s.CountContributions(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrUserNotFound)

	m, err := s.GetMember(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), m.TotalContributions)
	assert.True(t, m.ScoresStale)
	assert.Equal(t, t0.Add(2*time.Second), m.LastActivityAt)

	// вклад после верификации помечается подтверждённым
	_, err = s.MarkVerified(ctx, "alice", t0)
	require.NoError(t, err)
	c, _, err := s.AppendContribution(ctx, ledger.Contribution{OwnerID: "alice", Category: ledger.Code, Timestamp: t0})
	require.NoError(t, err)
	assert.True(t, c.Verified)
}

func testKarma(t *testing.T, s Store) {
	ctx := context.Background()
	createMember(t, s, "alice", 0)
	createMember(t, s, "bob", 0)

	_, err := s.LoadWeights(ctx)
	assert.ErrorIs(t, err, common.ErrWeightsNotFound)
	_, err = s.GetScore(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrScoreNotFound)

	require.NoError(t, s.SaveWeights(ctx, karma.Weights{Code: 4000, Governance: 3000, Forum: 2000, Identity: 1000, Version: 1, UpdatedAt: t0}))
	require.NoError(t, s.SaveWeights(ctx, karma.Weights{Code: 10000, Version: 2, UpdatedAt: t0.Add(time.Hour)}))
	w, err := s.LoadWeights(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), w.Version)
	assert.Equal(t, uint32(10000), w.Code)
	assert.Zero(t, w.Forum)

	score := karma.Score{
		UserID: "alice",
		CategoryScores: map[ledger.Category]uint64{
			ledger.Code:                 240,
			ledger.Governance:           0,
			ledger.Forum:                0,
			ledger.IdentityVerification: 0,
		},
		KarmaScore:     60,
		TrustFactor:    3000,
		WeightsVersion: 2,
		CalculatedAt:   t0,
	}
	require.NoError(t, s.SaveScore(ctx, score))
	assert.ErrorIs(t, s.SaveScore(ctx, karma.Score{UserID: "ghost"}), common.ErrUserNotFound)

	got, err := s.GetScore(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, score, *got)

	stale, err := s.ListStaleScoreUserIDs(ctx, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, stale)

	stale, err = s.ListStaleScoreUserIDs(ctx, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, stale)

	stale, err = s.ListStaleScoreUserIDs(ctx, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, stale)
}

func testAccess(t *testing.T, s Store) {
	ctx := context.Background()

	r1, err := s.CreateRule(ctx, access.Rule{Name: "core", MinKarma: 70, MinTrustFactor: 5000, RequiresVerification: true, MinContributions: 3, Level: access.Trusted, Active: true})
	require.NoError(t, err)
	r2, err := s.CreateRule(ctx, access.Rule{Name: "open", Level: access.Contributor, Active: true})
	require.NoError(t, err)
	assert.Less(t, r1.ID, r2.ID)

	got, err := s.GetRule(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, "core", got.Name)
	assert.Equal(t, uint32(5000), got.MinTrustFactor)
	assert.True(t, got.RequiresVerification)
	assert.Equal(t, access.Trusted, got.Level)

	_, err = s.GetRule(ctx, 999)
	assert.ErrorIs(t, err, common.ErrRuleNotFound)

	off, err := s.DeactivateRule(ctx, r2.ID)
	require.NoError(t, err)
	assert.False(t, off.Active)
	_, err = s.DeactivateRule(ctx, r2.ID)
	assert.ErrorIs(t, err, common.ErrAlreadyInactive)
	_, err = s.DeactivateRule(ctx, 999)
	assert.ErrorIs(t, err, common.ErrRuleNotFound)

	active, err := s.ListRules(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, r1.ID, active[0].ID)
	all, err := s.ListRules(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	d, err := s.CreateDao(ctx, access.Dao{Name: "Guild", RequiredLevel: access.Elite, CustomRuleIDs: []int64{r1.ID, r2.ID}, Active: true})
	require.NoError(t, err)
	gotDao, err := s.GetDao(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{r1.ID, r2.ID}, gotDao.CustomRuleIDs)
	assert.Equal(t, access.Elite, gotDao.RequiredLevel)

	_, err = s.GetDao(ctx, 999)
	assert.ErrorIs(t, err, common.ErrDaoNotFound)

	_, err = s.DeactivateDao(ctx, d.ID)
	require.NoError(t, err)
	_, err = s.DeactivateDao(ctx, d.ID)
	assert.ErrorIs(t, err, common.ErrAlreadyInactive)

	daos, err := s.ListDaos(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, daos)
}

func testPermissions(t *testing.T, s Store) {
	ctx := context.Background()
	createMember(t, s, "alice", 0)
	createMember(t, s, "bob", 0)

	_, err := s.GetPermission(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrPermissionNotFound)
	assert.ErrorIs(t, s.RefreshLevels(ctx, "alice", nil, t0), common.ErrPermissionNotFound)
	require.NoError(t, s.InvalidatePermission(ctx, "alice"))

	for i := 1; i <= 2; i++ {
		rec, err := s.RecordCheck(ctx, "alice", []access.Level{access.Basic, access.Contributor}, t0)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), rec.AccessCount)
	}
	_, err = s.RecordCheck(ctx, "bob", []access.Level{access.Basic}, t0)
	require.NoError(t, err)

	require.NoError(t, s.InvalidatePermission(ctx, "bob"))
	stale, err := s.ListStalePermissionUserIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, stale)

	n, err := s.InvalidateAllPermissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.RefreshLevels(ctx, "alice", []access.Level{access.Basic}, t0.Add(time.Hour)))
	rec, err := s.GetPermission(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.AccessCount)
	assert.False(t, rec.Stale)
	assert.Equal(t, []access.Level{access.Basic}, rec.GrantedLevels)
	assert.Equal(t, t0.Add(time.Hour), rec.LastChecked)

	stale, err = s.ListStalePermissionUserIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, stale)
}

func testAdmin(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.GetActiveSession(ctx, "root", t0)
	assert.ErrorIs(t, err, common.ErrSessionExpired)

	require.NoError(t, s.CreateSession(ctx, admin.Session{
		UserID:          "root",
		SessionToken:    "token-1",
		AuthenticatedAt: t0,
		ExpiresAt:       t0.Add(time.Hour),
		LastActivity:    t0,
		IsActive:        true,
	}))

	sess, err := s.GetActiveSession(ctx, "root", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "token-1", sess.SessionToken)

	_, err = s.GetActiveSession(ctx, "root", t0.Add(time.Hour))
	assert.ErrorIs(t, err, common.ErrSessionExpired)

	require.NoError(t, s.TouchSession(ctx, "root", t0.Add(2*time.Minute)))
	require.NoError(t, s.DeactivateSessions(ctx, "root"))
	_, err = s.GetActiveSession(ctx, "root", t0.Add(time.Minute))
	assert.ErrorIs(t, err, common.ErrSessionExpired)

	require.NoError(t, s.LogLoginAttempt(ctx, "root", false, t0))
	require.NoError(t, s.LogLoginAttempt(ctx, "root", false, t0.Add(time.Minute)))
	require.NoError(t, s.LogLoginAttempt(ctx, "root", true, t0.Add(2*time.Minute)))
	require.NoError(t, s.LogLoginAttempt(ctx, "other", false, t0))

	n, err := s.CountFailedAttempts(ctx, "root", t0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = s.CountFailedAttempts(ctx, "root", t0.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testEvents(t *testing.T, s Store) {
	ctx := context.Background()

	for i, userID := range []string{"alice", "", "alice", "bob"} {
		require.NoError(t, s.SaveEvent(ctx, events.Record{
			ID:      uuid.New(),
			Type:    events.ContributionAdded,
			UserID:  userID,
			At:      t0.Add(time.Duration(i) * time.Second),
			Payload: []byte(`{"n":1}`),
		}))
	}

	list, err := s.ListEvents(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, t0.Add(2*time.Second), list[0].At)
	assert.Equal(t, t0, list[1].At)
	assert.JSONEq(t, `{"n":1}`, string(list[0].Payload))

	all, err := s.ListEvents(ctx, "", 3)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "bob", all[0].UserID)
}
