package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/reputation-engine/internal/db/memory"
	"serotonyl.ru/reputation-engine/internal/db/storetest"
	"serotonyl.ru/reputation-engine/internal/features/access"
	"serotonyl.ru/reputation-engine/internal/features/members"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) storetest.Store { return memory.New() })
}

func TestReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.CreateMember(ctx, members.Member{UserID: "alice"}))

	m, err := s.GetMember(ctx, "alice")
	require.NoError(t, err)
	m.IsVerified = true
	m.TotalContributions = 99

	again, err := s.GetMember(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, again.IsVerified)
	assert.Zero(t, again.TotalContributions)

	r, err := s.CreateRule(ctx, access.Rule{Name: "x", Active: true})
	require.NoError(t, err)
	d, err := s.CreateDao(ctx, access.Dao{Name: "dao", CustomRuleIDs: []int64{r.ID}, Active: true})
	require.NoError(t, err)
	d.CustomRuleIDs[0] = 42

	got, err := s.GetDao(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{r.ID}, got.CustomRuleIDs)

	rec, err := s.RecordCheck(ctx, "alice", []access.Level{access.Basic}, m.RegisteredAt)
	require.NoError(t, err)
	rec.GrantedLevels[0] = access.Elite

	stored, err := s.GetPermission(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []access.Level{access.Basic}, stored.GrantedLevels)
}
