package access_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/db/memory"
	"serotonyl.ru/reputation-engine/internal/events"
	"serotonyl.ru/reputation-engine/internal/features/access"
	"serotonyl.ru/reputation-engine/internal/features/karma"
)

type ownerOnly string

func (o ownerOnly) Authorize(_ context.Context, callerID string) error {
	if callerID != string(o) {
		return common.ErrNotOwner
	}
	return nil
}

type profiles struct {
	mu sync.Mutex
	m  map[string]karma.Profile
}

func (p *profiles) GetProfile(_ context.Context, userID string) (*karma.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.m[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	return &pr, nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, typ events.Type, userID string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events.Event{Type: typ, UserID: userID, Payload: payload})
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func newService(mode access.GatingMode) (*access.Service, *profiles, *recorder) {
	p := &profiles{m: map[string]karma.Profile{
		"alice": {UserID: "alice", KarmaScore: 75, TrustFactor: 5000, IsVerified: true, TotalContributions: 12},
		"bob":   {UserID: "bob", KarmaScore: 20, TrustFactor: 1500, TotalContributions: 1},
	}}
	rec := &recorder{}
	return access.NewService(memory.New(), p, ownerOnly("owner"), rec, mode), p, rec
}

func TestAddRule(t *testing.T) {
	ctx := context.Background()
	svc, _, rec := newService(access.GatingOverride)

	r, err := svc.AddRule(ctx, "owner", access.Rule{Name: "  core devs ", MinKarma: 70, Level: access.Trusted})
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, "core devs", r.Name)
	assert.True(t, r.Active)
	assert.Equal(t, []events.Type{events.AccessRuleAdded}, rec.types())
}

func TestAddRuleValidation(t *testing.T) {
	tests := []struct {
		name    string
		caller  string
		rule    access.Rule
		wantErr error
	}{
		{"non-owner", "bob", access.Rule{Name: "x"}, common.ErrUnauthorized},
		{"empty name", "owner", access.Rule{Name: "  "}, common.ErrInvalidRule},
		{"long name", "owner", access.Rule{Name: strings.Repeat("a", 101)}, common.ErrInvalidRule},
		{"karma above max", "owner", access.Rule{Name: "x", MinKarma: 101}, common.ErrInvalidRule},
		{"trust above max", "owner", access.Rule{Name: "x", MinTrustFactor: 10001}, common.ErrInvalidRule},
		{"unknown level", "owner", access.Rule{Name: "x", Level: access.Level(9)}, common.ErrInvalidRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, _, rec := newService(access.GatingOverride)

			_, err := svc.AddRule(ctx, tt.caller, tt.rule)
			assert.ErrorIs(t, err, tt.wantErr)

			rules, err := svc.ListRules(ctx, false)
			require.NoError(t, err)
			assert.Empty(t, rules)
			assert.Empty(t, rec.types())
		})
	}
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()
	svc, _, rec := newService(access.GatingOverride)

	r, err := svc.AddRule(ctx, "owner", access.Rule{Name: "karma 70", MinKarma: 70, Level: access.Contributor})
	require.NoError(t, err)

	d, err := svc.Evaluate(ctx, "alice", r.ID)
	require.NoError(t, err)
	assert.True(t, d.Granted)

	d, err = svc.Evaluate(ctx, "bob", r.ID)
	require.NoError(t, err)
	assert.False(t, d.Granted)
	assert.Equal(t, access.ReasonKarma, d.Reason)

	assert.Equal(t, []events.Type{events.AccessRuleAdded, events.AccessGranted, events.AccessDenied}, rec.types())

	_, err = svc.Evaluate(ctx, "alice", 42)
	assert.ErrorIs(t, err, common.ErrRuleNotFound)

	_, err = svc.Evaluate(ctx, "ghost", r.ID)
	assert.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestDeactivateRule(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(access.GatingOverride)

	r, err := svc.AddRule(ctx, "owner", access.Rule{Name: "open", Level: access.Contributor})
	require.NoError(t, err)

	_, err = svc.DeactivateRule(ctx, "alice", r.ID)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	off, err := svc.DeactivateRule(ctx, "owner", r.ID)
	require.NoError(t, err)
	assert.False(t, off.Active)

	_, err = svc.DeactivateRule(ctx, "owner", r.ID)
	assert.ErrorIs(t, err, common.ErrAlreadyInactive)

	_, err = svc.DeactivateRule(ctx, "owner", 99)
	assert.ErrorIs(t, err, common.ErrRuleNotFound)

	d, err := svc.Evaluate(ctx, "alice", r.ID)
	require.NoError(t, err)
	assert.False(t, d.Granted)
	assert.Equal(t, access.ReasonInactive, d.Reason)

	active, err := svc.ListRules(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := svc.ListRules(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGrantedLevelsAndBest(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(access.GatingOverride)

	_, err := svc.AddRule(ctx, "owner", access.Rule{Name: "contrib", MinKarma: 10, Level: access.Contributor})
	require.NoError(t, err)
	_, err = svc.AddRule(ctx, "owner", access.Rule{Name: "trusted", MinKarma: 70, RequiresVerification: true, Level: access.Trusted})
	require.NoError(t, err)

	levels, err := svc.GrantedLevels(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []access.Level{access.Basic, access.Contributor, access.Trusted}, levels)

	best, err := svc.BestAccessLevel(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, access.Contributor, best)
}

func TestAddDao(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(access.GatingOverride)

	r, err := svc.AddRule(ctx, "owner", access.Rule{Name: "karma 70", MinKarma: 70})
	require.NoError(t, err)

	t.Run("unknown custom rule", func(t *testing.T) {
		_, err := svc.AddDao(ctx, "owner", access.Dao{Name: "dao", CustomRuleIDs: []int64{99}})
		assert.ErrorIs(t, err, common.ErrRuleNotFound)
	})

	t.Run("duplicate custom rule", func(t *testing.T) {
		_, err := svc.AddDao(ctx, "owner", access.Dao{Name: "dao", CustomRuleIDs: []int64{r.ID, r.ID}})
		assert.ErrorIs(t, err, common.ErrInvalidDao)
	})

	t.Run("bad level", func(t *testing.T) {
		_, err := svc.AddDao(ctx, "owner", access.Dao{Name: "dao", RequiredLevel: access.Level(7)})
		assert.ErrorIs(t, err, common.ErrInvalidDao)
	})

	t.Run("non-owner", func(t *testing.T) {
		_, err := svc.AddDao(ctx, "alice", access.Dao{Name: "dao"})
		assert.ErrorIs(t, err, common.ErrUnauthorized)
	})

	t.Run("created", func(t *testing.T) {
		d, err := svc.AddDao(ctx, "owner", access.Dao{Name: "Treasury", RequiredLevel: access.Trusted, CustomRuleIDs: []int64{r.ID}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), d.ID)
		assert.True(t, d.Active)

		got, err := svc.GetDao(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{r.ID}, got.CustomRuleIDs)
	})

	daos, err := svc.ListDaos(ctx, false)
	require.NoError(t, err)
	assert.Len(t, daos, 1)
}

func TestEvaluateDaoModes(t *testing.T) {
	ctx := context.Background()

	for _, mode := range []access.GatingMode{access.GatingOverride, access.GatingAll} {
		t.Run(string(mode), func(t *testing.T) {
			svc, _, rec := newService(mode)
			r, err := svc.AddRule(ctx, "owner", access.Rule{Name: "karma 70", MinKarma: 70, Level: access.Contributor})
			require.NoError(t, err)
			d, err := svc.AddDao(ctx, "owner", access.Dao{Name: "Guild", RequiredLevel: access.Elite, CustomRuleIDs: []int64{r.ID}})
			require.NoError(t, err)

			dec, err := svc.EvaluateDao(ctx, "alice", d.ID)
			require.NoError(t, err)
			assert.Equal(t, mode == access.GatingOverride, dec.Granted)
			assert.Equal(t, access.Contributor, dec.BestLevel)

			// одно событие на одну проверку DAO
			last := rec.types()[len(rec.types())-1]
			if dec.Granted {
				assert.Equal(t, events.AccessGranted, last)
			} else {
				assert.Equal(t, events.AccessDenied, last)
			}
		})
	}
}

func TestDeactivateDao(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(access.GatingOverride)

	d, err := svc.AddDao(ctx, "owner", access.Dao{Name: "Guild"})
	require.NoError(t, err)

	_, err = svc.DeactivateDao(ctx, "owner", d.ID)
	require.NoError(t, err)

	_, err = svc.DeactivateDao(ctx, "owner", d.ID)
	assert.ErrorIs(t, err, common.ErrAlreadyInactive)

	dec, err := svc.EvaluateDao(ctx, "alice", d.ID)
	require.NoError(t, err)
	assert.False(t, dec.Granted)
	assert.Equal(t, access.ReasonDaoInactive, dec.Reason)

	_, err = svc.EvaluateDao(ctx, "alice", 404)
	assert.ErrorIs(t, err, common.ErrDaoNotFound)
}

// Проверки, идущие параллельно с изменением правил, видят конфигурацию целиком.
func TestEvaluateConcurrentWithConfiguration(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(access.GatingOverride)

	base, err := svc.AddRule(ctx, "owner", access.Rule{Name: "base", MinKarma: 10, Level: access.Contributor})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				d, err := svc.Evaluate(ctx, "alice", base.ID)
				assert.NoError(t, err)
				assert.True(t, d.Granted)
				_, err = svc.GrantedLevels(ctx, "bob")
				assert.NoError(t, err)
			}
		}()
	}
	for i := 0; i < 20; i++ {
		_, err := svc.AddRule(ctx, "owner", access.Rule{Name: "extra", MinKarma: uint32(i), Level: access.Trusted})
		require.NoError(t, err)
	}
	wg.Wait()

	rules, err := svc.ListRules(ctx, true)
	require.NoError(t, err)
	assert.Len(t, rules, 21)
}
