package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealmatch/internal/config"
	"github.com/sells-group/dealmatch/internal/matching"
	"github.com/sells-group/dealmatch/internal/profile"
	"github.com/sells-group/dealmatch/internal/store"
)

type pairKey struct{ inv, tgt int64 }

type memStore struct {
	mu        sync.Mutex
	investors []profile.Record
	targets   []profile.Record
	matches   map[pairKey]matching.Record
	failFor   map[int64]error // target id -> upsert error
}

func newMemStore() *memStore {
	return &memStore{matches: make(map[pairKey]matching.Record), failFor: make(map[int64]error)}
}

func (m *memStore) addInvestor(id int64, data string) {
	m.investors = append(m.investors, profile.Record{ID: id, Kind: profile.KindInvestor, Name: fmt.Sprintf("inv-%d", id), Active: true, Data: json.RawMessage(data)})
}

func (m *memStore) addTarget(id int64, data string) {
	m.targets = append(m.targets, profile.Record{ID: id, Kind: profile.KindTarget, Name: fmt.Sprintf("tgt-%d", id), Active: true, Data: json.RawMessage(data)})
}

func (m *memStore) GetProfile(_ context.Context, kind profile.Kind, id int64) (*profile.Record, error) {
	list := m.investors
	if kind == profile.KindTarget {
		list = m.targets
	}
	for _, r := range list {
		if r.ID == id {
			rec := r
			return &rec, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ActiveInvestors(context.Context) ([]profile.Record, error) { return m.investors, nil }
func (m *memStore) ActiveTargets(context.Context) ([]profile.Record, error)   { return m.targets, nil }

func (m *memStore) UpsertMatch(_ context.Context, rec matching.Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor[rec.TargetID]; err != nil {
		return false, err
	}
	key := pairKey{rec.InvestorID, rec.TargetID}
	if old, ok := m.matches[key]; ok {
		rec.Status = old.Status
		m.matches[key] = rec
		return false, nil
	}
	m.matches[key] = rec
	return true, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matches)
}

// scoreFunc adapts a function to Scorer.
type scoreFunc func(profile.Investor, profile.Target) matching.Score

func (f scoreFunc) Score(inv profile.Investor, tgt profile.Target) matching.Score { return f(inv, tgt) }

func constantScore(total int) scoreFunc {
	return func(profile.Investor, profile.Target) matching.Score {
		return matching.Score{Total: total}
	}
}

func TestForInvestor_AdmissionThreshold(t *testing.T) {
	st := newMemStore()
	st.addInvestor(1, `{}`)
	st.addTarget(29, `{}`)
	st.addTarget(30, `{}`)

	// The stub scores each pair with its target id.
	o := New(st, scoreFunc(func(_ profile.Investor, tgt profile.Target) matching.Score {
		return matching.Score{Total: int(tgt.ID)}
	}), Options{})

	report, err := o.ForInvestor(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scored)
	assert.Equal(t, 1, report.Qualified)
	assert.Equal(t, 1, report.Created)

	_, has29 := st.matches[pairKey{1, 29}]
	_, has30 := st.matches[pairKey{1, 30}]
	assert.False(t, has29, "a total of 29 must not be persisted")
	assert.True(t, has30, "a total of 30 must be persisted")
}

func TestFullRescan_MalformedProfileIsolated(t *testing.T) {
	st := newMemStore()
	st.addInvestor(1, `{"target_preferences":{"industries":["Fintech"]}}`)
	for id := int64(1); id <= 50; id++ {
		data := `{"company_overview":{"industry":"Fintech"}}`
		if id == 13 {
			data = `[1, 2`
		}
		st.addTarget(id, data)
	}

	report, err := New(st, constantScore(60), Options{}).FullRescan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 49, report.Scored)
	assert.Equal(t, 49, report.Persisted())
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, int64(13), report.Skipped[0].TargetID)
	assert.Equal(t, int64(1), report.Skipped[0].InvestorID)
	assert.Equal(t, StageDecode, report.Skipped[0].Stage)
	assert.Equal(t, 49, st.count())
}

func TestFullRescan_ScorerPanicIsolated(t *testing.T) {
	st := newMemStore()
	st.addInvestor(1, `{}`)
	st.addTarget(1, `{}`)
	st.addTarget(2, `{}`)

	o := New(st, scoreFunc(func(_ profile.Investor, tgt profile.Target) matching.Score {
		if tgt.ID == 2 {
			panic("unexpected shape")
		}
		return matching.Score{Total: 90}
	}), Options{})

	report, err := o.FullRescan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, StageScore, report.Skipped[0].Stage)
	assert.Contains(t, report.Skipped[0].Message, "unexpected shape")
}

func TestFullRescan_PersistFailureIsolated(t *testing.T) {
	st := newMemStore()
	st.addInvestor(1, `{}`)
	st.addTarget(1, `{}`)
	st.addTarget(2, `{}`)
	st.failFor[2] = errors.New("check constraint violated")

	report, err := New(st, constantScore(70), Options{RetryAttempts: 1}).FullRescan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Qualified)
	assert.Equal(t, 1, report.Created)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, StagePersist, report.Skipped[0].Stage)
	assert.Equal(t, int64(2), report.Skipped[0].TargetID)
}

func TestFullRescan_Concurrent(t *testing.T) {
	st := newMemStore()
	for id := int64(1); id <= 5; id++ {
		st.addInvestor(id, `{}`)
	}
	for id := int64(1); id <= 10; id++ {
		st.addTarget(id, `{}`)
	}

	report, err := New(st, constantScore(50), Options{Concurrency: 4}).FullRescan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, report.Scored)
	assert.Equal(t, 50, report.Qualified)
	assert.Equal(t, 50, report.Created)
	assert.Equal(t, 50, st.count())
	assert.NotEmpty(t, report.RunID)
}

func TestForInvestor_RescoreCountsUpdates(t *testing.T) {
	st := newMemStore()
	st.addInvestor(1, `{}`)
	st.addTarget(1, `{}`)
	o := New(st, constantScore(80), Options{})

	first, err := o.ForInvestor(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := o.ForInvestor(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Updated)
}

func TestForTarget(t *testing.T) {
	st := newMemStore()
	st.addInvestor(1, `{}`)
	st.addInvestor(2, `{}`)
	st.addTarget(9, `{}`)

	report, err := New(st, constantScore(40), Options{}).ForTarget(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	_, ok := st.matches[pairKey{2, 9}]
	assert.True(t, ok)
}

func TestForInvestor_NotFound(t *testing.T) {
	_, err := New(newMemStore(), constantScore(40), Options{}).ForInvestor(context.Background(), 404)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFullRescan_Cancelled(t *testing.T) {
	st := newMemStore()
	st.addInvestor(1, `{}`)
	for id := int64(1); id <= 5; id++ {
		st.addTarget(id, `{}`)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(st, constantScore(90), Options{}).FullRescan(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 0, report.Scored)
	assert.Equal(t, 0, st.count())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Batch:    config.BatchConfig{MaxConcurrentInvestors: 6},
		Matching: config.MatchingConfig{MinScore: 35, WriteRatePerSec: 100, RetryAttempts: 2},
	}
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, 35, opts.MinScore)
	assert.Equal(t, 6, opts.Concurrency)
	assert.InDelta(t, 100.0, opts.WriteRate, 1e-9)
	assert.Equal(t, 2, opts.RetryAttempts)
}

func TestPairError_Error(t *testing.T) {
	pe := PairError{InvestorID: 1, TargetID: 2, Stage: StagePersist, Message: "boom"}
	assert.Equal(t, "pair 1/2: persist: boom", pe.Error())
}

func TestFullRescan_SQLitePreservesReviewStatus(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "match.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	invID, err := st.SaveProfile(ctx, &profile.Record{Kind: profile.KindInvestor, Name: "Lion Capital", Active: true,
		Data: json.RawMessage(`{"target_preferences":{"industries":["Fintech"],"countries":[{"id":1}]}}`)})
	require.NoError(t, err)
	tgtID, err := st.SaveProfile(ctx, &profile.Record{Kind: profile.KindTarget, Name: "PayViet", Active: true,
		Data: json.RawMessage(`{"company_overview":{"industry":["Financial Technology"],"hq_country":{"id":1}}}`)})
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	scorer, err := matching.NewScorer(matching.DefaultWeights(), clock)
	require.NoError(t, err)
	o := New(st, scorer, Options{})

	report, err := o.FullRescan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	rec, err := st.GetMatch(ctx, invID, tgtID)
	require.NoError(t, err)
	assert.Equal(t, matching.StatusPending, rec.Status)
	require.NoError(t, st.SetMatchStatus(ctx, invID, tgtID, matching.StatusReviewed))

	clock.Advance(24 * time.Hour)
	report, err = o.FullRescan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)

	rec, err = st.GetMatch(ctx, invID, tgtID)
	require.NoError(t, err)
	assert.Equal(t, matching.StatusReviewed, rec.Status)
	assert.True(t, rec.ComputedAt.Equal(clock.Now()))
}
