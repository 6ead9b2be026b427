// Package orchestrator drives pairwise match scoring over active profiles
// and persists the pairs that clear the admission threshold.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dealmatch/internal/config"
	"github.com/sells-group/dealmatch/internal/matching"
	"github.com/sells-group/dealmatch/internal/profile"
	"github.com/sells-group/dealmatch/internal/resilience"
)

// DefaultMinScore is the lowest total that gets persisted.
const DefaultMinScore = 30

// Store is the persistence the orchestrator needs.
type Store interface {
	GetProfile(ctx context.Context, kind profile.Kind, id int64) (*profile.Record, error)
	ActiveInvestors(ctx context.Context) ([]profile.Record, error)
	ActiveTargets(ctx context.Context) ([]profile.Record, error)
	UpsertMatch(ctx context.Context, rec matching.Record) (bool, error)
}

// Scorer rates one pair.
type Scorer interface {
	Score(inv profile.Investor, tgt profile.Target) matching.Score
}

// Options tunes an Orchestrator. Zero values select defaults.
type Options struct {
	MinScore      int
	Concurrency   int
	WriteRate     float64 // upserts per second; 0 is unlimited
	RetryAttempts int
	Breaker       resilience.BreakerConfig
}

// OptionsFromConfig maps the matching and batch config sections onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MinScore:      cfg.Matching.MinScore,
		Concurrency:   cfg.Batch.MaxConcurrentInvestors,
		WriteRate:     cfg.Matching.WriteRatePerSec,
		RetryAttempts: cfg.Matching.RetryAttempts,
	}
}

// Orchestrator scores investor/target pairs and upserts qualifying matches.
// Failures are isolated per pair and reported, never fatal to a batch.
type Orchestrator struct {
	store  Store
	scorer Scorer
	opts   Options
	writes *resilience.Guard
}

// New creates an Orchestrator.
func New(st Store, scorer Scorer, opts Options) *Orchestrator {
	if opts.MinScore <= 0 {
		opts.MinScore = DefaultMinScore
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	return &Orchestrator{
		store:  st,
		scorer: scorer,
		opts:   opts,
		writes: resilience.NewGuard(resilience.GuardConfig{
			Name:         "upsert_match",
			Attempts:     opts.RetryAttempts,
			WritesPerSec: opts.WriteRate,
			Breaker:      opts.Breaker,
		}),
	}
}

// ForInvestor scores one investor against every active target.
func (o *Orchestrator) ForInvestor(ctx context.Context, investorID int64) (*Report, error) {
	rec, err := o.store.GetProfile(ctx, profile.KindInvestor, investorID)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: load investor %d", investorID)
	}
	targets, err := o.store.ActiveTargets(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: list targets")
	}
	return o.run(ctx, "investor", []profile.Record{*rec}, targets)
}

// ForTarget scores one target against every active investor.
func (o *Orchestrator) ForTarget(ctx context.Context, targetID int64) (*Report, error) {
	rec, err := o.store.GetProfile(ctx, profile.KindTarget, targetID)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: load target %d", targetID)
	}
	investors, err := o.store.ActiveInvestors(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: list investors")
	}
	return o.run(ctx, "target", investors, []profile.Record{*rec})
}

// FullRescan scores the active investor x active target cross-product.
// Report.Qualified is the number of pairs that cleared the threshold.
func (o *Orchestrator) FullRescan(ctx context.Context) (*Report, error) {
	investors, err := o.store.ActiveInvestors(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: list investors")
	}
	targets, err := o.store.ActiveTargets(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: list targets")
	}
	return o.run(ctx, "full", investors, targets)
}

type decodedInvestor struct {
	view profile.Investor
	err  error
}

type decodedTarget struct {
	view profile.Target
	err  error
}

// run decodes every profile once, then fans out one worker per investor.
// A cancelled context stops work between pairs; the partial report is
// returned alongside the context error.
func (o *Orchestrator) run(ctx context.Context, scope string, investors, targets []profile.Record) (*Report, error) {
	start := time.Now()
	t := &tally{report: Report{RunID: uuid.New().String()}}
	log := zap.L().With(
		zap.String("run_id", t.report.RunID),
		zap.String("scope", scope),
		zap.Int("investors", len(investors)),
		zap.Int("targets", len(targets)),
	)
	log.Info("orchestrator: starting run")

	invs := make([]decodedInvestor, len(investors))
	for i, rec := range investors {
		invs[i].view, invs[i].err = profile.DecodeInvestor(rec)
		invs[i].view.ID = rec.ID
	}
	tgts := make([]decodedTarget, len(targets))
	for i, rec := range targets {
		tgts[i].view, tgts[i].err = profile.DecodeTarget(rec)
		tgts[i].view.ID = rec.ID
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)
	for i := range invs {
		inv := &invs[i]
		g.Go(func() error {
			return o.scoreInvestor(gctx, inv, tgts, t)
		})
	}
	err := g.Wait()

	report := t.snapshot()
	report.Elapsed = time.Since(start)
	log.Info("orchestrator: run complete",
		zap.Int("scored", report.Scored),
		zap.Int("qualified", report.Qualified),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", len(report.Skipped)),
		zap.Duration("elapsed", report.Elapsed),
	)
	if err != nil {
		return report, eris.Wrap(err, "orchestrator: run interrupted")
	}
	return report, nil
}

func (o *Orchestrator) scoreInvestor(ctx context.Context, inv *decodedInvestor, tgts []decodedTarget, t *tally) error {
	for i := range tgts {
		if err := ctx.Err(); err != nil {
			return err
		}
		tgt := &tgts[i]
		switch {
		case inv.err != nil:
			o.skip(t, PairError{InvestorID: inv.view.ID, TargetID: tgt.view.ID, Stage: StageDecode, Err: inv.err})
		case tgt.err != nil:
			o.skip(t, PairError{InvestorID: inv.view.ID, TargetID: tgt.view.ID, Stage: StageDecode, Err: tgt.err})
		default:
			if err := o.scorePair(ctx, &inv.view, &tgt.view, t); err != nil {
				return err
			}
		}
	}
	return nil
}

// scorePair scores and persists one pair. It only returns an error when
// the context is done; every other failure is recorded as a skip.
func (o *Orchestrator) scorePair(ctx context.Context, inv *profile.Investor, tgt *profile.Target, t *tally) error {
	score, err := o.safeScore(inv, tgt)
	if err != nil {
		o.skip(t, PairError{InvestorID: inv.ID, TargetID: tgt.ID, Stage: StageScore, Err: err})
		return nil
	}

	qualified := score.Total >= o.opts.MinScore
	t.scored(qualified)
	if !qualified {
		return nil
	}

	rec := matching.NewRecord(inv.ID, tgt.ID, score)
	created, err := resilience.Call(ctx, o.writes, func(ctx context.Context) (bool, error) {
		return o.store.UpsertMatch(ctx, rec)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.skip(t, PairError{InvestorID: inv.ID, TargetID: tgt.ID, Stage: StagePersist, Err: err})
		return nil
	}
	t.persisted(created)
	return nil
}

// safeScore converts a scorer panic on malformed profile data into an error.
func (o *Orchestrator) safeScore(inv *profile.Investor, tgt *profile.Target) (score matching.Score, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("orchestrator: scorer panic: %v", r)
		}
	}()
	return o.scorer.Score(*inv, *tgt), nil
}

func (o *Orchestrator) skip(t *tally, pe PairError) {
	t.skip(pe)
	zap.L().Warn("orchestrator: pair skipped",
		zap.Int64("investor_id", pe.InvestorID),
		zap.Int64("target_id", pe.TargetID),
		zap.String("stage", pe.Stage),
		zap.Error(pe.Err),
	)
}
