package council

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Personaz1/openclaw-council/internal/config"
)

// RoleRunner produces one RoleResult per call and never fails.
type RoleRunner interface {
	Invoke(ctx context.Context, role config.RoleConfig, query string) RoleResult
}

// StageObserver is notified once a stage has fully completed.
type StageObserver func(stage Stage, results []RoleResult)

// Coordinator runs the three council stages: independent answers, critique, synthesis.
type Coordinator struct {
	Runner      RoleRunner
	Roles       []config.RoleConfig
	Synthesizer config.RoleConfig
	Workers     int
	Logger      *zap.Logger
	Metrics     Metrics
	Observer    StageObserver
}

// New wires a Coordinator and its Invoker from a loaded config.
func New(cfg *config.Config, factory ProviderFactory, logger *zap.Logger, metrics Metrics) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	inv := &Invoker{
		Providers:   cfg.Providers,
		Runtime:     cfg.Runtime,
		Factory:     factory,
		Prompts:     NewFilePrompts(cfg),
		Synthesizer: cfg.Synthesizer.Name,
		Logger:      logger,
		Metrics:     metrics,
	}
	return &Coordinator{
		Runner:      inv,
		Roles:       cfg.Roles,
		Synthesizer: cfg.Synthesizer,
		Workers:     cfg.Runtime.Workers(),
		Logger:      logger,
		Metrics:     metrics,
	}
}

// Run executes the pipeline for query. Role failures never abort the run;
// they appear as [ERROR] content in their slot.
func (c *Coordinator) Run(ctx context.Context, query string) (*Run, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is required")
	}
	if c.Runner == nil {
		return nil, errors.New("role runner is required")
	}

	start := time.Now()
	logger := c.logger().With(zap.String("run_id", uuid.NewString()))
	logger.Info("council run started", zap.Int("roles", len(c.Roles)), zap.String("synthesizer", c.Synthesizer.Name))

	round1 := c.fanOut(ctx, logger, StageRound1, query)

	critic := c.fanOut(ctx, logger, StageCritic, buildCriticQuery(query, round1))

	var synthesis RoleResult
	synthQuery, err := buildSynthesisQuery(query, round1, critic)
	if err != nil {
		synthesis = errorResult(c.Synthesizer, "%v", err)
	} else {
		synthesis = c.invoke(ctx, logger, c.Synthesizer, synthQuery)
	}
	c.finishStage(logger, StageSynthesis, []RoleResult{synthesis})

	run := &Run{
		Query:       query,
		Round1:      round1,
		CriticRound: critic,
		Synthesis:   synthesis,
	}

	degraded := run.Degraded()
	if c.Metrics != nil {
		c.Metrics.RecordRun(time.Since(start), degraded)
	}
	logger.Info("council run finished", zap.Duration("duration", time.Since(start)), zap.Int("degraded", degraded))
	return run, nil
}

// fanOut invokes every role with query under the worker cap and keeps declaration order.
func (c *Coordinator) fanOut(ctx context.Context, logger *zap.Logger, stage Stage, query string) []RoleResult {
	results := make([]RoleResult, len(c.Roles))
	runBounded(c.Workers, len(c.Roles), func(i int) {
		results[i] = c.invoke(ctx, logger, c.Roles[i], query)
	})
	c.finishStage(logger, stage, results)
	return results
}

// invoke converts a panic inside the runner into an error result for the slot.
func (c *Coordinator) invoke(ctx context.Context, logger *zap.Logger, role config.RoleConfig, query string) (res RoleResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("role task panicked", zap.String("role", role.Name), zap.Any("panic", r))
			res = errorResult(role, "panic: %v", r)
		}
	}()
	return c.Runner.Invoke(ctx, role, query)
}

func (c *Coordinator) finishStage(logger *zap.Logger, stage Stage, results []RoleResult) {
	failed := 0
	for _, r := range results {
		outcome := r.Outcome
		if outcome == "" {
			outcome = OutcomeOK
			if r.Failed() {
				outcome = OutcomeError
			}
		}
		if outcome == OutcomeError {
			failed++
		}
		if c.Metrics != nil {
			c.Metrics.RecordStageResult(string(stage), r.Role, string(outcome))
		}
	}
	logger.Info("stage completed", zap.String("stage", string(stage)), zap.Int("results", len(results)), zap.Int("failed", failed))
	if c.Observer != nil {
		c.Observer(stage, append([]RoleResult(nil), results...))
	}
}

func (c *Coordinator) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}
