package council

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Personaz1/openclaw-council/internal/config"
	"github.com/Personaz1/openclaw-council/internal/council"
	"github.com/Personaz1/openclaw-council/internal/report"
	"github.com/Personaz1/openclaw-council/internal/rpc"
)

// Runner executes a council run and yields streamed events.
type Runner interface {
	Run(ctx context.Context, req rpc.RunCouncilRequest) (<-chan rpc.RunEvent, error)
}

// CouncilRunner bridges the council pipeline to RPC events.
type CouncilRunner struct {
	Config  *config.Config
	Factory council.ProviderFactory
	Metrics council.Metrics
	Logger  *zap.Logger
}

// Run starts the pipeline in the background and streams one event per
// completed stage followed by a done event.
func (r *CouncilRunner) Run(ctx context.Context, req rpc.RunCouncilRequest) (<-chan rpc.RunEvent, error) {
	if r.Config == nil {
		return nil, errors.New("council config unavailable")
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.New("query is required")
	}
	corr := req.CorrelationID
	if corr == "" {
		corr = uuid.NewString()
	}

	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("correlation_id", corr))

	out := make(chan rpc.RunEvent, 4)
	send := func(ev rpc.RunEvent) {
		ev.CorrelationID = corr
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}

	coord := council.New(r.Config, r.Factory, logger, r.Metrics)
	coord.Observer = func(stage council.Stage, results []council.RoleResult) {
		send(rpc.RunEvent{Type: rpc.EventStage, Stage: string(stage), Results: results})
	}

	go func() {
		defer close(out)
		run, err := coord.Run(ctx, req.Query)
		if err != nil {
			send(rpc.RunEvent{Type: rpc.EventError, Error: err.Error()})
			return
		}
		send(rpc.RunEvent{Type: rpc.EventDone, Run: run, Report: report.Render(run)})
	}()
	return out, nil
}
