package council

import (
	"context"

	"github.com/Personaz1/openclaw-council/internal/council"
	"github.com/Personaz1/openclaw-council/internal/report"
	"github.com/Personaz1/openclaw-council/internal/rpc"
)

// replayRunner streams a fixed run without contacting any provider.
type replayRunner struct {
	result *council.Run
}

func (s replayRunner) Run(ctx context.Context, req rpc.RunCouncilRequest) (<-chan rpc.RunEvent, error) {
	run := s.result
	if run == nil {
		run = &council.Run{Query: req.Query}
	}
	out := make(chan rpc.RunEvent, 4)
	go func() {
		defer close(out)
		out <- rpc.RunEvent{Type: rpc.EventStage, CorrelationID: req.CorrelationID, Stage: string(council.StageRound1), Results: run.Round1}
		out <- rpc.RunEvent{Type: rpc.EventStage, CorrelationID: req.CorrelationID, Stage: string(council.StageCritic), Results: run.CriticRound}
		out <- rpc.RunEvent{Type: rpc.EventStage, CorrelationID: req.CorrelationID, Stage: string(council.StageSynthesis), Results: []council.RoleResult{run.Synthesis}}
		out <- rpc.RunEvent{Type: rpc.EventDone, CorrelationID: req.CorrelationID, Run: run, Report: report.Render(run)}
	}()
	return out, nil
}
