package council

import (
	"fmt"
	"strings"

	"github.com/Personaz1/openclaw-council/internal/config"
)

// ErrorPrefix marks a RoleResult whose content is a failure description.
const ErrorPrefix = "[ERROR] "

// Stage names one pipeline phase. Values match the run document keys.
type Stage string

const (
	StageRound1    Stage = "round1"
	StageCritic    Stage = "critic_round"
	StageSynthesis Stage = "synthesis"
)

// Outcome classifies how a RoleResult was produced.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeError    Outcome = "error"
	OutcomeFallback Outcome = "fallback"
)

// RoleResult is one role's output for one stage.
type RoleResult struct {
	Role     string  `json:"role"`
	Provider string  `json:"provider"`
	Content  string  `json:"content"`
	Outcome  Outcome `json:"-"`
}

// Failed reports whether the content is an error marker. It also works for
// results read back from a run document, where Outcome is not stored.
func (r RoleResult) Failed() bool {
	return r.Outcome == OutcomeError || strings.HasPrefix(r.Content, ErrorPrefix)
}

// Run is the document produced by one pipeline execution.
type Run struct {
	Query       string       `json:"query"`
	Round1      []RoleResult `json:"round1"`
	CriticRound []RoleResult `json:"critic_round"`
	Synthesis   RoleResult   `json:"synthesis"`
}

// Degraded counts results in the run that carry error content.
func (r *Run) Degraded() int {
	n := 0
	for _, res := range r.Round1 {
		if res.Failed() {
			n++
		}
	}
	for _, res := range r.CriticRound {
		if res.Failed() {
			n++
		}
	}
	if r.Synthesis.Failed() {
		n++
	}
	return n
}

func errorResult(role config.RoleConfig, format string, args ...any) RoleResult {
	return RoleResult{
		Role:     role.Name,
		Provider: role.Provider,
		Content:  ErrorPrefix + fmt.Sprintf(format, args...),
		Outcome:  OutcomeError,
	}
}
