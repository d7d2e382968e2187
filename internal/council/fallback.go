package council

import (
	"encoding/json"
	"fmt"

	"github.com/Personaz1/openclaw-council/internal/llm"
)

// MockPrefix starts every synthetic placeholder answer.
const MockPrefix = "[MOCK:"

const mockQueryPreview = 180

// placeholder returns the deterministic stand-in used when allow_mock_fallback
// is set and a role exhausted its attempts. The synthesizer gets a structured
// verdict so the report stays renderable.
func placeholder(role, synthesizer, query string) string {
	if synthesizer != "" && role == synthesizer {
		payload := map[string]any{
			"final_answer": fmt.Sprintf("%s%s] Ship a minimal version with demo cases and a public roadmap.", MockPrefix, role),
			"agreement_points": []string{
				"A short time-to-value matters",
				"Disagreements and risks must stay visible",
			},
			"disagreement_points": []string{
				"How many roles to enable by default",
			},
			"risks": []string{
				"Provider rate limits and quotas",
				"Noisy roles without strict prompts",
			},
			"open_questions": []string{
				"Which quality metrics define a good answer",
			},
			"next_actions": []string{
				"Collect reference queries",
				"Compare answers against them",
			},
			"confidence": 0.5,
		}
		b, _ := json.Marshal(payload)
		return string(b)
	}
	return fmt.Sprintf("%s%s]\nQuery: %s\n"+
		"- Hypothesis: a fast MVP with transparent output.\n"+
		"- Risk: weak sources and overstated confidence.\n"+
		"- Next step: gather 3-5 test cases and compare quality.",
		MockPrefix, role, llm.Truncate(query, mockQueryPreview))
}
