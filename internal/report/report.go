package report

import (
	"strconv"
	"strings"

	"github.com/Personaz1/openclaw-council/internal/council"
)

// EmptyBullet stands in for an empty list section.
const EmptyBullet = "- —"

// Render formats a run as a Markdown report with a fixed section layout.
func Render(run *council.Run) string {
	var query, content string
	if run != nil {
		query = run.Query
		content = run.Synthesis.Content
	}
	s := Parse(content)
	p := s.Payload

	lines := []string{
		"# Council Report",
		"",
		"## Query",
		query,
		"",
		"## Final",
		p.FinalAnswer,
		"",
		"**Confidence:** " + FormatConfidence(p.Confidence),
		"",
	}
	lines = appendSection(lines, "Agreement", p.AgreementPoints)
	lines = appendSection(lines, "Disagreement", p.DisagreementPoints)
	lines = appendSection(lines, "Risks", p.Risks)
	lines = appendSection(lines, "Open Questions", p.OpenQuestions)
	lines = appendSection(lines, "Next Actions", p.NextActions)

	return strings.Join(lines[:len(lines)-1], "\n")
}

// FormatConfidence renders a fraction as a percentage with one decimal, e.g. 0.75 -> "75.0%".
func FormatConfidence(c Confidence) string {
	return strconv.FormatFloat(float64(c)*100, 'f', 1, 64) + "%"
}

func appendSection(lines []string, title string, items []string) []string {
	lines = append(lines, "## "+title, bullets(items), "")
	return lines
}

func bullets(items []string) string {
	if len(items) == 0 {
		return EmptyBullet
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, "- "+item)
	}
	return strings.Join(out, "\n")
}
