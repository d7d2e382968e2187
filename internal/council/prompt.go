package council

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// buildCriticQuery concatenates the query with every labelled round-1 answer.
func buildCriticQuery(query string, round1 []RoleResult) string {
	blocks := make([]string, 0, len(round1))
	for _, r := range round1 {
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", r.Role, r.Content))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Original query:\n%s\n\n", query)
	fmt.Fprintf(&b, "Round1 outputs:\n%s\n\n", strings.Join(blocks, "\n\n"))
	b.WriteString("Critique weaknesses and contradictions.")
	return b.String()
}

type synthesisInput struct {
	Query       string       `json:"query"`
	Round1      []RoleResult `json:"round1"`
	CriticRound []RoleResult `json:"critic_round"`
}

// buildSynthesisQuery serializes both rounds as indented JSON for the synthesizer.
func buildSynthesisQuery(query string, round1, critic []RoleResult) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(synthesisInput{Query: query, Round1: round1, CriticRound: critic}); err != nil {
		return "", fmt.Errorf("encode synthesis input: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
