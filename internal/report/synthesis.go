package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Payload is the structured verdict the synthesizer is asked to emit.
type Payload struct {
	FinalAnswer        string     `json:"final_answer"`
	AgreementPoints    []string   `json:"agreement_points"`
	DisagreementPoints []string   `json:"disagreement_points"`
	Risks              []string   `json:"risks"`
	OpenQuestions      []string   `json:"open_questions"`
	NextActions        []string   `json:"next_actions"`
	Confidence         Confidence `json:"confidence"`
}

// Confidence is a fraction in [0,1]. It decodes from a JSON number or a numeric string.
type Confidence float64

func (c *Confidence) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*c = 0
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("confidence %s is not a number", string(b))
	}
	*c = Confidence(v)
	return nil
}

// Synthesis is the parsed synthesizer output: either a structured Payload or
// the raw text when the content was not a JSON object.
type Synthesis struct {
	Payload Payload
	// Raw holds the original content when parsing failed; empty for structured results.
	Raw        string
	structured bool
}

// Structured reports whether the content parsed as a Payload.
func (s Synthesis) Structured() bool {
	return s.structured
}

// Parse decodes synthesizer content. It never fails: content that is not a
// well-formed JSON object becomes a raw fallback with the text as final answer
// and zero confidence. Inside an object each field is decoded on its own, so a
// badly typed field only loses that field.
func Parse(content string) Synthesis {
	body := stripFence(content)
	if strings.HasPrefix(body, "{") {
		var fields map[string]json.RawMessage
		dec := json.NewDecoder(bytes.NewReader([]byte(body)))
		if err := dec.Decode(&fields); err == nil && !dec.More() {
			return Synthesis{Payload: payloadFromFields(fields), structured: true}
		}
	}
	return Synthesis{
		Payload: Payload{FinalAnswer: content},
		Raw:     content,
	}
}

func payloadFromFields(fields map[string]json.RawMessage) Payload {
	var p Payload
	p.FinalAnswer = text(fields["final_answer"])
	if raw, ok := fields["confidence"]; ok {
		var c Confidence
		if err := c.UnmarshalJSON(raw); err == nil {
			p.Confidence = c
		}
	}
	p.AgreementPoints = items(fields["agreement_points"])
	p.DisagreementPoints = items(fields["disagreement_points"])
	p.Risks = items(fields["risks"])
	p.OpenQuestions = items(fields["open_questions"])
	p.NextActions = items(fields["next_actions"])
	return p
}

// items reads a list field; entries that are not strings keep their compact JSON form.
// A scalar in place of a list becomes a single entry.
func items(raw json.RawMessage) []string {
	if len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return []string{text(raw)}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, text(item))
	}
	return out
}

func text(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	raw = bytes.TrimSpace(raw)
	if string(raw) == "null" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// stripFence removes a surrounding Markdown code fence such as ```json ... ```.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		if lang := strings.TrimSpace(inner[:nl]); !strings.ContainsAny(lang, "{[ ") {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}
