package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// currentDate returns today's date in ISO 8601 format (UTC).
func currentDate() string {
	return time.Now().UTC().Format("2006-01-02")
}

// modelVerdict is the JSON structure expected from the LLM.
type modelVerdict struct {
	Verdict string  `json:"verdict"`
	Scores  Scores  `json:"scores"`
	Claims  []Claim `json:"claims"`
	Report  string  `json:"report"`
}

// complete is the raw model call, indirected so tests can stub the model.
var complete = func(ctx context.Context, prompt string) (string, error) {
	return cfg.LLMClient.Complete(ctx, "", prompt)
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// CallLLM sends a prompt using the configured temperature and max_tokens.
func CallLLM(ctx context.Context, prompt string) (string, error) {
	metrics.LLMCalls.Add(1)
	resp, err := complete(ctx, prompt)
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", err
	}
	return stripFences(resp), nil
}

// AnalyzeText asks the model for a structured verdict over normalized text.
func AnalyzeText(ctx context.Context, text string) (*AnalysisOutput, error) {
	prompt := fmt.Sprintf(analysisPrompt, currentDate(), text)
	return callAndParse(ctx, prompt)
}

// AnalyzeMedia asks the model for a verdict over an inline media payload.
// dataURI must be a data:<mediatype>;base64,... string; multimodal
// OpenAI-compatible endpoints accept it inline.
func AnalyzeMedia(ctx context.Context, dataURI string) (*AnalysisOutput, error) {
	prompt := fmt.Sprintf(mediaAnalysisPrompt, currentDate(), dataURI)
	return callAndParse(ctx, prompt)
}

func callAndParse(ctx context.Context, prompt string) (*AnalysisOutput, error) {
	raw, err := CallLLM(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseVerdict(raw), nil
}

// parseVerdict decodes the model response leniently: strict JSON first, then
// the first JSON object found in the text, then a degraded text-only verdict.
// A malformed model response is a degradation, not a request failure.
func parseVerdict(raw string) *AnalysisOutput {
	var v modelVerdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		if obj := extractJSONObject(raw); obj != "" {
			if err := json.Unmarshal([]byte(obj), &v); err != nil {
				v = modelVerdict{}
			}
		}
	}
	if v.Verdict == "" {
		return &AnalysisOutput{
			Verdict: "unverifiable",
			Report:  raw,
			Meta:    Meta{Warnings: []string{"model returned unstructured output"}},
		}
	}
	return &AnalysisOutput{
		Verdict: normalizeVerdict(v.Verdict),
		Scores:  clampScores(v.Scores),
		Claims:  v.Claims,
		Report:  v.Report,
	}
}

// extractJSONObject returns the outermost {...} block in s, tolerating prose
// around it. Returns "" when braces never balance.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

var knownVerdicts = map[string]bool{
	"accurate": true, "mostly_accurate": true, "misleading": true,
	"false": true, "unverifiable": true,
}

func normalizeVerdict(v string) string {
	v = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(v, " ", "_")))
	if knownVerdicts[v] {
		return v
	}
	return "unverifiable"
}

func clampScores(s Scores) Scores {
	clamp := func(f float64) float64 {
		if f < 0 {
			return 0
		}
		if f > 1 {
			return 1
		}
		return f
	}
	return Scores{
		Credibility:  clamp(s.Credibility),
		Factuality:   clamp(s.Factuality),
		Manipulation: clamp(s.Manipulation),
	}
}
