package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/a-abukar/cv-review-generator/internal/models"
)

const summaryListLimit = 3

var (
	sectionHeaderPattern = regexp.MustCompile(`###\s*(Content|Design) Review:`)
	jsonFencePattern     = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n?```")
)

var summarySchema = map[string]any{
	"type":     "object",
	"required": []string{"score", "strengths", "improvements", "actionPoints"},
	"properties": map[string]any{
		"score":        map[string]any{"type": "number"},
		"strengths":    map[string]any{"type": "array"},
		"improvements": map[string]any{"type": "array"},
		"actionPoints": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": []string{"object", "string"}},
		},
	},
}

var compiledSummarySchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(summarySchema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("summary.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("summary.json")
})

// ParseSections splits a cv-review completion into its content and design parts.
// A missing design section degrades to an empty one with ParseWarning set; output
// with no headers at all is kept whole as the content review.
func ParseSections(raw string) (models.ReviewSections, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return models.ReviewSections{}, MalformedResponseError("Empty response from model", nil)
	}

	matches := sectionHeaderPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return models.ReviewSections{
			ContentReview: CollapseNewlines(text),
			ParseWarning:  "Response had no section headers; returned as content review",
		}, nil
	}

	var content, design string
	var haveContent, haveDesign bool
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := cleanSection(text[m[1]:end])

		switch text[m[2]:m[3]] {
		case "Content":
			if !haveContent {
				content, haveContent = body, true
			}
		case "Design":
			if !haveDesign {
				design, haveDesign = body, true
			}
		}
	}

	sections := models.ReviewSections{ContentReview: content, DesignReview: design}
	switch {
	case content == "" && design == "":
		return models.ReviewSections{}, MalformedResponseError("Response contained no review content", nil)
	case content == "":
		sections.ParseWarning = "Content review section missing from response"
	case design == "":
		sections.ParseWarning = "Design review section missing from response"
	}
	return sections, nil
}

func cleanSection(s string) string {
	s = sectionHeaderPattern.ReplaceAllString(s, "")
	return CollapseNewlines(s)
}

// ParseSummary extracts the JSON summary object from a completion and normalises it:
// lists are capped at three entries and the score is rounded into [0, 100].
func ParseSummary(raw string) (models.SummaryReport, error) {
	candidate := extractJSONObject(raw)
	if candidate == "" {
		return models.SummaryReport{}, MalformedResponseError("Empty response from model", nil)
	}

	var v any
	if err := json.Unmarshal([]byte(candidate), &v); err != nil {
		return models.SummaryReport{}, MalformedResponseError("Failed to parse summary response", err)
	}

	schema, err := compiledSummarySchema()
	if err != nil {
		return models.SummaryReport{}, &PipelineError{Kind: KindInternal, Message: "summary schema unavailable", Cause: err}
	}
	if err := schema.Validate(v); err != nil {
		return models.SummaryReport{}, MalformedResponseError("Summary response has an unexpected shape", err)
	}

	obj := v.(map[string]any)
	return models.SummaryReport{
		Score:        normaliseScore(obj["score"].(float64)),
		Strengths:    stringItems(obj["strengths"].([]any), summaryListLimit),
		Improvements: stringItems(obj["improvements"].([]any), summaryListLimit),
		ActionPoints: actionPointItems(obj["actionPoints"].([]any), summaryListLimit),
	}, nil
}

// extractJSONObject tries a fenced block, then the first balanced object, then the
// whole trimmed text.
func extractJSONObject(raw string) string {
	text := strings.TrimSpace(raw)

	if m := jsonFencePattern.FindStringSubmatch(text); m != nil {
		if inner := strings.TrimSpace(m[1]); strings.HasPrefix(inner, "{") {
			return inner
		}
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return text
	}
	if obj, ok := balancedObject(text[start:]); ok {
		return obj
	}
	if end := strings.LastIndexByte(text, '}'); end > start {
		return text[start : end+1]
	}
	return text
}

func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
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
				return s[:i+1], true
			}
		}
	}
	return "", false
}

func normaliseScore(score float64) int {
	rounded := math.Round(score)
	switch {
	case math.IsNaN(rounded), rounded < 0:
		return 0
	case rounded > 100:
		return 100
	}
	return int(rounded)
}

// stringItems keeps the first limit entries in order; blanks stay in place.
func stringItems(items []any, limit int) []string {
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, coerceString(item))
	}
	return out
}

func actionPointItems(items []any, limit int) []models.ActionPoint {
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]models.ActionPoint, 0, len(items))
	for _, item := range items {
		var ap models.ActionPoint
		switch v := item.(type) {
		case map[string]any:
			ap.Title = coerceString(v["title"])
			ap.Description = coerceString(v["description"])
		default:
			ap.Title = coerceString(v)
		}
		out = append(out, ap)
	}
	return out
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		for _, key := range []string{"text", "title", "description"} {
			if s := coerceString(t[key]); s != "" {
				return s
			}
		}
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
