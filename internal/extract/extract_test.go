package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantStatus   Status
		wantStrategy string
		wantSummary  interface{}
	}{
		{
			name:         "json fence",
			raw:          "```json\n{\"summary\":\"S\",\"bullets\":[\"a\",\"b\"]}\n```",
			wantStatus:   Parsed,
			wantStrategy: StrategyFence,
			wantSummary:  "S",
		},
		{
			name:         "untagged fence with prose",
			raw:          "Here you go:\n```\n{\"summary\":\"fenced\"}\n```\nThanks! {not json}",
			wantStatus:   Parsed,
			wantStrategy: StrategyFence,
			wantSummary:  "fenced",
		},
		{
			name:         "uppercase tag",
			raw:          "```JSON\n{\"summary\":\"upper\"}\n```",
			wantStatus:   Parsed,
			wantStrategy: StrategyFence,
			wantSummary:  "upper",
		},
		{
			name:         "bare object in prose",
			raw:          "Result: {\"summary\":\"bare\",\"bullets\":[]} -- end",
			wantStatus:   Parsed,
			wantStrategy: StrategyBraces,
			wantSummary:  "bare",
		},
		{
			name:         "broken fence falls back to braces",
			raw:          "```json\n{\"summary\": oops}\n```",
			wantStatus:   ParseError,
			wantStrategy: "",
		},
		{
			name:         "nested object inside fence",
			raw:          "```json\n{\"summary\":\"n\",\"meta\":{\"k\":1}}\n```",
			wantStatus:   Parsed,
			wantStrategy: StrategyFence,
			wantSummary:  "n",
		},
		{
			name:         "prose inside first fence",
			raw:          "```json\n{\"summary\":\"a\"}\nNote: trimmed for length.\n```\nAlternatively:\n```\n{\"summary\":\"b\"}\n```",
			wantStatus:   Parsed,
			wantStrategy: StrategyFence,
			wantSummary:  "a",
		},
		{
			name:         "first fence without object",
			raw:          "```\nno object here\n```\n```json\n{\"summary\":\"second\"}\n```",
			wantStatus:   Parsed,
			wantStrategy: StrategyFence,
			wantSummary:  "second",
		},
		{
			name:       "no braces",
			raw:        "I cannot help with that.",
			wantStatus: NotFound,
		},
		{
			name:       "closing brace before opening",
			raw:        "} nothing {",
			wantStatus: NotFound,
		},
		{
			name:       "empty",
			raw:        "",
			wantStatus: NotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.raw)
			assert.Equal(t, tt.wantStatus, res.Status, res.Status.String())
			assert.Equal(t, tt.wantStrategy, res.Strategy)
			if tt.wantStatus == Parsed {
				require.NotNil(t, res.Object)
				assert.Equal(t, tt.wantSummary, res.Object["summary"])
			}
			if tt.wantStatus == ParseError {
				assert.NotEmpty(t, res.Snippet)
				assert.Error(t, res.Err)
			}
		})
	}
}

func TestParseIsDeterministic(t *testing.T) {
	raw := "Sure!\n```json\n{\"summary\":\"x\",\"bullets\":[\"1\",\"2\",\"3\"]}\n```"
	first := Parse(raw)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Parse(raw))
	}
}

func TestParseErrorSnippetIsBounded(t *testing.T) {
	raw := "{" + strings.Repeat("x", 5000) + "}"
	res := Parse(raw)
	assert.Equal(t, ParseError, res.Status)
	assert.Len(t, []rune(res.Snippet), MaxSnippet)
}

func TestFenceRoundTrip(t *testing.T) {
	res := Parse("```json\n{\"summary\":\"S\",\"bullets\":[\"a\",\"b\"]}\n```")
	require.Equal(t, Parsed, res.Status)

	summary, points := Normalize(res.Object, 5)
	assert.Equal(t, "S", summary)
	assert.Equal(t, []string{"a", "b"}, points)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		obj         map[string]interface{}
		limit       int
		wantSummary string
		wantPoints  []string
	}{
		{
			name:        "trims and drops empties",
			obj:         map[string]interface{}{"summary": "  padded  ", "bullets": []interface{}{" a ", "", "   ", "b"}},
			limit:       5,
			wantSummary: "padded",
			wantPoints:  []string{"a", "b"},
		},
		{
			name:        "caps at limit",
			obj:         map[string]interface{}{"summary": "s", "bullets": []interface{}{"1", "2", "3", "4", "5", "6", "7"}},
			limit:       5,
			wantSummary: "s",
			wantPoints:  []string{"1", "2", "3", "4", "5"},
		},
		{
			name:        "stringifies non-strings",
			obj:         map[string]interface{}{"summary": 42.0, "bullets": []interface{}{true, 3.5, nil, map[string]interface{}{"k": "v"}}},
			limit:       5,
			wantSummary: "42",
			wantPoints:  []string{"true", "3.5", `{"k":"v"}`},
		},
		{
			name:        "bullets not an array",
			obj:         map[string]interface{}{"summary": "s", "bullets": "one, two"},
			limit:       5,
			wantSummary: "s",
			wantPoints:  []string{},
		},
		{
			name:        "missing fields",
			obj:         map[string]interface{}{},
			limit:       3,
			wantSummary: "",
			wantPoints:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, points := Normalize(tt.obj, tt.limit)
			assert.Equal(t, tt.wantSummary, summary)
			assert.Equal(t, tt.wantPoints, points)
		})
	}
}
