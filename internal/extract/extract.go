// Package extract locates and parses the JSON object a model embeds in free text.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type Status int

const (
	// Parsed means Object holds the decoded JSON object.
	Parsed Status = iota
	// NotFound means the text held no candidate object.
	NotFound
	// ParseError means a candidate was found but did not decode; Snippet holds it.
	ParseError
)

func (s Status) String() string {
	switch s {
	case Parsed:
		return "parsed"
	case NotFound:
		return "not_found"
	case ParseError:
		return "parse_error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

const (
	StrategyFence  = "fence"
	StrategyBraces = "braces"
)

// MaxSnippet bounds Result.Snippet.
const MaxSnippet = 500

type Result struct {
	Status   Status
	Object   map[string]interface{}
	Strategy string
	Snippet  string
	Err      error
}

var fenced = regexp.MustCompile("(?s)```(?i:json)?(.*?)```")

// Parse tries each fenced code block in order, then the span from the first '{' to the last '}'.
// Within a fence the same brace span is taken, so prose after the object does not break it.
func Parse(raw string) Result {
	var candidate string
	var lastErr error

	for _, m := range fenced.FindAllStringSubmatch(raw, -1) {
		span, ok := braceSpan(m[1])
		if !ok {
			continue
		}
		candidate = span
		obj, err := decode(span)
		if err == nil {
			return Result{Status: Parsed, Object: obj, Strategy: StrategyFence}
		}
		lastErr = err
	}

	if span, ok := braceSpan(raw); ok {
		candidate = span
		obj, err := decode(span)
		if err == nil {
			return Result{Status: Parsed, Object: obj, Strategy: StrategyBraces}
		}
		lastErr = err
	}

	if candidate == "" {
		return Result{Status: NotFound}
	}
	return Result{Status: ParseError, Snippet: Sample(candidate, MaxSnippet), Err: lastErr}
}

func braceSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func decode(s string) (map[string]interface{}, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("candidate is not a JSON object")
	}
	return obj, nil
}

// Sample returns at most n runes of s.
func Sample(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Normalize pulls summary and bullets from obj. Missing or malformed fields become "" and an empty list.
func Normalize(obj map[string]interface{}, limit int) (string, []string) {
	summary := strings.TrimSpace(stringify(obj["summary"]))

	points := make([]string, 0, limit)
	bullets, ok := obj["bullets"].([]interface{})
	if !ok {
		return summary, points
	}
	for _, b := range bullets {
		if len(points) == limit {
			break
		}
		if s := strings.TrimSpace(stringify(b)); s != "" {
			points = append(points, s)
		}
	}
	return summary, points
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
