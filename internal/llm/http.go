package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// postJSON sends payload and returns the status and body. A non-nil error means no usable response arrived.
func postJSON(ctx context.Context, client *http.Client, url, token string, payload interface{}) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// isTransient reports upstream conditions that clear on their own, like a cold model.
func isTransient(status int, body string) bool {
	switch status {
	case 529:
		return true
	case http.StatusServiceUnavailable:
		lower := strings.ToLower(body)
		for _, marker := range []string{"loading", "overloaded", "capacity"} {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

func statusError(provider string, status int, body []byte) *Error {
	text := strings.TrimSpace(string(body))
	return &Error{
		Provider:   provider,
		StatusCode: status,
		Body:       truncate(text, maxErrorBody),
		Transient:  isTransient(status, text),
	}
}

// generatedText reads the text from an array of objects, an object, or a raw string, in that order.
func generatedText(body []byte, fields ...string) (string, error) {
	var list []map[string]interface{}
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		if text, ok := textField(list[0], fields); ok {
			return text, nil
		}
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err == nil {
		if text, ok := textField(obj, fields); ok {
			return text, nil
		}
	}

	var raw string
	if err := json.Unmarshal(body, &raw); err == nil {
		return raw, nil
	}

	return "", ErrUnexpectedShape
}

func textField(obj map[string]interface{}, fields []string) (string, bool) {
	for _, f := range fields {
		if text, ok := obj[f].(string); ok {
			return text, true
		}
	}
	return "", false
}
