package testutils

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// AnyValue in expected JSON matches whatever the actual document holds at
// that key, as long as the key is present.
const AnyValue = "<<ANY>>"

// JSONAsserter compares JSON documents structurally. Keys present only in
// the actual document are ignored unless Strict is called.
type JSONAsserter struct {
	t      *testing.T
	strict bool
}

// NewJSONAsserter creates a lenient JSONAsserter.
func NewJSONAsserter(t *testing.T) *JSONAsserter {
	return &JSONAsserter{t: t}
}

// Strict makes keys missing from expected count as differences.
func (ja *JSONAsserter) Strict() *JSONAsserter {
	ja.strict = true
	return ja
}

// Assert fails the test with an annotated diff when the documents differ.
func (ja *JSONAsserter) Assert(actualJSON, expectedJSON string) {
	ja.t.Helper()
	if diff := ja.Diff(actualJSON, expectedJSON); diff != "" {
		ja.t.Errorf("JSON mismatch (- expected, + actual):\n%s", diff)
	}
}

// Diff returns an empty string when the documents match.
func (ja *JSONAsserter) Diff(actualJSON, expectedJSON string) string {
	var expected, actual any
	if err := json.Unmarshal([]byte(expectedJSON), &expected); err != nil {
		return fmt.Sprintf("expected is not JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(actualJSON), &actual); err != nil {
		return fmt.Sprintf("actual is not JSON: %v\n%s", err, actualJSON)
	}

	actual = ja.project(expected, actual)

	// gojsondiff wants objects at the root
	left := map[string]any{"$": expected}
	right := map[string]any{"$": actual}
	lb, _ := json.Marshal(left)
	rb, _ := json.Marshal(right)

	d, err := gojsondiff.New().Compare(lb, rb)
	if err != nil {
		return err.Error()
	}
	if !d.Modified() {
		return ""
	}
	out, _ := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{ShowArrayIndex: true}).Format(d)
	return out
}

// project shapes actual after expected: AnyValue slots take the actual value
// and, unless strict, keys expected does not name are dropped.
func (ja *JSONAsserter) project(expected, actual any) any {
	if s, ok := expected.(string); ok && s == AnyValue && actual != nil {
		return actual
	}

	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return actual
		}
		out := make(map[string]any, len(act))
		for k, v := range act {
			e, named := exp[k]
			switch {
			case named:
				out[k] = ja.project(e, v)
			case ja.strict:
				out[k] = v
			}
		}
		for k, e := range exp {
			if s, ok := e.(string); ok && s == AnyValue {
				if _, present := act[k]; present {
					exp[k] = act[k]
				}
			}
		}
		return out
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return actual
		}
		out := make([]any, len(act))
		for i, v := range act {
			if i < len(exp) {
				if s, ok := exp[i].(string); ok && s == AnyValue {
					exp[i] = v
				}
				out[i] = ja.project(exp[i], v)
			} else {
				out[i] = v
			}
		}
		return out
	}
	return actual
}
