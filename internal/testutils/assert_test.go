package testutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONDiff(t *testing.T) {
	tests := []struct {
		name     string
		actual   string
		expected string
		strict   bool
		match    bool
	}{
		{name: "equal", actual: `{"a":1,"b":[1,2]}`, expected: `{"b":[1,2],"a":1}`, match: true},
		{name: "value differs", actual: `{"a":1}`, expected: `{"a":2}`},
		{name: "extra key ignored", actual: `{"a":1,"extra":true}`, expected: `{"a":1}`, match: true},
		{name: "extra key strict", actual: `{"a":1,"extra":true}`, expected: `{"a":1}`, strict: true},
		{name: "missing key", actual: `{"a":1}`, expected: `{"a":1,"b":2}`},
		{name: "any value", actual: `{"ts":"2025-03-01T12:00:00Z","a":1}`, expected: `{"ts":"<<ANY>>","a":1}`, match: true},
		{name: "any value needs key", actual: `{"a":1}`, expected: `{"ts":"<<ANY>>","a":1}`},
		{name: "nested extra key", actual: `{"Body":{"average":72,"x":1}}`, expected: `{"Body":{"average":72}}`, match: true},
		{name: "root array", actual: `[{"id":"a","rssi":-50}]`, expected: `[{"id":"a"}]`, match: true},
		{name: "array length", actual: `[1,2,3]`, expected: `[1,2]`},
		{name: "invalid actual", actual: `{`, expected: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ja := NewJSONAsserter(t)
			if tt.strict {
				ja.Strict()
			}
			diff := ja.Diff(tt.actual, tt.expected)
			if tt.match {
				assert.Empty(t, diff)
			} else {
				assert.NotEmpty(t, diff)
			}
		})
	}
}

func TestTextDiff(t *testing.T) {
	ta := NewTextAsserter(t)

	assert.Empty(t, ta.Diff("a  \nb\n", "\na\nb"))

	diff := ta.Diff("NAME  ID\nPolar  1\n", "NAME  ID\nMovesense  1\n")
	assert.Contains(t, diff, "-Movesense  1")
	assert.Contains(t, diff, "+Polar  1")

	colored := NewTextAsserter(t).Colored().Diff("x\n", "y\n")
	assert.Contains(t, colored, "\x1b[")
}
