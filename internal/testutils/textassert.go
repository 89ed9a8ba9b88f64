package testutils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
)

// TextAsserter compares command output line by line. Leading and trailing
// blank lines and trailing spaces are not significant.
type TextAsserter struct {
	t      *testing.T
	colors bool
}

// NewTextAsserter creates a TextAsserter with plain diffs.
func NewTextAsserter(t *testing.T) *TextAsserter {
	return &TextAsserter{t: t}
}

// Colored highlights removed and added lines in failure output.
func (ta *TextAsserter) Colored() *TextAsserter {
	ta.colors = true
	return ta
}

// Assert fails the test with a unified diff when the texts differ.
func (ta *TextAsserter) Assert(actual, expected string) {
	ta.t.Helper()
	if diff := ta.Diff(actual, expected); diff != "" {
		ta.t.Errorf("text mismatch:\n%s", diff)
	}
}

// Diff returns an empty string when the texts match.
func (ta *TextAsserter) Diff(actual, expected string) string {
	a, e := normalizeText(actual), normalizeText(expected)
	if a == e {
		return ""
	}
	edits := myers.ComputeEdits("", e, a)
	diff := fmt.Sprint(gotextdiff.ToUnified("expected", "actual", e, edits))
	if ta.colors {
		diff = colorizeDiff(diff)
	}
	return diff
}

func normalizeText(s string) string {
	lines := strings.Split(strings.Trim(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.Join(lines, "\n") + "\n"
}

func colorizeDiff(diff string) string {
	del := color.New(color.FgRed)
	add := color.New(color.FgGreen)
	del.EnableColor()
	add.EnableColor()

	lines := strings.Split(diff, "\n")
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "---"), strings.HasPrefix(l, "+++"):
		case strings.HasPrefix(l, "-"):
			lines[i] = del.Sprint(l)
		case strings.HasPrefix(l, "+"):
			lines[i] = add.Sprint(l)
		}
	}
	return strings.Join(lines, "\n")
}
