package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/DoyleJ11/codeduel-backend/internal/match"
)

var (
	ErrNoProblems = errors.New("catalog: no problems available")
	ErrNotFound   = errors.New("catalog: problem not found")
)

type TestCase struct {
	Input          json.RawMessage `json:"input"`
	ExpectedOutput json.RawMessage `json:"expectedOutput"`
}

type Problem struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Difficulty      string     `json:"difficulty,omitempty"`
	InputFormat     string     `json:"inputFormat,omitempty"`
	OutputFormat    string     `json:"outputFormat,omitempty"`
	Constraints     string     `json:"constraints,omitempty"`
	Example         string     `json:"example,omitempty"`
	TestCases       []TestCase `json:"testCases"`
	Tags            []string   `json:"tags,omitempty"`
	LanguageSupport []string   `json:"languageSupport,omitempty"`
}

func (p Problem) Ref() match.ProblemRef {
	return match.ProblemRef{ID: p.ID, TestCount: len(p.TestCases)}
}

type Catalog interface {
	Random(ctx context.Context) (Problem, error)
	ByID(ctx context.Context, id string) (Problem, error)
}

// Stdin renders the test input the way the judge expects it: array elements
// one per line, strings verbatim, anything else as its JSON text.
func (tc TestCase) Stdin() string {
	var items []json.RawMessage
	if err := json.Unmarshal(tc.Input, &items); err == nil {
		lines := make([]string, len(items))
		for i, it := range items {
			lines[i] = scalar(it)
		}
		return strings.Join(lines, "\n")
	}
	return scalar(tc.Input)
}

// Expected renders the expected output as the judge's stdout would show it.
func (tc TestCase) Expected() string {
	return scalar(tc.ExpectedOutput)
}

func scalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
