package catalog

import (
	"context"
	"encoding/json"
	"math/rand/v2"
)

// Static serves a fixed problem set from memory.
type Static struct {
	problems []Problem
	byID     map[string]Problem
}

func NewStatic(problems []Problem) *Static {
	s := &Static{problems: problems, byID: make(map[string]Problem, len(problems))}
	for _, p := range problems {
		s.byID[p.ID] = p
	}
	return s
}

func (s *Static) Random(_ context.Context) (Problem, error) {
	if len(s.problems) == 0 {
		return Problem{}, ErrNoProblems
	}
	return s.problems[rand.IntN(len(s.problems))], nil
}

func (s *Static) ByID(_ context.Context, id string) (Problem, error) {
	p, ok := s.byID[id]
	if !ok {
		return Problem{}, ErrNotFound
	}
	return p, nil
}

func tc(input, expected string) TestCase {
	return TestCase{Input: json.RawMessage(input), ExpectedOutput: json.RawMessage(expected)}
}

// Builtin is the problem set a fresh deployment starts with.
func Builtin() []Problem {
	return []Problem{
		{
			ID:          "sumTwoNumbers",
			Title:       "Sum of Two Numbers",
			Description: "Write a function that takes two numbers, `a` and `b`, and returns their sum.",
			Example:     "Input: a = 5, b = 3\nOutput: 8",
			Difficulty:  "easy",
			TestCases: []TestCase{
				tc(`[1, 2]`, `3`),
				tc(`[5, 5]`, `10`),
				tc(`[-1, 1]`, `0`),
				tc(`[0, 0]`, `0`),
				tc(`[100, 200]`, `300`),
			},
		},
		{
			ID:          "multiplyByTen",
			Title:       "Multiply by Ten",
			Description: "Write a function that takes a number `x` and returns `x` multiplied by 10.",
			Example:     "Input: x = 7\nOutput: 70",
			Difficulty:  "easy",
			TestCases: []TestCase{
				tc(`[1]`, `10`),
				tc(`[0]`, `0`),
				tc(`[-5]`, `-50`),
				tc(`[100]`, `1000`),
			},
		},
		{
			ID:          "isEven",
			Title:       "Is Even?",
			Description: "Write a function that takes a number `n` and returns `true` if it's even, `false` otherwise.",
			Example:     "Input: n = 4\nOutput: true",
			Difficulty:  "easy",
			TestCases: []TestCase{
				tc(`[2]`, `true`),
				tc(`[3]`, `false`),
				tc(`[0]`, `true`),
				tc(`[100]`, `true`),
				tc(`[99]`, `false`),
			},
		},
	}
}
