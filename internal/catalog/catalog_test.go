package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCase_Rendering(t *testing.T) {
	cases := []struct {
		name     string
		tc       TestCase
		stdin    string
		expected string
	}{
		{name: "numbers", tc: tc(`[1, 2]`, `3`), stdin: "1\n2", expected: "3"},
		{name: "bool output", tc: tc(`[4]`, `true`), stdin: "4", expected: "true"},
		{name: "string input", tc: tc(`"hello"`, `"olleh"`), stdin: "hello", expected: "olleh"},
		{name: "string array", tc: tc(`["a", "b"]`, `"ab"`), stdin: "a\nb", expected: "ab"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.stdin, c.tc.Stdin())
			assert.Equal(t, c.expected, c.tc.Expected())
		})
	}
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s := NewStatic(Builtin())

	p, err := s.ByID(ctx, "multiplyByTen")
	require.NoError(t, err)
	assert.Len(t, p.TestCases, 4)
	assert.Equal(t, 4, p.Ref().TestCount)

	_, err = s.ByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	r, err := s.Random(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)

	_, err = NewStatic(nil).Random(ctx)
	assert.ErrorIs(t, err, ErrNoProblems)
}

func TestProblem_JSON(t *testing.T) {
	p, err := NewStatic(Builtin()).ByID(context.Background(), "sumTwoNumbers")
	require.NoError(t, err)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"testCases":[{"input":[1,2],"expectedOutput":3}`)
}

type countingCatalog struct {
	Catalog
	calls atomic.Int32
}

func (c *countingCatalog) ByID(ctx context.Context, id string) (Problem, error) {
	c.calls.Add(1)
	return c.Catalog.ByID(ctx, id)
}

func TestCached_ByID(t *testing.T) {
	ctx := context.Background()
	backend := &countingCatalog{Catalog: NewStatic(Builtin())}
	c := NewCached(backend)

	for i := 0; i < 3; i++ {
		p, err := c.ByID(ctx, "isEven")
		require.NoError(t, err)
		assert.Equal(t, "isEven", p.ID)
	}
	assert.Equal(t, int32(1), backend.calls.Load())

	_, err := c.ByID(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCached_RandomPrimesByID(t *testing.T) {
	ctx := context.Background()
	backend := &countingCatalog{Catalog: NewStatic(Builtin())}
	c := NewCached(backend)

	p, err := c.Random(ctx)
	require.NoError(t, err)

	_, err = c.ByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(0), backend.calls.Load())
}
