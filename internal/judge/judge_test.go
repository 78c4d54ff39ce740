package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DoyleJ11/codeduel-backend/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

// fakeJudge queues every batch once, then reports results from outputs.
func fakeJudge(t *testing.T, outputs []string, accepted []bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /submissions/batch", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-RapidAPI-Key"))
		var body struct {
			Submissions []Submission `json:"submissions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		tokens := make([]map[string]string, len(body.Submissions))
		for i := range body.Submissions {
			tokens[i] = map[string]string{"token": string(rune('a' + i))}
		}
		_ = json.NewEncoder(w).Encode(tokens)
	})
	mux.HandleFunc("GET /submissions/batch", func(w http.ResponseWriter, r *http.Request) {
		tokens := strings.Split(r.URL.Query().Get("tokens"), ",")
		n := polls.Add(1)
		rs := make([]Result, len(tokens))
		for i := range tokens {
			switch {
			case n == 1:
				rs[i] = Result{Status: Status{ID: StatusProcessing}}
			case accepted[i]:
				rs[i] = Result{Status: Status{ID: StatusAccepted}, Stdout: strp(outputs[i] + "\n")}
			default:
				rs[i] = Result{Status: Status{ID: 4, Description: "Wrong Answer"}, Stdout: strp(outputs[i])}
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"submissions": rs})
	})
	mux.HandleFunc("POST /submissions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		_ = json.NewEncoder(w).Encode(Result{Status: Status{ID: StatusAccepted}, Stdout: strp("8")})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &polls
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: url, APIKey: "secret", PollInterval: 5 * time.Millisecond, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestGrade_CountsMatchingAcceptedOutputs(t *testing.T) {
	srv, polls := fakeJudge(t, []string{"3", "10", "1"}, []bool{true, true, true})
	c := newTestClient(t, srv.URL)

	cases := []catalog.TestCase{
		{Input: json.RawMessage(`[1, 2]`), ExpectedOutput: json.RawMessage(`3`)},
		{Input: json.RawMessage(`[5, 5]`), ExpectedOutput: json.RawMessage(`10`)},
		{Input: json.RawMessage(`[-1, 1]`), ExpectedOutput: json.RawMessage(`0`)},
	}
	v, err := c.Grade(context.Background(), "print(a+b)", 71, cases)
	require.NoError(t, err)

	assert.Equal(t, 2, v.PassedCount)
	assert.Equal(t, 3, v.TotalCount)
	assert.Len(t, v.Results, 3)
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestGrade_WrongAnswerIsNotAPass(t *testing.T) {
	srv, _ := fakeJudge(t, []string{"3"}, []bool{false})
	c := newTestClient(t, srv.URL)

	v, err := c.Grade(context.Background(), "x", 71, []catalog.TestCase{
		{Input: json.RawMessage(`[1, 2]`), ExpectedOutput: json.RawMessage(`3`)},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, v.PassedCount)
}

func TestExecute(t *testing.T) {
	srv, _ := fakeJudge(t, nil, nil)
	c := newTestClient(t, srv.URL)

	res, err := c.Execute(context.Background(), Submission{SourceCode: "x", LanguageID: 71, Stdin: "5\n3"})
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, res.Status.ID)
	assert.Equal(t, "8", res.stdout())
}

func TestBatch_TimesOutWhileStillProcessing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`[{"token":"a"}]`))
			return
		}
		_, _ = w.Write([]byte(`{"submissions":[{"status":{"id":1}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, PollInterval: 5 * time.Millisecond, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.Batch(context.Background(), []Submission{{SourceCode: "x", LanguageID: 71}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_ReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Execute(context.Background(), Submission{SourceCode: "x"})
	assert.ErrorIs(t, err, ErrBadResponse)
	assert.Contains(t, err.Error(), "429")
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
