// Package judge talks to a Judge0-compatible code execution service.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DoyleJ11/codeduel-backend/internal/catalog"
)

const (
	StatusInQueue    = 1
	StatusProcessing = 2
	StatusAccepted   = 3
)

var (
	ErrNotConfigured = errors.New("judge: no execution service configured")
	ErrBadResponse   = errors.New("judge: unexpected response from execution service")
)

type Config struct {
	BaseURL      string
	APIKey       string
	Host         string
	PollInterval time.Duration
	Timeout      time.Duration
	HTTPClient   *http.Client
}

type Client struct {
	base     *url.URL
	apiKey   string
	host     string
	interval time.Duration
	timeout  time.Duration
	http     *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("judge: parse base url: %w", err)
	}
	c := &Client{
		base:     base,
		apiKey:   cfg.APIKey,
		host:     cfg.Host,
		interval: cfg.PollInterval,
		timeout:  cfg.Timeout,
		http:     cfg.HTTPClient,
	}
	if c.interval <= 0 {
		c.interval = time.Second
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	return c, nil
}

type Submission struct {
	SourceCode     string `json:"source_code"`
	LanguageID     int    `json:"language_id"`
	Stdin          string `json:"stdin"`
	ExpectedOutput string `json:"expected_output,omitempty"`
}

type Status struct {
	ID          int    `json:"id"`
	Description string `json:"description,omitempty"`
}

type Result struct {
	Token         string  `json:"token,omitempty"`
	Status        Status  `json:"status"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Time          string  `json:"time,omitempty"`
	Memory        int     `json:"memory,omitempty"`
}

func (r Result) Pending() bool { return r.Status.ID <= StatusProcessing }

func (r Result) stdout() string {
	if r.Stdout == nil {
		return ""
	}
	return strings.TrimSpace(*r.Stdout)
}

type Verdict struct {
	PassedCount int      `json:"passedCount"`
	TotalCount  int      `json:"totalCount"`
	Results     []Result `json:"results"`
}

// Execute runs one program synchronously.
func (c *Client) Execute(ctx context.Context, s Submission) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var res Result
	q := url.Values{"base64_encoded": {"false"}, "wait": {"true"}}
	if err := c.do(ctx, http.MethodPost, "/submissions", q, s, &res); err != nil {
		return Result{}, err
	}
	return res, nil
}

// Grade runs source against every test case and counts the ones whose
// accepted stdout matches the expected output.
func (c *Client) Grade(ctx context.Context, source string, languageID int, cases []catalog.TestCase) (Verdict, error) {
	subs := make([]Submission, len(cases))
	for i, tc := range cases {
		subs[i] = Submission{
			SourceCode:     source,
			LanguageID:     languageID,
			Stdin:          tc.Stdin(),
			ExpectedOutput: tc.Expected(),
		}
	}

	results, err := c.Batch(ctx, subs)
	if err != nil {
		return Verdict{}, err
	}

	v := Verdict{TotalCount: len(cases), Results: results}
	for i, r := range results {
		if r.Status.ID == StatusAccepted && r.stdout() == strings.TrimSpace(cases[i].Expected()) {
			v.PassedCount++
		}
	}
	return v, nil
}

// Batch creates one submission per entry and polls until none is queued or
// processing.
func (c *Client) Batch(ctx context.Context, subs []Submission) ([]Result, error) {
	if len(subs) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var created []struct {
		Token string `json:"token"`
	}
	body := struct {
		Submissions []Submission `json:"submissions"`
	}{Submissions: subs}
	if err := c.do(ctx, http.MethodPost, "/submissions/batch", url.Values{"base64_encoded": {"false"}}, body, &created); err != nil {
		return nil, err
	}
	if len(created) != len(subs) {
		return nil, fmt.Errorf("%w: got %d tokens for %d submissions", ErrBadResponse, len(created), len(subs))
	}

	tokens := make([]string, len(created))
	for i, t := range created {
		tokens[i] = t.Token
	}
	q := url.Values{
		"tokens":         {strings.Join(tokens, ",")},
		"base64_encoded": {"false"},
		"fields":         {"token,status,stdout,stderr,compile_output,time,memory"},
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("judge: waiting for results: %w", ctx.Err())
		case <-ticker.C:
		}

		var polled struct {
			Submissions []Result `json:"submissions"`
		}
		if err := c.do(ctx, http.MethodGet, "/submissions/batch", q, nil, &polled); err != nil {
			return nil, err
		}
		if len(polled.Submissions) != len(tokens) {
			return nil, fmt.Errorf("%w: got %d results for %d tokens", ErrBadResponse, len(polled.Submissions), len(tokens))
		}
		if !anyPending(polled.Submissions) {
			return polled.Submissions, nil
		}
	}
}

func anyPending(rs []Result) bool {
	for _, r := range rs {
		if r.Pending() {
			return true
		}
	}
	return false
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	u := *c.base
	u.Path += path
	u.RawQuery = q.Encode()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("judge: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("judge: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
	}
	if c.host != "" {
		req.Header.Set("X-RapidAPI-Host", c.host)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("judge: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrBadResponse, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrBadResponse, path, err)
	}
	return nil
}
