package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/typex/internal/model"
)

// DefaultTimeout bounds a single remote request.
const DefaultTimeout = 5 * time.Second

// Remote talks to a typex server over its REST API.
type Remote struct {
	base   string
	client *http.Client
}

var (
	_ ProfileStore     = (*Remote)(nil)
	_ LeaderboardStore = (*Remote)(nil)
)

// NewRemote returns a client for the server at baseURL. A zero timeout
// uses DefaultTimeout.
func NewRemote(baseURL string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Remote{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Ping checks that the server answers its health endpoint.
func (r *Remote) Ping(ctx context.Context) error {
	resp, err := r.do(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return err
	}
	return drain(resp, nil)
}

// Load fetches the profile for username.
func (r *Remote) Load(ctx context.Context, username string) (model.UserProfile, error) {
	resp, err := r.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(username), nil)
	if err != nil {
		return model.UserProfile{}, err
	}
	var p model.UserProfile
	if err := drain(resp, &p); err != nil {
		return model.UserProfile{}, err
	}
	if p.HighScores == nil {
		p.HighScores = []model.ScoreRecord{}
	}
	if p.UnlockedAbbreviations == nil {
		p.UnlockedAbbreviations = []model.Abbreviation{}
	}
	return p, nil
}

// Save posts the profile.
func (r *Remote) Save(ctx context.Context, p model.UserProfile) error {
	resp, err := r.do(ctx, http.MethodPost, "/api/users", p)
	if err != nil {
		return err
	}
	return drain(resp, nil)
}

// Append posts a leaderboard entry.
func (r *Remote) Append(ctx context.Context, e model.LeaderboardEntry) error {
	resp, err := r.do(ctx, http.MethodPost, "/api/leaderboard", e)
	if err != nil {
		return err
	}
	return drain(resp, nil)
}

// Query fetches leaderboard entries, filtered by level when level > 0.
func (r *Remote) Query(ctx context.Context, level int) ([]model.LeaderboardEntry, error) {
	path := "/api/leaderboard"
	if level > 0 {
		path += "?level=" + strconv.Itoa(level)
	}
	resp, err := r.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	entries := []model.LeaderboardEntry{}
	if err := drain(resp, &entries); err != nil {
		return nil, err
	}
	if len(entries) > model.MaxLeaderboardEntries {
		entries = entries[:model.MaxLeaderboardEntries]
	}
	return entries, nil
}

func (r *Remote) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// drain decodes a successful response into out and always closes the body.
func drain(resp *http.Response, out any) error {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
