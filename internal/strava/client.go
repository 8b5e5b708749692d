// Package strava looks up route geometry for rides through the Strava REST API.
package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/steelburgerz/veloiq/internal/cache"
)

const (
	defaultAPIBase  = "https://www.strava.com/api/v3"
	defaultTokenURL = "https://www.strava.com/oauth/token"

	// refreshLeeway refreshes tokens that expire within this window.
	refreshLeeway = 60 * time.Second
)

// ErrNotConfigured is returned when no token file is available.
var ErrNotConfigured = errors.New("strava: not configured")

// Token is the OAuth token file written by the ingestion pipeline.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// ActivityMap is the route summary for one activity.
type ActivityMap struct {
	SummaryPolyline *string   `json:"summary_polyline"`
	StartLatLng     []float64 `json:"start_latlng"`
	EndLatLng       []float64 `json:"end_latlng"`
	Virtual         bool      `json:"is_virtual"`
}

// Client fetches activity maps. It is safe for concurrent use.
type Client struct {
	tokenPath  string
	apiBase    string
	tokenURL   string
	httpClient *http.Client
	cache      cache.Cache
	logger     *zap.Logger
	now        func() time.Time

	mu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoints overrides the API base and token URLs.
func WithEndpoints(apiBase, tokenURL string) Option {
	return func(c *Client) {
		c.apiBase = apiBase
		c.tokenURL = tokenURL
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithCache memoises maps. Routes never change once recorded.
func WithCache(cc cache.Cache) Option {
	return func(c *Client) { c.cache = cc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock overrides the clock used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient builds a Client reading tokens from tokenPath. An empty path yields a client
// whose lookups always return ErrNotConfigured.
func NewClient(tokenPath string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		tokenPath:  tokenPath,
		apiBase:    defaultAPIBase,
		tokenURL:   defaultTokenURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache.NewMemory(time.Hour),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ActivityMap returns the route for an activity, or (nil, nil) when Strava has no such activity.
func (c *Client) ActivityMap(ctx context.Context, stravaID string) (*ActivityMap, error) {
	if c.tokenPath == "" {
		return nil, ErrNotConfigured
	}
	key := "strava:map:" + stravaID
	var cached ActivityMap
	if ok, err := c.cache.Get(ctx, key, &cached); err == nil && ok {
		return &cached, nil
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/activities/%s", c.apiBase, url.PathEscape(stravaID)), nil)
	if err != nil {
		return nil, err
	}

	resp, err := oauth2.NewClient(c.oauthContext(ctx), oauth2.StaticTokenSource(token)).Do(req)
	if err != nil {
		return nil, fmt.Errorf("strava: fetch activity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("strava: activity %s: status %d: %s", stravaID, resp.StatusCode, body)
	}

	var payload struct {
		Map *struct {
			SummaryPolyline *string `json:"summary_polyline"`
		} `json:"map"`
		StartLatLng []float64 `json:"start_latlng"`
		EndLatLng   []float64 `json:"end_latlng"`
		SportType   string    `json:"sport_type"`
		Trainer     bool      `json:"trainer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("strava: decode activity: %w", err)
	}

	out := &ActivityMap{
		StartLatLng: latLng(payload.StartLatLng),
		EndLatLng:   latLng(payload.EndLatLng),
		Virtual:     payload.SportType == "VirtualRide" || payload.Trainer,
	}
	if payload.Map != nil && payload.Map.SummaryPolyline != nil && *payload.Map.SummaryPolyline != "" {
		out.SummaryPolyline = payload.Map.SummaryPolyline
	}
	if err := c.cache.Set(ctx, key, out); err != nil {
		c.logger.Warn("cache strava map", zap.String("strava_id", stravaID), zap.Error(err))
	}
	return out, nil
}

// latLng keeps only well-formed coordinate pairs.
func latLng(v []float64) []float64 {
	if len(v) != 2 {
		return nil
	}
	return v
}

// oauthContext carries the configured HTTP client into x/oauth2.
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// accessToken returns a valid token, refreshing it when close to expiry. A refreshed token is
// written back to the token file so the ingestion pipeline sees it too.
func (c *Client) accessToken(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored, err := readToken(c.tokenPath)
	if err != nil {
		return nil, err
	}
	expiry := time.Unix(stored.ExpiresAt, 0)
	if stored.AccessToken != "" && expiry.After(c.now().Add(refreshLeeway)) {
		return &oauth2.Token{AccessToken: stored.AccessToken, TokenType: "Bearer", Expiry: expiry}, nil
	}

	cfg := &oauth2.Config{
		ClientID:     stored.ClientID,
		ClientSecret: stored.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: c.tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	// An empty access token forces the refresher to hit the token endpoint.
	fresh, err := cfg.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: stored.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("strava: refresh token: %w", err)
	}

	if fresh.AccessToken != stored.AccessToken {
		stored.AccessToken = fresh.AccessToken
		if fresh.RefreshToken != "" {
			stored.RefreshToken = fresh.RefreshToken
		}
		stored.ExpiresAt = expiresAt(fresh)
		if err := writeToken(c.tokenPath, stored); err != nil {
			c.logger.Warn("persist refreshed strava token", zap.Error(err))
		}
		c.logger.Info("refreshed strava token", zap.Time("expires_at", time.Unix(stored.ExpiresAt, 0)))
	}
	return fresh, nil
}

// expiresAt prefers Strava's absolute expires_at over the expiry x/oauth2 derives from expires_in.
func expiresAt(tok *oauth2.Token) int64 {
	switch v := tok.Extra("expires_at").(type) {
	case float64:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	if tok.Expiry.IsZero() {
		return 0
	}
	return tok.Expiry.Unix()
}

func readToken(path string) (*Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("strava: read token file: %w", err)
	}
	var token Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("strava: parse token file: %w", err)
	}
	return &token, nil
}

func writeToken(path string, token *Token) error {
	raw, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
