// Package remote pushes the data files to a GitHub repository through the
// contents API and pulls them back.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	atomicio "github.com/sawpanic/crewrun/internal/io"
)

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

// Config selects the repository and credentials used for sync.
type Config struct {
	Enabled bool          `yaml:"enabled" env:"CREWRUN_REMOTE_ENABLED"`
	BaseURL string        `yaml:"base_url" env:"GITHUB_API_URL"`
	Owner   string        `yaml:"owner" env:"GITHUB_OWNER"`
	Repo    string        `yaml:"repo" env:"GITHUB_REPO"`
	Branch  string        `yaml:"branch" env:"GITHUB_BRANCH"`
	Dir     string        `yaml:"dir" env:"GITHUB_DIR"`
	Token   string        `yaml:"token" env:"GITHUB_TOKEN"`
	RPS     float64       `yaml:"rps"`
	Burst   int           `yaml:"burst"`
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns a disabled configuration with conservative limits.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Branch:  "main",
		Dir:     "data",
		RPS:     1,
		Burst:   2,
		Timeout: 20 * time.Second,
	}
}

// Validate checks the settings required when sync is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	var missing []string
	if c.Owner == "" {
		missing = append(missing, "owner")
	}
	if c.Repo == "" {
		missing = append(missing, "repo")
	}
	if c.Token == "" {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("remote sync enabled but missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// APIError is a non-2xx response from the contents API.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github %s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// ErrNotFound reports a file absent from the remote repository.
var ErrNotFound = errors.New("remote file not found")

// Client talks to the GitHub contents API.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *Limiter
	breaker *Breaker
	host    string
}

// NewClient creates a client for cfg. A nil httpClient uses one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: NewLimiter(cfg.RPS, cfg.Burst),
		breaker: NewBreaker("github", 60*time.Second),
		host:    u.Host,
	}, nil
}

type contentResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

func (c *Client) remotePath(name string) string {
	return path.Join(c.cfg.Dir, name)
}

func (c *Client) endpoint(p string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Owner, c.cfg.Repo, p)
}

func (c *Client) do(ctx context.Context, method, p string, body any, out any) error {
	if err := c.limiter.Wait(ctx, c.host); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	_, err := c.breaker.Execute(func() (any, error) {
		var rdr io.Reader
		if body != nil {
			b, err := json.Marshal(body)
			if err != nil {
				return nil, err
			}
			rdr = bytes.NewReader(b)
		}
		u := c.endpoint(p)
		if method == http.MethodGet && c.cfg.Branch != "" {
			u += "?ref=" + url.QueryEscape(c.cfg.Branch)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rdr)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("User-Agent", "crewrun")
		if c.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			var msg struct {
				Message string `json:"message"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&msg)
			return nil, &APIError{Method: method, Path: p, Status: resp.StatusCode, Message: msg.Message}
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return nil, fmt.Errorf("decode %s response: %w", p, err)
			}
		}
		return nil, nil
	})
	return err
}

// Get returns the content and blob SHA of name under the configured directory.
func (c *Client) Get(ctx context.Context, name string) ([]byte, string, error) {
	var resp contentResponse
	p := c.remotePath(name)
	if err := c.do(ctx, http.MethodGet, p, nil, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, "", fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, "", err
	}
	if resp.Encoding != "base64" {
		return nil, "", fmt.Errorf("unexpected encoding %q for %s", resp.Encoding, p)
	}
	// the API wraps base64 at 60 columns
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(resp.Content, "\n", ""))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", p, err)
	}
	return data, resp.SHA, nil
}

// Put creates or updates name with data. Unchanged content is skipped.
func (c *Client) Put(ctx context.Context, name string, data []byte, message string) (bool, error) {
	current, sha, err := c.Get(ctx, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if err == nil && bytes.Equal(current, data) {
		return false, nil
	}
	req := putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(data),
		SHA:     sha,
		Branch:  c.cfg.Branch,
	}
	if err := c.do(ctx, http.MethodPut, c.remotePath(name), req, nil); err != nil {
		return false, err
	}
	return true, nil
}

// PushResult lists the files written and left untouched by Push.
type PushResult struct {
	Pushed    []string `json:"pushed"`
	Unchanged []string `json:"unchanged"`
	Missing   []string `json:"missing"`
}

// Push uploads the local files. Files absent locally are reported, not an error.
func (c *Client) Push(ctx context.Context, paths []string, message string) (PushResult, error) {
	var res PushResult
	var errs []error
	for _, p := range paths {
		name := filepath.Base(p)
		data, err := os.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			res.Missing = append(res.Missing, name)
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		changed, err := c.Put(ctx, name, data, message)
		if err != nil {
			errs = append(errs, fmt.Errorf("push %s: %w", name, err))
			continue
		}
		if changed {
			res.Pushed = append(res.Pushed, name)
		} else {
			res.Unchanged = append(res.Unchanged, name)
		}
	}
	log.Info().Strs("pushed", res.Pushed).Int("unchanged", len(res.Unchanged)).
		Int("missing", len(res.Missing)).Msg("remote push")
	return res, errors.Join(errs...)
}

// Pull downloads the named files into dir, replacing local copies atomically.
func (c *Client) Pull(ctx context.Context, dir string, names []string) ([]string, error) {
	var pulled []string
	for _, name := range names {
		data, _, err := c.Get(ctx, name)
		if errors.Is(err, ErrNotFound) {
			log.Warn().Str("file", name).Msg("remote file not found; keeping local copy")
			continue
		}
		if err != nil {
			return pulled, fmt.Errorf("pull %s: %w", name, err)
		}
		if err := atomicio.WriteFileAtomic(filepath.Join(dir, name), data); err != nil {
			return pulled, err
		}
		pulled = append(pulled, name)
	}
	return pulled, nil
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() string { return c.breaker.State() }
