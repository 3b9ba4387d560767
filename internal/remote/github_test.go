package remote

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeContents is a minimal in-memory contents API.
type fakeContents struct {
	mu     sync.Mutex
	files  map[string]string
	puts   int
	status int
}

func (f *fakeContents) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "boom"})
		return
	}
	if r.Header.Get("Authorization") != "Bearer tok" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	p := strings.TrimPrefix(r.URL.Path, "/repos/acme/crew/contents/")
	switch r.Method {
	case http.MethodGet:
		body, ok := f.files[p]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
			return
		}
		enc := base64.StdEncoding.EncodeToString([]byte(body))
		_ = json.NewEncoder(w).Encode(contentResponse{SHA: "sha-" + p, Content: enc[:2] + "\n" + enc[2:], Encoding: "base64"})
	case http.MethodPut:
		var req putRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, exists := f.files[p]; exists && req.SHA != "sha-"+p {
			w.WriteHeader(http.StatusConflict)
			return
		}
		data, _ := base64.StdEncoding.DecodeString(req.Content)
		f.files[p] = string(data)
		f.puts++
		w.WriteHeader(http.StatusCreated)
	}
}

func newTestClient(t *testing.T, fake *fakeContents) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.BaseURL = srv.URL
	cfg.Owner = "acme"
	cfg.Repo = "crew"
	cfg.Token = "tok"
	cfg.RPS = 0
	c, err := NewClient(cfg, srv.Client())
	require.NoError(t, err)
	return c
}

func TestPushCreatesUpdatesAndSkips(t *testing.T) {
	fake := &fakeContents{files: map[string]string{"data/assignment_history.csv": "old"}}
	c := newTestClient(t, fake)

	dir := t.TempDir()
	roster := filepath.Join(dir, "influencer.csv")
	history := filepath.Join(dir, "assignment_history.csv")
	require.NoError(t, os.WriteFile(roster, []byte("id\na1\n"), 0o644))
	require.NoError(t, os.WriteFile(history, []byte("new"), 0o644))

	res, err := c.Push(t.Context(), []string{roster, history, filepath.Join(dir, "monthly_targets.csv")}, "sync")
	require.NoError(t, err)
	assert.Equal(t, []string{"influencer.csv", "assignment_history.csv"}, res.Pushed)
	assert.Equal(t, []string{"monthly_targets.csv"}, res.Missing)
	assert.Equal(t, "new", fake.files["data/assignment_history.csv"])
	assert.Equal(t, "id\na1\n", fake.files["data/influencer.csv"])

	res, err = c.Push(t.Context(), []string{roster}, "sync")
	require.NoError(t, err)
	assert.Empty(t, res.Pushed)
	assert.Equal(t, []string{"influencer.csv"}, res.Unchanged)
	assert.Equal(t, 2, fake.puts)
}

func TestPull(t *testing.T) {
	fake := &fakeContents{files: map[string]string{"data/influencer.csv": "id\nz9\n"}}
	c := newTestClient(t, fake)

	dir := t.TempDir()
	pulled, err := c.Pull(t.Context(), dir, []string{"influencer.csv", "execution_status.csv"})
	require.NoError(t, err)
	assert.Equal(t, []string{"influencer.csv"}, pulled)

	b, err := os.ReadFile(filepath.Join(dir, "influencer.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id\nz9\n", string(b))
}

func TestServerErrorsTripBreaker(t *testing.T) {
	fake := &fakeContents{files: map[string]string{}, status: http.StatusBadGateway}
	c := newTestClient(t, fake)

	for i := 0; i < 3; i++ {
		_, _, err := c.Get(t.Context(), "influencer.csv")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadGateway, apiErr.Status)
		assert.Equal(t, "boom", apiErr.Message)
	}
	assert.Equal(t, "open", c.BreakerState())

	_, _, err := c.Get(t.Context(), "influencer.csv")
	assert.Error(t, err)
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	c := newTestClient(t, &fakeContents{files: map[string]string{}})
	for i := 0; i < 5; i++ {
		_, _, err := c.Get(t.Context(), "missing.csv")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, "closed", c.BreakerState())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	cfg.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner, repo, token")
}

func TestLimiterAllow(t *testing.T) {
	l := NewLimiter(1, 1)
	assert.True(t, l.Allow("api.github.com"))
	assert.False(t, l.Allow("api.github.com"))
	assert.True(t, l.Allow("other"))

	unlimited := NewLimiter(0, 1)
	for i := 0; i < 10; i++ {
		assert.True(t, unlimited.Allow("h"))
	}
}
