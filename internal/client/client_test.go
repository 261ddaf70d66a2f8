package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fastpurge/internal/client"
	"fastpurge/internal/config"
	"fastpurge/internal/domain"
	"fastpurge/internal/edgerc"
)

func testCredentials(host string) edgerc.Credentials {
	return edgerc.Credentials{
		Host:         host,
		ClientToken:  "some-client-token",
		ClientSecret: "some-secret",
		AccessToken:  "some-access-token",
	}
}

// newTestClient points a client with fast test timings at srv.
func newTestClient(t *testing.T, srv *httptest.Server, mutate func(*config.Config)) *client.Client {
	t.Helper()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Scheme = "http"
	cfg.Port = port
	cfg.MaxRetries = 2
	cfg.RetryBackoff = time.Millisecond
	cfg.DefaultDelay = 20 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := client.New(cfg, testCredentials(u.Hostname()), zerolog.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func created(w http.ResponseWriter, body string) {
	w.WriteHeader(http.StatusCreated)
	w.Write([]byte(body))
}

func TestPurgeByURL(t *testing.T) {
	const estimate = 0.1

	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		created(w, `{"some": ["return", "value"], "estimatedSeconds": 0.1}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)

	before := time.Now()
	agg, err := c.PurgeByURL(context.Background(), []string{"https://example.com/some-content"})
	require.NoError(t, err)
	require.Equal(t, 1, agg.Len())

	results, err := agg.Get(context.Background())
	require.NoError(t, err)

	// resolution waits out at least the declared estimate
	assert.GreaterOrEqual(t, time.Since(before), time.Duration(estimate*float64(time.Second)))

	require.Len(t, results, 1)
	assert.Equal(t, []any{"return", "value"}, results[0].ResponseBody["some"])

	// conservative defaults: full delete against production
	assert.Equal(t, "/ccu/v3/delete/url/production", gotPath)
	assert.Equal(t, map[string]any{"objects": []any{"https://example.com/some-content"}}, gotBody)

	// signed with the edgegrid scheme
	assert.True(t, strings.HasPrefix(gotAuth, "EG1-HMAC-SHA256 "), gotAuth)
	assert.Contains(t, gotAuth, "client_token=some-client-token")
}

func TestPurgeByTagInvalidateStaging(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		created(w, `{"estimatedSeconds": 0.01}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)

	agg, err := c.PurgeByTag(context.Background(), []string{"red", "blue", "green"},
		client.WithPurgeType("invalidate"), client.WithNetwork("staging"))
	require.NoError(t, err)

	_, err = agg.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/ccu/v3/invalidate/tag/staging", gotPath)
	assert.Equal(t, map[string]any{"objects": []any{"red", "blue", "green"}}, gotBody)
}

func TestPurgeByCPCode(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		created(w, `{"estimatedSeconds": 0.01}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)

	agg, err := c.PurgeByCPCode(context.Background(), []int{1234, 5678})
	require.NoError(t, err)

	_, err = agg.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/ccu/v3/delete/cpcode/production", gotPath)
	assert.Equal(t, map[string]any{"objects": []any{float64(1234), float64(5678)}}, gotBody)
}

func TestSplitsLargePurgeAcrossRequests(t *testing.T) {
	var mu sync.Mutex
	var gotObjects []string
	requests := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Objects []string `json:"objects"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body.Objects)

		mu.Lock()
		requests++
		gotObjects = append(gotObjects, body.Objects...)
		mu.Unlock()

		created(w, `{"estimatedSeconds": 0.01}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *config.Config) {
		cfg.MaxPayloadBytes = 80
	})

	urls := []string{
		"https://example.com/0", "https://example.com/1", "https://example.com/2",
		"https://example.com/3", "https://example.com/4", "https://example.com/5",
		"https://example.com/6",
	}

	agg, err := c.PurgeByURL(context.Background(), urls)
	require.NoError(t, err)
	assert.Equal(t, 4, agg.Len())

	results, err := agg.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 4)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, requests)

	want := append([]string(nil), urls...)
	sort.Strings(gotObjects)
	sort.Strings(want)
	assert.Equal(t, want, gotObjects)
}

func TestAggregateFailsOnFirstFailedPart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Objects []string `json:"objects"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		for _, o := range body.Objects {
			if o == "https://example.com/3" {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		created(w, `{"estimatedSeconds": 0.01}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *config.Config) {
		cfg.MaxPayloadBytes = 80
		cfg.MaxRetries = 1
	})

	urls := []string{
		"https://example.com/0", "https://example.com/1", "https://example.com/2",
		"https://example.com/3", "https://example.com/4", "https://example.com/5",
		"https://example.com/6",
	}

	agg, err := c.PurgeByURL(context.Background(), urls)
	require.NoError(t, err)
	require.Equal(t, 4, agg.Len())

	_, err = agg.Get(context.Background())
	require.Error(t, err)

	var terr *domain.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, terr.Retries)
}

func TestNewValidatesInputs(t *testing.T) {
	cfg := config.Default()
	cfg.MaxConcurrent = 0
	_, err := client.New(cfg, testCredentials("h"), zerolog.Nop(), nil)

	var cerr *domain.ConfigurationError
	require.ErrorAs(t, err, &cerr)

	_, err = client.New(config.Default(), edgerc.Credentials{}, zerolog.Nop(), nil)
	require.ErrorAs(t, err, &cerr)
}

func TestNewFromEdgeRcMissingFile(t *testing.T) {
	_, err := client.NewFromEdgeRc(config.Default(), t.TempDir()+"/absent", zerolog.Nop(), nil)

	var cerr *domain.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, err.Error(), "missing configuration file")
}
