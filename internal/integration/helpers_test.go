package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/oshokin/pager-light/internal/config"
)

// bridgeUser is the whitelisted username the fake bridge accepts.
const bridgeUser = "integration"

// startPagerDuty serves the incidents endpoint with a fixed total and counts requests.
// A negative total makes the server fail every request with 500.
func startPagerDuty(t *testing.T, total int) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		if r.URL.Path != "/incidents" || total < 0 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"incidents": []any{},
			"total":     total,
		})
	}))
	t.Cleanup(server.Close)

	return server, &hits
}

// fakeBridge records every state change it receives, in order.
type fakeBridge struct {
	server *httptest.Server
	mu     sync.Mutex
	states []string
	hits   atomic.Int32
}

// startBridge serves light 3 under bridgeUser.
func startBridge(t *testing.T) *fakeBridge {
	t.Helper()

	fb := new(fakeBridge)
	fb.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")

		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"3":{"name":"Hallway","state":{"on":false,"reachable":true}}}`))
		case http.MethodPut:
			raw, _ := io.ReadAll(r.Body)

			fb.mu.Lock()
			fb.states = append(fb.states, strings.TrimSpace(string(raw)))
			fb.mu.Unlock()

			_, _ = w.Write([]byte(`[{"success":{}}]`))
		}
	}))
	t.Cleanup(fb.server.Close)

	return fb
}

// host returns the bridge address without scheme.
func (fb *fakeBridge) host() string {
	return strings.TrimPrefix(fb.server.URL, "http://")
}

// recorded returns the state bodies received so far.
func (fb *fakeBridge) recorded() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	return append([]string(nil), fb.states...)
}

// clearEnv unsets every configuration variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		config.EnvPagerDutyAPIKey, config.EnvUserFilter, config.EnvHueHost, config.EnvHueUsername,
		config.EnvLightID, config.EnvNightOnly, config.EnvTestMode, config.EnvLogLevel,
		config.EnvPollInterval, config.EnvTimeout,
	} {
		t.Setenv(key, "")

		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}
