package command

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokpool/internal/core/domain"
	"github.com/yndnr/tokpool/internal/storage/tokenstore"
)

// tokenEndpoint is a fake OAuth2 password-grant endpoint.
type tokenEndpoint struct {
	mu       sync.Mutex
	regions  map[string]string
	limited  map[string]int
	rejected map[string]bool
}

func newTokenEndpoint(server *mockServer) *tokenEndpoint {
	e := &tokenEndpoint{
		regions:  make(map[string]string),
		limited:  make(map[string]int),
		rejected: make(map[string]bool),
	}
	server.handle("/oauth/token", e.serve)
	return e
}

func (e *tokenEndpoint) serve(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	user := r.PostForm.Get("username")

	e.mu.Lock()
	e.regions[user] = r.PostForm.Get("region")
	limited := e.limited[user] > 0
	if limited {
		e.limited[user]--
	}
	rejected := e.rejected[user]
	e.mu.Unlock()

	switch {
	case r.PostForm.Get("grant_type") != "password":
		jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	case limited:
		jsonResponse(w, http.StatusTooManyRequests, map[string]string{"error": "slow_down"})
	case rejected:
		jsonResponse(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant"})
	default:
		jsonResponse(w, http.StatusOK, map[string]any{
			"access_token": tokenFor(user),
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}
}

func (e *tokenEndpoint) region(user string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.regions[user]
}

func tokenFor(user string) string {
	return "eyJhbGciOiJIUzI1NiJ9." + user + ".c2lnbmF0dXJlLXNpZ25hdHVyZQ"
}

func writeCredentials(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "creds.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func decodeSummary(t *testing.T, out string) summaryView {
	t.Helper()
	var got summaryView
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode summary %q: %v", out, err)
	}
	return got
}

func TestRun_StoreSink(t *testing.T) {
	server := newMockServer(t)
	endpoint := newTokenEndpoint(server)

	creds := writeCredentials(t, "alice:pw1:eu", "not-a-credential", "", "bob:pw2:us")
	storePath := filepath.Join(t.TempDir(), "tokens.json")

	out, err := runApp(t, "--output", "json", "run",
		"--source", creds,
		"--sink", "store:"+storePath,
		"--token-url", server.URL+"/oauth/token",
		"--client-id", "tokpool",
		"--region-param", "region",
		"--delay", "0s",
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got := decodeSummary(t, out)
	if got.Attempted != 2 || got.Succeeded != 2 || got.Malformed != 1 {
		t.Errorf("summary = %+v, want 2 attempted, 2 succeeded, 1 malformed", got)
	}
	if got.RunID == "" {
		t.Error("summary should carry a run ID")
	}
	if r := endpoint.region("alice"); r != "eu" {
		t.Errorf("alice region = %q, want eu", r)
	}
	if r := endpoint.region("bob"); r != "us" {
		t.Errorf("bob region = %q, want us", r)
	}

	backend, err := tokenstore.NewFileBackend(storePath)
	if err != nil {
		t.Fatal(err)
	}
	store, err := tokenstore.New(backend)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	snap, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Count != 2 {
		t.Fatalf("stored %d tokens, want 2", snap.Count)
	}
	for _, user := range []string{"alice", "bob"} {
		if !snap.Contains(domain.Token(tokenFor(user))) {
			t.Errorf("token for %s not stored", user)
		}
	}
}

func TestRun_HTTPSourceAndSink(t *testing.T) {
	server := newMockServer(t)
	endpoint := newTokenEndpoint(server)
	endpoint.rejected["mallory"] = true

	server.handle("/creds", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("alice:pw1:eu\nmallory:pw:eu\n"))
	})

	var mu sync.Mutex
	var saved []string
	server.handle("/save-token", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			JWT string `json:"jwt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		saved = append(saved, body.JWT)
		mu.Unlock()
		jsonResponse(w, http.StatusOK, map[string]string{"message": "Token saved successfully"})
	})

	out, err := runApp(t, "--output", "json", "run",
		"--source", server.URL+"/creds",
		"--sink", server.URL,
		"--token-url", server.URL+"/oauth/token",
		"--delay", "0s",
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got := decodeSummary(t, out)
	if got.Succeeded != 1 || got.ExchangeFailed != 1 {
		t.Errorf("summary = %+v, want 1 succeeded, 1 exchange failed", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(saved) != 1 || saved[0] != tokenFor("alice") {
		t.Errorf("saved = %v, want alice's token", saved)
	}
}

func TestRun_SinkFailureCounted(t *testing.T) {
	server := newMockServer(t)
	newTokenEndpoint(server)
	server.handle("/save-token", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save token"})
	})

	out, err := runApp(t, "--output", "json", "run",
		"--source", writeCredentials(t, "alice:pw1:eu"),
		"--sink", server.URL,
		"--token-url", server.URL+"/oauth/token",
		"--delay", "0s",
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got := decodeSummary(t, out)
	if got.SinkFailed != 1 || got.Succeeded != 0 {
		t.Errorf("summary = %+v, want 1 sink failure", got)
	}
}

func TestRun_RetriesRateLimited(t *testing.T) {
	server := newMockServer(t)
	endpoint := newTokenEndpoint(server)
	endpoint.limited["alice"] = 2

	out, err := runApp(t, "--output", "json", "run",
		"--source", writeCredentials(t, "alice:pw1:eu"),
		"--sink", "store:"+filepath.Join(t.TempDir(), "tokens.json"),
		"--token-url", server.URL+"/oauth/token",
		"--max-retries", "3",
		"--retry-delay", "1ms",
		"--delay", "0s",
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got := decodeSummary(t, out)
	if got.Succeeded != 1 {
		t.Errorf("summary = %+v, want the retried exchange to succeed", got)
	}
}

func TestRun_NoRetryWhenDisabled(t *testing.T) {
	server := newMockServer(t)
	endpoint := newTokenEndpoint(server)
	endpoint.limited["alice"] = 1

	out, err := runApp(t, "--output", "json", "run",
		"--source", writeCredentials(t, "alice:pw1:eu"),
		"--sink", "store:"+filepath.Join(t.TempDir(), "tokens.json"),
		"--token-url", server.URL+"/oauth/token",
		"--max-retries", "0",
		"--delay", "0s",
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got := decodeSummary(t, out)
	if got.ExchangeFailed != 1 {
		t.Errorf("summary = %+v, want 1 exchange failure", got)
	}
}

func TestRun_TableOutput(t *testing.T) {
	server := newMockServer(t)
	newTokenEndpoint(server)

	out, err := runApp(t, "--wide", "run",
		"--source", writeCredentials(t, "alice:pw1:eu"),
		"--sink", "store:"+filepath.Join(t.TempDir(), "tokens.json"),
		"--token-url", server.URL+"/oauth/token",
		"--delay", "0s",
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"RUN ID", "ATTEMPTED", "SUCCEEDED", "WINDOWS"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestRun_ConfigFile(t *testing.T) {
	server := newMockServer(t)
	newTokenEndpoint(server)

	storePath := filepath.Join(t.TempDir(), "tokens.json")
	cfgPath := filepath.Join(t.TempDir(), "runner.yaml")
	cfg := "source: " + writeCredentials(t, "alice:pw1:eu", "bob:pw2:eu", "carol:pw3:eu") + "\n" +
		"sink: store:" + storePath + "\n" +
		"concurrency: 5\n" +
		"delay: 0s\n" +
		"exchange:\n" +
		"  token_url: " + server.URL + "/oauth/token\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, "--output", "json", "run", "--config", cfgPath, "--concurrency", "2")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got := decodeSummary(t, out)
	if got.Succeeded != 3 {
		t.Errorf("summary = %+v, want 3 succeeded", got)
	}
	if got.Windows != 2 {
		t.Errorf("windows = %d, want 2 (flag concurrency overrides file)", got.Windows)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	_, err := runApp(t, "run", "--source", writeCredentials(t, "alice:pw1:eu"))
	if err == nil {
		t.Fatal("expected error without a token URL")
	}
	if !strings.Contains(err.Error(), "token_url") {
		t.Errorf("error = %v, want token_url complaint", err)
	}
}

func TestRun_MissingSourceFileIsEmptyRun(t *testing.T) {
	server := newMockServer(t)
	newTokenEndpoint(server)

	out, err := runApp(t, "--output", "json", "run",
		"--source", filepath.Join(t.TempDir(), "missing.txt"),
		"--sink", "store:"+filepath.Join(t.TempDir(), "tokens.json"),
		"--token-url", server.URL+"/oauth/token",
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got := decodeSummary(t, out)
	if got.Attempted != 0 || got.Malformed != 0 {
		t.Errorf("summary = %+v, want an empty run", got)
	}
}

func TestSchedule_StopsOnCancel(t *testing.T) {
	server := newMockServer(t)
	newTokenEndpoint(server)

	received := make(chan struct{}, 1)
	server.handle("/save-token", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"message": "Token saved successfully"})
		select {
		case received <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := runAppContext(t, ctx, "schedule",
			"--source", writeCredentials(t, "alice:pw1:eu"),
			"--sink", server.URL,
			"--token-url", server.URL+"/oauth/token",
			"--interval", "1h",
			"--metrics-addr", "127.0.0.1:0",
		)
		done <- err
	}()

	select {
	case <-received:
	case <-time.After(10 * time.Second):
		t.Fatal("first cycle did not deliver a token")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("schedule returned %v, want nil on cancel", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("schedule did not stop after cancel")
	}
}

func TestFlagOverrides(t *testing.T) {
	var got map[string]any
	app := &cli.App{
		Flags: append(globalFlags(), runnerFlags(true)...),
		Action: func(c *cli.Context) error {
			got = flagOverrides(c)
			return nil
		},
	}

	err := app.Run([]string{"test",
		"--concurrency", "10",
		"--delay", "2s",
		"--scope", "read", "--scope", "write",
		"--token-url", "https://auth.example.com/token",
	})
	if err != nil {
		t.Fatalf("app.Run failed: %v", err)
	}

	want := map[string]any{
		"concurrency":        10,
		"delay":              2 * time.Second,
		"exchange.scopes":    []string{"read", "write"},
		"exchange.token_url": "https://auth.example.com/token",
	}
	if len(got) != len(want) {
		t.Fatalf("overrides = %v, want %v", got, want)
	}
	for k, v := range want {
		gv, ok := got[k]
		if !ok {
			t.Errorf("missing override %q", k)
			continue
		}
		if gs, ok := gv.([]string); ok {
			ws := v.([]string)
			if strings.Join(gs, ",") != strings.Join(ws, ",") {
				t.Errorf("%s = %v, want %v", k, gs, ws)
			}
			continue
		}
		if gv != v {
			t.Errorf("%s = %v, want %v", k, gv, v)
		}
	}
}
