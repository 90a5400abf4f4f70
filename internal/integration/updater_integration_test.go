package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/compose-updater/internal/config"
	"github.com/oshokin/compose-updater/internal/service/updater"
)

// markerFilename mirrors the on-disk instance marker the updater leaves in
// the services root while it is working.
const markerFilename = ".compose-updater.marker"

// engineAPI fakes the slice of the Docker Engine API the updater touches:
// ping, image and container inspection and the prune family.
type engineAPI struct {
	mu     sync.Mutex
	tags   map[string][]string
	pruned []string
}

func (a *engineAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := trimVersionPrefix(r.URL.Path)

	switch {
	case path == "/_ping":
		w.Header().Set("Api-Version", "1.48")
		w.WriteHeader(http.StatusOK)
	case strings.HasSuffix(path, "/prune"):
		a.mu.Lock()
		a.pruned = append(a.pruned, path)
		a.mu.Unlock()

		writeJSON(w, map[string]any{"SpaceReclaimed": 0})
	case strings.HasPrefix(path, "/images/") && strings.HasSuffix(path, "/json"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/images/"), "/json")

		tags, ok := a.tags[id]
		if !ok {
			http.Error(w, `{"message":"no such image"}`, http.StatusNotFound)
			return
		}

		writeJSON(w, map[string]any{"Id": id, "RepoTags": tags})
	case strings.HasPrefix(path, "/containers/") && strings.HasSuffix(path, "/json"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/containers/"), "/json")
		writeJSON(w, map[string]any{"Id": id, "State": map[string]any{"Status": "running"}})
	default:
		http.Error(w, `{"message":"page not found"}`, http.StatusNotFound)
	}
}

// prunes returns the prune endpoints hit so far, in order.
func (a *engineAPI) prunes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]string(nil), a.pruned...)
}

// trimVersionPrefix strips the negotiated "/v1.NN" prefix the SDK client
// puts in front of every versioned request.
func trimVersionPrefix(path string) string {
	if !strings.HasPrefix(path, "/v1.") {
		return path
	}

	rest := strings.TrimPrefix(path, "/")
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[i:]
	}

	return path
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// startEngineAPI serves the fake Engine API and points DOCKER_HOST at it.
func startEngineAPI(t *testing.T, tags map[string][]string) *engineAPI {
	t.Helper()

	api := &engineAPI{tags: tags}

	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	t.Setenv("DOCKER_HOST", "tcp://"+strings.TrimPrefix(server.URL, "http://"))

	// Neutralize daemon settings of the host machine that would redirect
	// or TLS-wrap the client.
	t.Setenv("DOCKER_TLS_VERIFY", "")
	t.Setenv("DOCKER_CERT_PATH", "")

	return api
}

// stubDockerCLI installs a fake docker binary on PATH that answers the
// compose and registry subcommands the updater drives. Every invocation is
// recorded as one line, "<project dir> <argv>". The app project reports a
// different image identifier once it has been pulled, the web project is
// always unchanged.
func stubDockerCLI(t *testing.T, loginFails bool) (callsPath string) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("stub docker CLI requires a POSIX shell")
	}

	dir := t.TempDir()
	calls := filepath.Join(dir, "calls.log")
	state := filepath.Join(dir, "state")
	require.NoError(t, os.MkdirAll(state, 0o755))

	loginStatus := 0
	if loginFails {
		loginStatus = 1
	}

	script := fmt.Sprintf(`#!/bin/sh
printf '%%s %%s\n' "$(basename "$PWD")" "$*" >> %q
case "$1" in
login)
  cat > /dev/null
  exit %d
  ;;
logout)
  exit 0
  ;;
esac
verb=""
for arg in "$@"; do
  case "$arg" in
  images|config|pull|build|down|up|ps)
    verb=$arg
    break
    ;;
  esac
done
project=$(basename "$PWD")
case "$verb" in
images)
  if [ "$project" = app ] && [ ! -f %q/app.pulled ]; then
    echo sha256:app-old
  elif [ "$project" = app ]; then
    echo sha256:app-new
  else
    echo sha256:web-stable
  fi
  ;;
config)
  printf 'services:\n  %%s:\n    image: registry.example/%%s:1.0\n' "$project" "$project"
  ;;
pull)
  if [ "$project" = app ]; then
    touch %q/app.pulled
  fi
  ;;
ps)
  echo "c-$project"
  ;;
esac
exit 0
`, calls, loginStatus, state, state)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker"), []byte(script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	return calls
}

// writeService creates a service directory with a minimal compose descriptor.
func writeService(t *testing.T, root, name string) {
	t.Helper()

	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	descriptor := fmt.Sprintf("services:\n  %s:\n    image: registry.example/%s:latest\n", name, name)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ComposeFilename), []byte(descriptor), 0o644))
}

// recordedCalls returns the stub's journal, one invocation per line.
func recordedCalls(t *testing.T, path string) []string {
	t.Helper()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	require.NoError(t, err)

	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// callsMatching filters journal lines by substring.
func callsMatching(calls []string, substr string) []string {
	var matched []string

	for _, call := range calls {
		if strings.Contains(call, substr) {
			matched = append(matched, call)
		}
	}

	return matched
}

// TestUpdater_Run_RestartsChangedService runs a full batch against a fake daemon and CLI: the changed service is pulled, restarted and pruned after, the unchanged one is left alone.
//
//nolint:funlen // Integration test requires comprehensive setup and verification.
func TestUpdater_Run_RestartsChangedService(t *testing.T) {
	// Fake daemon knows the tags of every image the stub reports.
	engine := startEngineAPI(t, map[string][]string{
		"sha256:web-stable": {"registry.example/web:1.4.2"},
		"sha256:app-old":    {"registry.example/app:1.0.0"},
		"sha256:app-new":    {"registry.example/app:1.1.0"},
	})

	calls := stubDockerCLI(t, false)

	// Services root with one changing and one stable project.
	root := t.TempDir()
	writeService(t, root, "app")
	writeService(t, root, "web")

	options := &updater.Options{
		Root:        root,
		StopTimeout: 30 * time.Second,
	}

	require.NoError(t, updater.Run(context.Background(), options))

	recorded := recordedCalls(t, calls)

	// Both projects are refreshed: snapshot, merged config, pull, snapshot.
	// Only app is restarted and verified afterwards.
	require.Len(t, recorded, 11)

	appCalls := callsMatching(recorded, "app compose ")
	require.Len(t, appCalls, 7)
	require.Contains(t, appCalls[4], " down --timeout 30 --remove-orphans")
	require.Contains(t, appCalls[5], " up --detach")
	require.Contains(t, appCalls[6], " ps --quiet --all")

	webCalls := callsMatching(recorded, "web compose ")
	require.Len(t, webCalls, 4)
	require.Empty(t, callsMatching(webCalls, " down "))
	require.Empty(t, callsMatching(webCalls, " up "))

	// No credentials file, so the registry is never contacted.
	require.Empty(t, callsMatching(recorded, "login"))

	// The final cleanup prunes each resource family once.
	require.Equal(t, []string{
		"/images/prune",
		"/volumes/prune",
		"/build/prune",
		"/networks/prune",
	}, engine.prunes())

	// The instance marker is released.
	_, err := os.Stat(filepath.Join(root, markerFilename))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestUpdater_Run_LoginFailureStopsRun verifies a failed registry login aborts the batch before any service is touched.
func TestUpdater_Run_LoginFailureStopsRun(t *testing.T) {
	engine := startEngineAPI(t, nil)
	calls := stubDockerCLI(t, true)

	root := t.TempDir()
	writeService(t, root, "web")

	credentials := `[{"registry.example": {"username": "updater", "password": "hunter2"}}]`
	require.NoError(
		t,
		os.WriteFile(filepath.Join(root, config.CredentialsFilename), []byte(credentials), 0o600),
	)

	err := updater.Run(context.Background(), &updater.Options{Root: root})
	require.Error(t, err)
	require.Contains(t, err.Error(), "registry authentication")

	// The only CLI call is the login attempt, no compose command ran.
	recorded := recordedCalls(t, calls)
	require.Len(t, recorded, 1)
	require.Contains(t, recorded[0], "login --username updater --password-stdin registry.example")

	// Cleanup never ran, so nothing was pruned, and the marker is released.
	require.Empty(t, engine.prunes())

	_, err = os.Stat(filepath.Join(root, markerFilename))
	require.ErrorIs(t, err, os.ErrNotExist)
}
