package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/shelfreq/internal/models"
	"github.com/desertthunder/shelfreq/internal/shared"
	"github.com/desertthunder/shelfreq/internal/tasks"
	tu "github.com/desertthunder/shelfreq/internal/testing"
	"github.com/gofrs/flock"
	"github.com/urfave/cli/v3"
)

func testConfig(t *testing.T) *shared.Config {
	t.Helper()
	config := shared.DefaultConfig()
	config.Database.Path = ":memory:"
	config.Server.LockFile = filepath.Join(t.TempDir(), "shelfreq.lock")
	config.Catalog.URL = ""
	config.Catalog.APIToken = ""
	return config
}

func newTestRunner(t *testing.T, config *shared.Config) (*Runner, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: shared.NewLogger(io.Discard),
		Output: output,
	})
	t.Cleanup(func() { runner.Close() })
	return runner, output
}

func runApp(ctx context.Context, r *Runner, args ...string) error {
	app := &cli.Command{Name: "shelfreq", Commands: r.register()}
	return app.Run(ctx, append([]string{"shelfreq"}, args...))
}

// fakeABS serves one book library with the given titles, all by the same author.
func fakeABS(t *testing.T, author string, titles ...string) *httptest.Server {
	t.Helper()
	results := make([]map[string]any, 0, len(titles))
	for i, title := range titles {
		results = append(results, map[string]any{
			"id": "item-" + string(rune('a'+i)),
			"media": map[string]any{
				"duration": 36000.0,
				"metadata": map[string]any{"title": title, "authorName": author},
			},
		})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/libraries":
			json.NewEncoder(w).Encode(map[string]any{"libraries": []map[string]any{
				{"id": "lib-books", "name": "Audiobooks", "mediaType": "book"},
			}})
		case "/api/libraries/lib-books/items":
			if r.URL.Query().Get("page") != "0" {
				json.NewEncoder(w).Encode(map[string]any{"results": []any{}, "total": len(results)})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"results": results, "total": len(results)})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func withCatalog(config *shared.Config, url string) *shared.Config {
	config.Catalog.URL = url
	config.Catalog.APIToken = "test-token"
	config.Catalog.Timeout = shared.Duration{Duration: 2 * time.Second}
	config.Catalog.RateLimit = 0
	return config
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.service != nil || runner.db != nil {
				t.Error("expected storage to open lazily")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})
	})

	t.Run("open and Close", func(t *testing.T) {
		runner, _ := newTestRunner(t, testConfig(t))

		if err := runner.open(nil); err != nil {
			t.Fatalf("open() error = %v", err)
		}
		service := runner.service
		if err := runner.open(nil); err != nil || runner.service != service {
			t.Error("expected open to be idempotent")
		}

		if err := runner.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if runner.service != nil {
			t.Error("expected Close to drop the service")
		}
		if err := runner.Close(); err != nil {
			t.Errorf("second Close() should be a no-op, got %v", err)
		}
	})

	t.Run("open rejects an invalid threshold", func(t *testing.T) {
		config := testConfig(t)
		config.Sync.Threshold = 1.5
		runner, _ := newTestRunner(t, config)

		if err := runner.open(nil); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("writePlainln surrounds text with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			runner.writePlainln("done")
			if output.String() != "\ndone\n" {
				t.Errorf("expected surrounding newlines, got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "serve", "sync", "request", "catalog", "monitor"} {
			if !names[want] {
				t.Errorf("expected %q command to be registered", want)
			}
		}
	})
}

func TestRequestCommands(t *testing.T) {
	ctx := context.Background()
	runner, output := newTestRunner(t, testConfig(t))

	t.Run("add", func(t *testing.T) {
		if err := runApp(ctx, runner, "request", "add", "--author", "Andy Weir", "Project Hail Mary"); err != nil {
			t.Fatalf("request add error = %v", err)
		}
		if !strings.Contains(output.String(), "✓ Added request") {
			t.Errorf("unexpected output: %q", output.String())
		}
	})

	t.Run("add requires a title", func(t *testing.T) {
		if err := runApp(ctx, runner, "request", "add"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Fatalf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("list as JSON", func(t *testing.T) {
		output.Reset()
		if err := runApp(ctx, runner, "request", "list", "--json"); err != nil {
			t.Fatalf("request list error = %v", err)
		}

		var requests []models.Request
		if err := json.Unmarshal(output.Bytes(), &requests); err != nil {
			t.Fatalf("failed to decode output: %v", err)
		}
		if len(requests) != 1 || requests[0].Title != "Project Hail Mary" || requests[0].Status != models.StatusPending {
			t.Errorf("unexpected requests: %+v", requests)
		}
	})

	t.Run("list rejects an unknown status", func(t *testing.T) {
		if err := runApp(ctx, runner, "request", "list", "--status", "lost"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("set-status", func(t *testing.T) {
		requests, err := runner.requests.List(ctx, nil)
		if err != nil || len(requests) != 1 {
			t.Fatalf("expected one stored request, got %d, %v", len(requests), err)
		}
		id := requests[0].ID

		output.Reset()
		if err := runApp(ctx, runner, "request", "set-status", id, "rejected"); err != nil {
			t.Fatalf("set-status error = %v", err)
		}
		if !strings.Contains(output.String(), "is now rejected") {
			t.Errorf("unexpected output: %q", output.String())
		}

		err = runApp(ctx, runner, "request", "set-status", id, "fulfilled")
		if !errors.Is(err, shared.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition without a matched item, got %v", err)
		}
	})

	t.Run("stats", func(t *testing.T) {
		output.Reset()
		if err := runApp(ctx, runner, "request", "stats", "--json"); err != nil {
			t.Fatalf("request stats error = %v", err)
		}

		var stats struct {
			Counts map[string]int `json:"counts"`
			Total  int            `json:"total"`
		}
		if err := json.Unmarshal(output.Bytes(), &stats); err != nil {
			t.Fatalf("failed to decode output: %v", err)
		}
		if stats.Total != 1 || stats.Counts["rejected"] != 1 {
			t.Errorf("unexpected stats: %+v", stats)
		}
	})
}

func TestSyncCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("run matches a request and records it in the ledger", func(t *testing.T) {
		abs := fakeABS(t, "Andy Weir", "Project Hail Mary", "The Martian")
		runner, output := newTestRunner(t, withCatalog(testConfig(t), abs.URL))

		if err := runApp(ctx, runner, "request", "add", "--author", "Andy Weir", "Project Hail Mary"); err != nil {
			t.Fatalf("request add error = %v", err)
		}

		output.Reset()
		if err := runApp(ctx, runner, "sync", "run", "--actor", "admin"); err != nil {
			t.Fatalf("sync run error = %v", err)
		}
		if !strings.Contains(output.String(), "completed") {
			t.Errorf("expected a completed run, got %q", output.String())
		}

		requests, _ := runner.requests.List(ctx, nil)
		if len(requests) != 1 {
			t.Fatalf("expected one request, got %d", len(requests))
		}
		if requests[0].Status != models.StatusFulfilled || !requests[0].FulfilledBySync {
			t.Fatalf("expected the request to be fulfilled by sync, got %+v", requests[0])
		}

		output.Reset()
		if err := runApp(ctx, runner, "sync", "status", "--json"); err != nil {
			t.Fatalf("sync status error = %v", err)
		}
		var status tasks.SyncStatus
		if err := json.Unmarshal(output.Bytes(), &status); err != nil {
			t.Fatalf("failed to decode status: %v", err)
		}
		if !status.Configured || status.IsRunning || status.LastRun == nil {
			t.Fatalf("unexpected status: %+v", status)
		}
		if status.LastRun.MatchesFound != 1 || shared.Deref(status.LastRun.ActorID) != "admin" {
			t.Errorf("unexpected last run: %+v", status.LastRun)
		}

		output.Reset()
		if err := runApp(ctx, runner, "sync", "show", "--json", status.LastRun.ID); err != nil {
			t.Fatalf("sync show error = %v", err)
		}
		if !strings.Contains(output.String(), status.LastRun.ID) {
			t.Errorf("expected run detail, got %q", output.String())
		}

		output.Reset()
		if err := runApp(ctx, runner, "sync", "history", "--format", "csv"); err != nil {
			t.Fatalf("sync history error = %v", err)
		}
		if lines := strings.Split(strings.TrimSpace(output.String()), "\n"); len(lines) != 2 {
			t.Errorf("expected header and one row, got %q", output.String())
		}
	})

	t.Run("run without a catalog", func(t *testing.T) {
		runner, _ := newTestRunner(t, testConfig(t))

		if err := runApp(ctx, runner, "sync", "run"); !errors.Is(err, shared.ErrCatalogNotConfigured) {
			t.Fatalf("expected ErrCatalogNotConfigured, got %v", err)
		}
	})

	t.Run("run with an unreachable catalog records a failed run", func(t *testing.T) {
		abs := fakeABS(t, "Andy Weir")
		abs.Close()
		runner, _ := newTestRunner(t, withCatalog(testConfig(t), abs.URL))

		if err := runApp(ctx, runner, "sync", "run"); !errors.Is(err, shared.ErrCatalogUnavailable) {
			t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
		}

		page, err := runner.runs.List(ctx, 1, 10)
		if err != nil || page.Total != 1 {
			t.Fatalf("expected one run, got %v", err)
		}
		if page.Runs[0].Status != models.RunFailed || page.Runs[0].Error == nil {
			t.Errorf("expected a failed run with an error, got %+v", page.Runs[0])
		}
	})

	t.Run("status before any run", func(t *testing.T) {
		runner, output := newTestRunner(t, testConfig(t))

		if err := runApp(ctx, runner, "sync", "status"); err != nil {
			t.Fatalf("sync status error = %v", err)
		}
		if !strings.Contains(output.String(), "Configured: no") || !strings.Contains(output.String(), "No sync has finished yet.") {
			t.Errorf("unexpected output: %q", output.String())
		}
	})

	t.Run("history", func(t *testing.T) {
		runner, output := newTestRunner(t, testConfig(t))

		if err := runApp(ctx, runner, "sync", "history"); err != nil {
			t.Fatalf("sync history error = %v", err)
		}
		if !strings.Contains(output.String(), "No sync runs recorded.") {
			t.Errorf("unexpected output: %q", output.String())
		}

		if err := runApp(ctx, runner, "sync", "history", "--format", "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}

		path := filepath.Join(t.TempDir(), "exports", "history.md")
		if err := runApp(ctx, runner, "sync", "history", "--format", "markdown", "--output", path); err != nil {
			t.Fatalf("sync history export error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected export file at %s: %v", path, err)
		}
	})

	t.Run("show", func(t *testing.T) {
		runner, _ := newTestRunner(t, testConfig(t))

		if err := runApp(ctx, runner, "sync", "show"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Fatalf("expected ErrMissingArgument, got %v", err)
		}
		if err := runApp(ctx, runner, "sync", "show", "missing"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Fatalf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("reclaim", func(t *testing.T) {
		runner, output := newTestRunner(t, testConfig(t))

		if err := runApp(ctx, runner, "sync", "reclaim"); err != nil {
			t.Fatalf("sync reclaim error = %v", err)
		}
		if !strings.Contains(output.String(), "No abandoned runs found.") {
			t.Errorf("unexpected output: %q", output.String())
		}
	})

	t.Run("trigger", func(t *testing.T) {
		t.Run("queued", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/sync" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if r.Header.Get("X-Actor-ID") != "admin" {
					t.Errorf("expected actor header, got %q", r.Header.Get("X-Actor-ID"))
				}
				w.WriteHeader(http.StatusAccepted)
				io.WriteString(w, `{"queued":true,"message":"Sync started in the background"}`)
			}))
			defer srv.Close()
			runner, output := newTestRunner(t, testConfig(t))

			if err := runApp(ctx, runner, "sync", "trigger", "--server", srv.URL, "--actor", "admin"); err != nil {
				t.Fatalf("sync trigger error = %v", err)
			}
			if !strings.Contains(output.String(), "✓ Sync started in the background") {
				t.Errorf("unexpected output: %q", output.String())
			}
		})

		t.Run("already running", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				io.WriteString(w, `{"queued":false,"message":"A sync is already in progress"}`)
			}))
			defer srv.Close()
			runner, output := newTestRunner(t, testConfig(t))

			if err := runApp(ctx, runner, "sync", "trigger", "--server", srv.URL); err != nil {
				t.Fatalf("sync trigger error = %v", err)
			}
			if strings.Contains(output.String(), "✓") || !strings.Contains(output.String(), "already in progress") {
				t.Errorf("unexpected output: %q", output.String())
			}
		})

		t.Run("server without a catalog", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				io.WriteString(w, `{"error":"catalog not configured"}`)
			}))
			defer srv.Close()
			runner, _ := newTestRunner(t, testConfig(t))

			err := runApp(ctx, runner, "sync", "trigger", "--server", srv.URL)
			if !errors.Is(err, shared.ErrCatalogNotConfigured) {
				t.Fatalf("expected ErrCatalogNotConfigured, got %v", err)
			}
		})

		t.Run("server unreachable", func(t *testing.T) {
			srv := httptest.NewServer(http.NotFoundHandler())
			srv.Close()
			runner, _ := newTestRunner(t, testConfig(t))

			err := runApp(ctx, runner, "sync", "trigger", "--server", srv.URL)
			if !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Fatalf("expected ErrServiceUnavailable, got %v", err)
			}
		})
	})
}

func TestCatalogCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("ping", func(t *testing.T) {
		abs := fakeABS(t, "Andy Weir", "The Martian")
		runner, output := newTestRunner(t, withCatalog(testConfig(t), abs.URL))

		if err := runApp(ctx, runner, "catalog", "ping"); err != nil {
			t.Fatalf("catalog ping error = %v", err)
		}
		if !strings.Contains(output.String(), "reachable") || !strings.Contains(output.String(), "Audiobooks") {
			t.Errorf("unexpected output: %q", output.String())
		}
	})

	t.Run("ping unconfigured", func(t *testing.T) {
		runner, _ := newTestRunner(t, testConfig(t))

		if err := runApp(ctx, runner, "catalog", "ping"); !errors.Is(err, shared.ErrCatalogNotConfigured) {
			t.Fatalf("expected ErrCatalogNotConfigured, got %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		abs := fakeABS(t, "Andy Weir", "The Martian", "Artemis")
		runner, output := newTestRunner(t, withCatalog(testConfig(t), abs.URL))

		if err := runApp(ctx, runner, "catalog", "list", "--limit", "1"); err != nil {
			t.Fatalf("catalog list error = %v", err)
		}
		if !strings.Contains(output.String(), "The Martian") || !strings.Contains(output.String(), "Showing 1 of 2 items") {
			t.Errorf("unexpected output: %q", output.String())
		}
	})
}

func TestSetupCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("config writes the template once", func(t *testing.T) {
		runner, output := newTestRunner(t, testConfig(t))
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := runApp(ctx, runner, "setup", "config", "--config", path); err != nil {
			t.Fatalf("setup config error = %v", err)
		}
		if _, err := shared.LoadConfig(path); err != nil {
			t.Fatalf("written config should load: %v", err)
		}
		if !strings.Contains(output.String(), "✓ Wrote") {
			t.Errorf("unexpected output: %q", output.String())
		}

		if err := runApp(ctx, runner, "setup", "config", "--config", path); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument for existing file, got %v", err)
		}
	})

	t.Run("config --print redacts the token", func(t *testing.T) {
		config := testConfig(t)
		config.Catalog.APIToken = "secret-token"
		runner, output := newTestRunner(t, config)

		if err := runApp(ctx, runner, "setup", "config", "--print"); err != nil {
			t.Fatalf("setup config --print error = %v", err)
		}
		if strings.Contains(output.String(), "secret-token") {
			t.Error("expected the API token to be redacted")
		}
		if !strings.Contains(output.String(), "[sync]") {
			t.Errorf("expected TOML output, got %q", output.String())
		}
	})

	t.Run("database migrates the configured path", func(t *testing.T) {
		dir := t.TempDir()
		dbPath := filepath.Join(dir, "shelfreq.db")
		configPath := filepath.Join(dir, "config.toml")
		contents := "[database]\npath = \"" + filepath.ToSlash(dbPath) + "\"\n"
		if err := os.WriteFile(configPath, []byte(contents), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		runner, _ := newTestRunner(t, testConfig(t))

		if err := runApp(ctx, runner, "setup", "database", "--config", configPath); err != nil {
			t.Fatalf("setup database error = %v", err)
		}

		db, err := shared.NewDatabase(dbPath)
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()
		var tables int
		if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('requests', 'sync_runs')").Scan(&tables); err != nil {
			t.Fatalf("failed to inspect schema: %v", err)
		}
		if tables != 2 {
			t.Errorf("expected requests and sync_runs tables, got %d", tables)
		}
	})

	t.Run("explicit missing config fails", func(t *testing.T) {
		runner, _ := newTestRunner(t, testConfig(t))

		err := runApp(ctx, runner, "request", "list", "--config", filepath.Join(t.TempDir(), "missing.toml"))
		if !errors.Is(err, shared.ErrMissingConfig) {
			t.Fatalf("expected ErrMissingConfig, got %v", err)
		}
	})
}

func TestServeCommand(t *testing.T) {
	t.Run("stops when the context is cancelled", func(t *testing.T) {
		config := testConfig(t)
		runner, _ := newTestRunner(t, config)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := runApp(ctx, runner, "serve", "--addr", "127.0.0.1:0"); err != nil {
			t.Fatalf("serve error = %v", err)
		}

		lock := flock.New(config.Server.LockFile)
		ok, err := lock.TryLock()
		if err != nil || !ok {
			t.Fatalf("expected the lock to be released, got %v, %v", ok, err)
		}
		lock.Unlock()
	})

	t.Run("refuses a second instance", func(t *testing.T) {
		config := testConfig(t)
		runner, _ := newTestRunner(t, config)

		held := flock.New(config.Server.LockFile)
		if ok, err := held.TryLock(); err != nil || !ok {
			t.Fatalf("failed to take lock: %v, %v", ok, err)
		}
		defer held.Unlock()

		err := runApp(context.Background(), runner, "serve", "--addr", "127.0.0.1:0")
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Fatalf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}
