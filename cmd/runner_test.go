package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/desertthunder/fedsearch/internal/repositories"
	"github.com/desertthunder/fedsearch/internal/services"
	"github.com/desertthunder/fedsearch/internal/shared"
	tu "github.com/desertthunder/fedsearch/internal/testing"
)

type stubProvider struct {
	artists []models.ResultItem
	err     error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Search(ctx context.Context, text string) (*services.InfoResults, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.InfoResults{Artists: s.artists}, nil
}

type stubResolver struct {
	tracks []models.Track
}

func (s *stubResolver) Name() string { return "stub" }

func (s *stubResolver) Resolve(ctx context.Context, text string) ([]models.Track, error) {
	return s.tracks, nil
}

func online(context.Context) error { return nil }

// testRunner returns a runner over a temporary library with stubbed backends.
func testRunner(t *testing.T, output *bytes.Buffer) *Runner {
	t.Helper()

	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(t.TempDir(), "library.db")
	config.Log.Level = "error"

	return NewRunner(RunnerOpts{
		Config: config,
		Output: output,
		Logger: shared.NewLogger(&bytes.Buffer{}),
		Providers: []services.InfoProvider{&stubProvider{artists: []models.ResultItem{
			{Key: "artist:radiohead", Title: "Radiohead", Subtitle: "Oxford"},
		}}},
		Resolvers: []services.TrackResolver{&stubResolver{tracks: []models.Track{
			{ID: "t1", Title: "Idioteque", Artist: "Radiohead", Album: "Kid A", Source: "stub"},
		}}},
		Probe: online,
	})
}

func run(r *Runner, args ...string) error {
	return r.app().Run(context.Background(), append([]string{"fedsearch"}, args...))
}

func seedLibrary(t *testing.T, path string, tracks ...*models.LibraryTrack) {
	t.Helper()

	db, err := shared.OpenLibrary(shared.DatabaseConfig{Path: path})
	if err != nil {
		t.Fatalf("failed to open library: %v", err)
	}
	defer db.Close()

	repo := repositories.NewLibraryRepository(db)
	for _, track := range tracks {
		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to seed track: %v", err)
		}
	}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			providers := []services.InfoProvider{&stubProvider{}}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Providers:  providers,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if !runner.loaded {
				t.Error("expected a provided config to count as loaded")
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
			if len(runner.providers) != 1 {
				t.Error("expected providers to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.loaded {
				t.Error("expected default config not to count as loaded")
			}
		})

		t.Run("with nil logger, output and client uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected stdout as default output")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected default HTTP client")
			}
		})
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

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writeBytes", func(t *testing.T) {
		t.Run("does not double a trailing newline", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeBytes([]byte("done\n")); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "done\n" {
				t.Errorf("expected %q, got %q", "done\n", output.String())
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

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		want := []string{"search", "tui", "serve", "setup", "library"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, name := range want {
			if commands[i].Name != name {
				t.Errorf("command %d: expected %q, got %q", i, name, commands[i].Name)
			}
		}
	})
}

func TestConfigLoading(t *testing.T) {
	t.Run("loads --config and applies its settings", func(t *testing.T) {
		dir := t.TempDir()
		dbPath := filepath.Join(dir, "from-config.db")
		configPath := filepath.Join(dir, "config.toml")
		content := "[log]\nlevel = \"warn\"\n\n[database]\npath = \"" + filepath.ToSlash(dbPath) + "\"\n"
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output, Logger: shared.NewLogger(&bytes.Buffer{})})

		if err := run(runner, "--config", configPath, "setup", "database"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if runner.configPath != configPath {
			t.Errorf("expected config path %q, got %q", configPath, runner.configPath)
		}
		if runner.config.Database.Path != filepath.ToSlash(dbPath) {
			t.Errorf("expected database path from config, got %q", runner.config.Database.Path)
		}
		if _, err := os.Stat(dbPath); err != nil {
			t.Errorf("expected database file to exist: %v", err)
		}
		if !strings.Contains(output.String(), "migrations applied") {
			t.Errorf("expected setup summary, got %q", output.String())
		}
	})

	t.Run("missing --config file is an error", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Logger: shared.NewLogger(&bytes.Buffer{})})

		err := run(runner, "--config", filepath.Join(t.TempDir(), "nope.toml"), "setup", "database")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("invalid --log-level is an error", func(t *testing.T) {
		runner := testRunner(t, &bytes.Buffer{})

		if err := run(runner, "--log-level", "loud", "setup", "database"); err == nil {
			t.Error("expected an error for an unknown log level")
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("setup config writes the example file", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := testRunner(t, output)
		path := filepath.Join(t.TempDir(), "nested", "config.toml")

		if err := run(runner, "setup", "config", "--path", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if _, err := shared.LoadConfig(path); err != nil {
			t.Errorf("expected a loadable config, got %v", err)
		}
		if !strings.Contains(output.String(), "Configuration written") {
			t.Errorf("expected confirmation, got %q", output.String())
		}
	})

	t.Run("setup config leaves an existing file untouched", func(t *testing.T) {
		runner := testRunner(t, &bytes.Buffer{})
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("# mine\n"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := run(runner, "setup", "config", "--path", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		data, _ := os.ReadFile(path)
		if string(data) != "# mine\n" {
			t.Errorf("expected file to be unchanged, got %q", data)
		}
	})

	t.Run("setup database rollback", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := testRunner(t, output)

		if err := run(runner, "setup", "database"); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		if err := run(runner, "setup", "database", "--rollback"); err != nil {
			t.Fatalf("rollback: %v", err)
		}
		if !strings.Contains(output.String(), "(0 migrations applied)") {
			t.Errorf("expected every migration rolled back, got %q", output.String())
		}
	})
}

func TestSearchCommand(t *testing.T) {
	t.Run("prints merged results as JSON", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := testRunner(t, output)

		if err := run(runner, "search", "--json", "--wait", "200ms", "kid", "a"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var set models.AggregatedResultSet
		if err := json.Unmarshal(output.Bytes(), &set); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", output.String(), err)
		}
		if set.Query != "kid a" {
			t.Errorf("expected query %q, got %q", "kid a", set.Query)
		}
		if len(set.Items(models.CategoryArtist)) != 1 {
			t.Errorf("expected 1 artist, got %d", len(set.Items(models.CategoryArtist)))
		}
		if len(set.Items(models.CategoryTrack)) != 1 {
			t.Errorf("expected 1 track, got %d", len(set.Items(models.CategoryTrack)))
		}
	})

	t.Run("renders text by default", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := testRunner(t, output)

		if err := run(runner, "search", "--wait", "200ms", "kid a"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		for _, want := range []string{"Radiohead", "Idioteque"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected output to contain %q, got %q", want, output.String())
			}
		}
	})

	t.Run("writes to --output", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := testRunner(t, output)
		path := filepath.Join(t.TempDir(), "results.csv")

		if err := run(runner, "search", "--format", "csv", "--output", path, "--wait", "200ms", "kid a"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("expected export file: %v", err)
		}
		if !strings.HasPrefix(string(data), "category,key,title,subtitle,image") {
			t.Errorf("expected CSV header, got %q", data)
		}
		if !strings.Contains(output.String(), "written to") {
			t.Errorf("expected confirmation, got %q", output.String())
		}
	})

	t.Run("still prints when a provider fails", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := testRunner(t, output)
		runner.providers = []services.InfoProvider{&stubProvider{err: shared.ErrAPIRequest}}

		if err := run(runner, "search", "--json", "--wait", "200ms", "kid a"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Idioteque") {
			t.Errorf("expected track results despite the failure, got %q", output.String())
		}
	})

	t.Run("missing query", func(t *testing.T) {
		runner := testRunner(t, &bytes.Buffer{})

		if err := run(runner, "search"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		runner := testRunner(t, &bytes.Buffer{})

		if err := run(runner, "search", "--format", "xml", "kid a"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestWaitQuiet(t *testing.T) {
	t.Run("returns after the quiet period", func(t *testing.T) {
		changed := make(chan struct{}, 1)
		start := time.Now()

		waitQuiet(context.Background(), changed, 30*time.Millisecond)

		if time.Since(start) < 30*time.Millisecond {
			t.Error("expected to wait for the quiet period")
		}
	})

	t.Run("a change restarts the timer", func(t *testing.T) {
		changed := make(chan struct{}, 1)
		start := time.Now()
		go func() {
			time.Sleep(20 * time.Millisecond)
			changed <- struct{}{}
		}()

		waitQuiet(context.Background(), changed, 40*time.Millisecond)

		if time.Since(start) < 60*time.Millisecond {
			t.Error("expected the change to extend the wait")
		}
	})

	t.Run("returns when the context ends", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		done := make(chan struct{})
		go func() {
			waitQuiet(ctx, make(chan struct{}), time.Hour)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("expected waitQuiet to return on cancellation")
		}
	})
}

func TestLibraryCommands(t *testing.T) {
	seed := func(t *testing.T, runner *Runner) {
		t.Helper()
		kid := models.NewLibraryTrack("/music/kid a/01.flac", "Everything In Its Right Place", "Radiohead", "Kid A")
		kid.SetDuration(251)
		seedLibrary(t, runner.config.Database.Path,
			kid,
			models.NewLibraryTrack("/music/kid a/08.flac", "Idioteque", "Radiohead", "Kid A"),
			models.NewLibraryTrack("/music/blue/01.flac", "All I Want", "Joni Mitchell", "Blue"),
		)
	}

	t.Run("list renders a table", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := testRunner(t, output)
		seed(t, runner)

		if err := run(runner, "library", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		result := output.String()
		for _, want := range []string{"Title", "Idioteque", "All I Want", "4m11s", "3 of 3 tracks"} {
			if !strings.Contains(result, want) {
				t.Errorf("expected output to contain %q, got %q", want, result)
			}
		}
	})

	t.Run("list filters by artist as JSON", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := testRunner(t, output)
		seed(t, runner)

		if err := run(runner, "library", "list", "--artist", "joni mitchell", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var rows []libraryRow
		if err := json.Unmarshal(output.Bytes(), &rows); err != nil {
			t.Fatalf("expected JSON, got %q: %v", output.String(), err)
		}
		if len(rows) != 1 || rows[0].Title != "All I Want" {
			t.Errorf("expected the Joni Mitchell track, got %+v", rows)
		}
	})

	t.Run("search keeps fuzzy matches only", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := testRunner(t, output)
		seed(t, runner)

		if err := run(runner, "library", "search", "--json", "right", "place"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var rows []libraryRow
		if err := json.Unmarshal(output.Bytes(), &rows); err != nil {
			t.Fatalf("expected JSON, got %q: %v", output.String(), err)
		}
		if len(rows) != 1 || rows[0].Title != "Everything In Its Right Place" {
			t.Errorf("expected one match, got %+v", rows)
		}
	})

	t.Run("search requires text", func(t *testing.T) {
		runner := testRunner(t, &bytes.Buffer{})

		if err := run(runner, "library", "search"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("import reports unreadable files", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := testRunner(t, output)
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "noise.mp3"), []byte("not audio"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := run(runner, "library", "import", dir); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		result := output.String()
		for _, want := range []string{"scanned: 1", "failed:  1", "Library now holds 0 tracks"} {
			if !strings.Contains(result, want) {
				t.Errorf("expected output to contain %q, got %q", want, result)
			}
		}
	})

	t.Run("import requires a directory", func(t *testing.T) {
		runner := testRunner(t, &bytes.Buffer{})

		if err := run(runner, "library", "import"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("normalizeExtensions", func(t *testing.T) {
		got := normalizeExtensions([]string{"MP3", ".flac", " "})
		if len(got) != 2 || got[0] != ".mp3" || got[1] != ".flac" {
			t.Errorf("unexpected extensions %v", got)
		}
		if normalizeExtensions(nil) != nil {
			t.Error("expected nil for no extensions")
		}
	})
}

func TestRouter(t *testing.T) {
	runner := testRunner(t, &bytes.Buffer{})
	b, err := runner.openBackends()
	if err != nil {
		t.Fatalf("failed to open backends: %v", err)
	}
	defer b.close()

	srv := httptest.NewServer(runner.router(b, 100*time.Millisecond))
	defer srv.Close()

	t.Run("health lists the backends", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var status struct {
			Providers []string `json:"providers"`
			Resolvers []string `json:"resolvers"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			t.Fatal(err)
		}
		if len(status.Providers) != 1 || status.Providers[0] != "stub" {
			t.Errorf("unexpected providers %v", status.Providers)
		}
		if len(status.Resolvers) != 1 {
			t.Errorf("unexpected resolvers %v", status.Resolvers)
		}
	})

	t.Run("search streams until done", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/search?q=kid+a")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		var body bytes.Buffer
		if _, err := body.ReadFrom(resp.Body); err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{"event: started", "event: results", "event: done", "Radiohead"} {
			if !strings.Contains(body.String(), want) {
				t.Errorf("expected stream to contain %q, got %q", want, body.String())
			}
		}
	})

	t.Run("configured resolvers include the library", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.YouTube.ProxyURL = ""
		resolvers := configuredResolvers(config, nil, http.DefaultClient)
		if len(resolvers) != 1 || resolvers[0].Name() != "library" {
			t.Errorf("expected only the library resolver, got %d", len(resolvers))
		}

		config.YouTube.ProxyURL = "http://localhost:8080"
		if len(configuredResolvers(config, nil, http.DefaultClient)) != 2 {
			t.Error("expected the youtube resolver once a proxy is configured")
		}
	})

	t.Run("providers without credentials are skipped", func(t *testing.T) {
		config := shared.DefaultConfig()
		if got := configuredProviders(config, shared.NewLogger(&bytes.Buffer{})); len(got) != 0 {
			t.Errorf("expected no providers, got %d", len(got))
		}
	})
}
