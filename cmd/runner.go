package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelfreq/internal/matcher"
	"github.com/desertthunder/shelfreq/internal/repositories"
	"github.com/desertthunder/shelfreq/internal/services"
	"github.com/desertthunder/shelfreq/internal/shared"
	"github.com/desertthunder/shelfreq/internal/tasks"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Storage and the sync service are opened lazily by the first command that needs them.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	db       *sql.DB
	requests *repositories.RequestRepository
	runs     *repositories.SyncRunRepository
	catalog  *services.AudiobookshelfService
	service  *tasks.SyncService
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, syncCommand, requestCommand, catalogCommand, monitorCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by commands and by anything opened afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// loadConfig replaces the startup config when --config was passed explicitly.
func (r *Runner) loadConfig(cmd *cli.Command) error {
	if cmd == nil || !cmd.IsSet("config") {
		return nil
	}
	path := cmd.String("config")
	if path == r.configPath {
		return nil
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMissingConfig, err)
	}
	r.config, r.configPath = config, path
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(config.Log.Level))
	return nil
}

// open loads the config, then opens the database and wires the sync service.
func (r *Runner) open(cmd *cli.Command) error {
	if r.service != nil {
		return nil
	}
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	threshold, err := matcher.New(r.config.Sync.Threshold)
	if err != nil {
		db.Close()
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	window := r.config.Sync.StalenessWindow.Duration
	r.db = db
	r.requests = repositories.NewRequestRepository(db)
	r.runs = repositories.NewSyncRunRepository(db)
	r.catalog = services.NewAudiobookshelfService(
		r.config.Catalog,
		shared.WithLogger(r.logger, "component", "catalog"),
		services.WithHTTPClient(r.httpClient),
	)
	cache := services.NewCatalogCache(r.config.Catalog.CacheTTL.Duration)

	engine := tasks.NewReconcileEngine(tasks.EngineDeps{
		Requests: r.requests,
		Runs:     r.runs,
		Catalog:  r.catalog,
		Matcher:  threshold,
		Cache:    cache,
		Window:   window,
		Logger:   shared.WithLogger(r.logger, "component", "engine"),
	})
	dispatcher := tasks.NewDispatcher(engine, r.config.Sync.QueueSize, r.config.Sync.Workers, shared.WithLogger(r.logger, "component", "dispatcher"))
	scheduler := tasks.NewScheduler(dispatcher, r.config.Sync.Interval.Duration, shared.WithLogger(r.logger, "component", "scheduler"))

	r.service = tasks.NewSyncService(tasks.ServiceDeps{
		Engine:     engine,
		Runs:       r.runs,
		Catalog:    r.catalog,
		Dispatcher: dispatcher,
		Scheduler:  scheduler,
		Cache:      cache,
		Window:     window,
		Logger:     shared.WithLogger(r.logger, "component", "sync"),
	})
	return nil
}

// Close releases the database. Safe to call more than once.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db, r.requests, r.runs, r.catalog, r.service = nil, nil, nil, nil, nil
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
