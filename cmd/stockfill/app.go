package main

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/vertextoedge/stockfill/internal/adapter/browser"
	"github.com/vertextoedge/stockfill/internal/adapter/filesystem"
	"github.com/vertextoedge/stockfill/internal/adapter/sqlite"
	"github.com/vertextoedge/stockfill/internal/adapter/stockapi"
	"github.com/vertextoedge/stockfill/internal/config"
	"github.com/vertextoedge/stockfill/internal/domain/event"
	"github.com/vertextoedge/stockfill/internal/logger"
	"github.com/vertextoedge/stockfill/internal/metrics"
	"github.com/vertextoedge/stockfill/internal/service/download"
	"github.com/vertextoedge/stockfill/internal/service/maintenance"
	"github.com/vertextoedge/stockfill/internal/service/session"
	"github.com/vertextoedge/stockfill/internal/ui/terminal"
)

// app holds every wired component for one CLI invocation
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	format string

	// stdout carries encoded output; the presenter moves to stderr for json/yaml
	stdout    io.Writer
	presenter *terminal.Presenter

	client      *stockapi.Client
	files       *filesystem.Manager
	store       *sqlite.Store
	dispatcher  *event.InMemoryDispatcher
	metrics     *metrics.Recorder
	browser     *browser.Driver
	chain       *download.Chain
	controller  *session.Controller
	maintenance *maintenance.Service
}

func newApp(cfg *config.Config, format string, stdout, stderr io.Writer) (*app, error) {
	zapLogger := logger.GetZapLogger()

	a := &app{
		cfg:    cfg,
		logger: zapLogger,
		format: format,
		stdout: stdout,
	}
	if format == terminal.FormatTable {
		a.presenter = terminal.New(stdout)
	} else {
		a.presenter = terminal.New(stderr)
	}

	client, err := stockapi.NewClient(cfg.Server.URL, &stockapi.ClientConfig{
		Timeout:         cfg.Server.GetTimeout(),
		DownloadTimeout: cfg.Server.GetDownloadTimeout(),
		SkipTLSVerify:   cfg.Server.SkipTLSVerify,
		UserAgent:       "stockfill/" + version,
	}, logger.Named("stockapi"))
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}
	a.client = client

	a.files, err = filesystem.NewManagerWithBufferSize(cfg.Output.Dir, cfg.Output.GetBufferSize())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	dbPath := cfg.GetDatabasePath()
	a.store, err = sqlite.Open(dbPath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	a.dispatcher = event.NewInMemoryDispatcher(func(ev event.DomainEvent, err error) {
		zapLogger.Warn("event handler failed", zap.String("event", ev.EventName()), zap.Error(err))
	})
	a.metrics = metrics.New()
	a.dispatcher.Subscribe(event.NewLoggingHandler(logger.Named("events")))
	a.dispatcher.Subscribe(download.NewHistoryHandler(a.store))
	a.dispatcher.Subscribe(a.metrics)

	a.browser = browser.New(browser.Config{
		Enabled:           cfg.Browser.Enabled,
		DebuggerURL:       cfg.Browser.DebuggerURL,
		Bin:               cfg.Browser.Bin,
		Flags:             cfg.Browser.Flags,
		Headless:          cfg.Browser.Headless,
		DownloadDir:       a.files.RootDir(),
		LinkReleaseDelay:  cfg.Browser.GetLinkReleaseDelay(),
		NavigationTimeout: cfg.Browser.GetNavigationTimeout(),
	}, logger.Named("browser"))

	releaser := &download.Releaser{}
	strategies, err := download.BuildStrategies(cfg.Download.Strategies, download.Deps{
		Fetcher:            a.client,
		Store:              a.files,
		Clicker:            a.browser,
		Opener:             a.browser,
		Notifier:           a.presenter,
		Releaser:           releaser,
		Logger:             logger.Named("download"),
		SpoolReleaseDelay:  cfg.Download.GetSpoolReleaseDelay(),
		AssumeSuccessDelay: cfg.Download.GetAssumeSuccessDelay(),
		ProgressInterval:   cfg.Download.GetProgressInterval(),
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.chain = download.NewChain(strategies, releaser, a.presenter, a.dispatcher, logger.Named("download"))

	a.controller, err = session.NewController(a.client, a.store, a.chain, a.presenter, a.dispatcher, logger.Named("session"))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	a.maintenance = maintenance.New(&maintenance.Config{
		HistoryMaxAge:  cfg.Maintenance.GetHistoryMaxAge(),
		TempFileMaxAge: cfg.Maintenance.GetTempFileMaxAge(),
	}, a.store, a.files, logger.Named("maintenance"))

	return a, nil
}

// close releases resources in reverse construction order.
// Pending spool releases run before the browser and database go away.
func (a *app) close() {
	if a.chain != nil {
		a.chain.Wait()
	}
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			a.logger.Debug("failed to close browser", zap.Error(err))
		}
	}
	if a.metrics != nil {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			a.logger.Warn("metrics export failed", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
	if a.client != nil {
		a.client.Close()
	}
}

// emit writes v in the selected output format, or calls render for tables
func (a *app) emit(v any, render func()) error {
	if a.format == terminal.FormatTable {
		if render != nil {
			render()
		}
		return nil
	}
	return terminal.Encode(a.stdout, a.format, v)
}

// reportedError marks an error the presenter already showed to the user
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

func isReported(err error) bool {
	var re *reportedError
	return errors.As(err, &re)
}
