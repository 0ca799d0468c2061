package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/specialistvlad/facerig/internal/binder"
	"github.com/specialistvlad/facerig/internal/config"
	"github.com/specialistvlad/facerig/internal/ctxlog"
	"github.com/specialistvlad/facerig/internal/engine"
	"github.com/specialistvlad/facerig/internal/harvest"
	"github.com/specialistvlad/facerig/internal/media"
	"github.com/specialistvlad/facerig/internal/orchestrator"
	"github.com/specialistvlad/facerig/internal/stager"
	"github.com/specialistvlad/facerig/internal/workflow"
	"github.com/specialistvlad/facerig/internal/workspace"
)

// Option customizes an App during construction.
type Option func(*App)

// WithSession replaces the ComfyUI session. No engine process is launched
// when a session is supplied.
func WithSession(s engine.Session) Option {
	return func(a *App) { a.session = s }
}

// WithSettings replaces the settings that would be loaded from ConfigPath.
func WithSettings(s *config.Settings) Option {
	return func(a *App) { a.settings = s }
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	settings *config.Settings

	session   engine.Session
	comfy     *engine.Comfy
	launcher  *engine.Launcher
	predictor *orchestrator.Predictor

	httpServer *http.Server
	ready      atomic.Bool
}

// NewApp is the constructor for the main application. Results are written to
// outW and logs to logW. Configuration errors are fatal and reported by
// panicking, since the process cannot serve any request without them.
func NewApp(outW, logW io.Writer, cfg *Config, opts ...Option) *App {
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	if err != nil {
		panic(err)
	}
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	a := &App{outW: outW, logger: logger, config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.settings == nil {
		settings, err := config.Load(ctx, cfg.ConfigPath)
		if err != nil {
			panic(fmt.Errorf("failed to load configuration: %w", err))
		}
		a.settings = settings
	}
	s := a.settings

	tmpl, err := loadTemplate(s.TemplatePath)
	if err != nil {
		panic(fmt.Errorf("failed to load workflow template: %w", err))
	}
	logger.Debug("Workflow template loaded.", "nodes", len(tmpl.NodeIDs()), "path", s.TemplatePath)

	b, err := binder.New(tmpl, binder.Table())
	if err != nil {
		// The binding table is compiled in, so a mismatch is a programmer error.
		panic(err)
	}
	logger.Debug("Binding table validated.")

	ws, err := workspace.New(s.InputDir, s.OutputDir, s.ScratchDir)
	if err != nil {
		panic(fmt.Errorf("invalid workspace: %w", err))
	}

	if a.session == nil {
		comfy, err := engine.NewComfy(engine.Options{
			Address:        s.EngineAddress,
			ModelsDir:      s.ModelsDir,
			WeightsBaseURL: s.WeightsBaseURL,
		})
		if err != nil {
			panic(fmt.Errorf("invalid engine settings: %w", err))
		}
		a.comfy = comfy
		a.session = comfy

		if len(s.EngineCommand) > 0 {
			a.launcher = &engine.Launcher{Command: s.EngineCommand, Dir: s.EngineDir, Output: logW}
		}
	}

	predictor, err := orchestrator.New(orchestrator.Options{
		Workspace:  ws,
		Stager:     stager.New(s.InputDir),
		Binder:     b,
		Engine:     a.session,
		Harvester:  harvest.New(a.session, s.ScratchDir),
		Normalizer: media.NewEncoder(s.OutputDir),
	})
	if err != nil {
		panic(err)
	}
	a.predictor = predictor
	logger.Debug("Predictor wired.")

	return a
}

func loadTemplate(path string) (*workflow.Template, error) {
	if path == "" {
		return workflow.Default(binder.ImageNode, binder.ExpressionNode)
	}
	return workflow.Load(path, binder.ImageNode, binder.ExpressionNode)
}

// Settings returns the resolved settings. This is primarily for testing.
func (a *App) Settings() *config.Settings {
	return a.settings
}
