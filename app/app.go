// app/app.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/contactrelay/config"
	"github.com/dalemusser/contactrelay/logging"
	"github.com/dalemusser/contactrelay/metrics"
	"github.com/dalemusser/contactrelay/pantry/version"
	"github.com/dalemusser/contactrelay/server"
	"go.uber.org/zap"
)

// DefaultVerifyTimeout bounds Hooks.Verify when the hook sets none itself.
const DefaultVerifyTimeout = 30 * time.Second

// Hooks are the integration points a service provides to Run.
// C is the app config type; D the bundle of backends built from it.
type Hooks[C any, D any] struct {
	// Name is used only for logging.
	Name string

	// LoadConfig returns the core config and the app config.
	LoadConfig func(logger *zap.Logger) (*config.CoreConfig, C, error)

	// Connect builds the backends (mail transport, limiters, …).
	Connect func(ctx context.Context, core *config.CoreConfig, appCfg C, logger *zap.Logger) (D, error)

	// Verify runs optional startup checks against the backends. May be nil.
	Verify func(ctx context.Context, core *config.CoreConfig, appCfg C, deps D, logger *zap.Logger) error

	// BuildHandler constructs the router and mounts the routes.
	BuildHandler func(core *config.CoreConfig, appCfg C, deps D, logger *zap.Logger) (http.Handler, error)

	// Close releases backends after the server stops. May be nil.
	Close func(deps D)
}

// Run executes the startup sequence:
//
//  1. Bootstrap logger
//  2. Load core + app config (Hooks.LoadConfig)
//  3. Build final logger from log_level / env
//  4. Register metrics (enable_metrics)
//  5. Build backends (Hooks.Connect)
//  6. Startup checks (Hooks.Verify, if provided)
//  7. Wire shutdown signals to a context
//  8. Build the HTTP handler (Hooks.BuildHandler)
//  9. Serve until shutdown, then Hooks.Close
//
// Any startup failure is returned; main decides the exit code.
func Run[C any, D any](ctx context.Context, hooks Hooks[C, D]) error {
	bootstrap := logging.BootstrapLogger()
	defer func() { _ = bootstrap.Sync() }()

	coreCfg, appCfg, err := hooks.LoadConfig(bootstrap)
	if err != nil {
		bootstrap.Error("config load failed", zap.Error(err))
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.MustBuildLogger(coreCfg.LogLevel, coreCfg.Env)
	defer func() { _ = logger.Sync() }()
	build := version.Get()
	logger.Info("starting",
		zap.String("app", hooks.Name),
		zap.String("version", version.String()),
		zap.String("go_version", build.GoVersion),
		zap.String("env", coreCfg.Env),
		zap.String("log_level", coreCfg.LogLevel))
	logger.Debug("core config", zap.String("config", coreCfg.Dump()))

	if coreCfg.EnableMetrics {
		metrics.RegisterDefault(logger)
	}

	deps, err := hooks.Connect(ctx, coreCfg, appCfg, logger)
	if err != nil {
		logger.Error("backend setup failed", zap.Error(err))
		return fmt.Errorf("connect: %w", err)
	}
	if hooks.Close != nil {
		defer hooks.Close(deps)
	}

	if hooks.Verify != nil {
		verifyCtx, cancel := context.WithTimeout(ctx, DefaultVerifyTimeout)
		err := hooks.Verify(verifyCtx, coreCfg, appCfg, deps, logger)
		cancel()
		if err != nil {
			logger.Error("startup check failed", zap.Error(err))
			return fmt.Errorf("verify: %w", err)
		}
	}

	ctx, cancel := server.WithShutdownSignals(ctx, logger)
	defer cancel()

	handler, err := hooks.BuildHandler(coreCfg, appCfg, deps, logger)
	if err != nil {
		logger.Error("handler build failed", zap.Error(err))
		return fmt.Errorf("build handler: %w", err)
	}

	if err := server.ListenAndServeWithContext(ctx, coreCfg, handler, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
