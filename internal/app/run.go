package app

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/facerig/internal/ctxlog"
)

const engineStopGrace = 10 * time.Second

// Run prepares the engine and executes the configured request, printing one
// delivered artifact path per line to the output writer.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx, a.config.HealthcheckPort)
		defer a.closeHealthcheckServer(ctx)
	}

	if a.launcher != nil {
		if err := a.launcher.Start(ctx); err != nil {
			return err
		}
		defer a.launcher.Stop(context.WithoutCancel(ctx), engineStopGrace)
	}
	if a.comfy != nil {
		defer a.comfy.Close()
	}

	if err := a.predictor.Setup(ctx, a.settings.Weights); err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}
	a.ready.Store(true)

	a.logger.Info("🚀 Running request...")
	paths, err := a.predictor.Predict(ctx, a.config.Request)
	if err != nil {
		return fmt.Errorf("prediction failed: %w", err)
	}
	a.logger.Info("🏁 Request finished.", "artifacts", len(paths))

	for _, p := range paths {
		fmt.Fprintln(a.outW, p)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}
