// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/wraith/internal/brain"
	"github.com/xkilldash9x/wraith/internal/config"
	"github.com/xkilldash9x/wraith/internal/driver"
	"github.com/xkilldash9x/wraith/internal/humanoid"
	"github.com/xkilldash9x/wraith/internal/observability"
	"github.com/xkilldash9x/wraith/internal/supervisor"
	"github.com/xkilldash9x/wraith/internal/worker"
)

// newRunCmd creates the `run` command: connect to the backend, launch the
// browser, and execute a mission under the health supervisor.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Runs a mission against the given URL",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("worker.max_steps", cmd.Flags().Lookup("max-steps")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			mission := worker.Mission{
				URL:       args[0],
				Objective: viper.GetString("objective"),
				MaxSteps:  cfg.Worker.MaxSteps,
			}

			// The backend is a hard dependency: without it there is nothing to
			// decide with, so connection exhaustion is fatal at startup.
			endpoint := cfg.Brain.ResolveEndpoint()
			session, err := brain.Connect(ctx, endpoint, retryPolicyFrom(cfg.Brain.Retry), logger)
			if err != nil {
				return fmt.Errorf(
					"inference backend at %s is unreachable: %w (start the brain service or point %s at a running instance)",
					endpoint, err, config.EnvBrainAddress,
				)
			}
			defer session.Close()

			sup := supervisor.New(session, cfg.Brain.ProbeInterval, cfg.Brain.FailureThreshold, logger)

			drv, err := driver.NewCDPSession(ctx, cfg.Browser, logger)
			if err != nil {
				return fmt.Errorf("browser could not be launched: %w (is Chrome installed and executable?)", err)
			}

			paths := humanoid.NewPathGenerator(pathConfigFrom(cfg.Humanoid), logger)
			w := worker.New(drv, sup, paths, humanoid.NewJitter(), stealthValidator{}, cfg.Worker, logger)
			defer w.Close()

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			g, gctx := errgroup.WithContext(runCtx)
			g.Go(func() error {
				return sup.Run(gctx)
			})
			g.Go(func() error {
				// Mission completion dissolves the whole group; the supervisor
				// has nothing left to guard.
				defer cancel()
				return runMission(gctx, w, mission, logger)
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("Shutdown complete", zap.String("backend_state", sup.State().String()))
			return nil
		},
	}

	runCmd.Flags().String("objective", "", "natural-language objective for the mission")
	runCmd.Flags().Int("max-steps", 0, "maximum decide/act steps before the mission is abandoned")
	return runCmd
}

// runMission executes the mission and reports the outcome. A validation
// failure is a reported result, not a process error.
func runMission(ctx context.Context, w *worker.Worker, m worker.Mission, logger *zap.Logger) error {
	res, err := w.Run(ctx, m)
	if err != nil {
		var verr *worker.ValidationError
		if errors.As(err, &verr) {
			logger.Error("Mission failed validation",
				zap.Float64("score", verr.Score),
				zap.Float64("required", verr.Threshold),
				zap.Int("steps_taken", res.StepsTaken),
			)
			return nil
		}
		return err
	}

	logger.Info("Mission finished",
		zap.Bool("completed", res.Completed),
		zap.Int("steps_taken", res.StepsTaken),
		zap.Float64("trust_score", res.TrustScore),
	)
	return nil
}

// stealthValidator scores a session by probing for the automation markers the
// driver is supposed to hide.
type stealthValidator struct{}

type webdriverChecker interface {
	CheckWebdriverHidden(ctx context.Context) (bool, error)
}

func (stealthValidator) Score(ctx context.Context, sess driver.Session) (float64, error) {
	checker, ok := sess.(webdriverChecker)
	if !ok {
		// Nothing to inspect; don't penalize drivers without the probe.
		return 100, nil
	}
	hidden, err := checker.CheckWebdriverHidden(ctx)
	if err != nil {
		return 0, err
	}
	if !hidden {
		return 25, nil
	}
	return 100, nil
}

// retryPolicyFrom maps the config block onto a policy, falling back to the
// contract defaults for unset fields.
func retryPolicyFrom(rc config.RetryConfig) brain.RetryPolicy {
	p := brain.DefaultRetryPolicy()
	if rc.InitialDelay > 0 {
		p.InitialDelay = rc.InitialDelay
	}
	if rc.Multiplier > 0 {
		p.Multiplier = rc.Multiplier
	}
	if rc.MaxDelay > 0 {
		p.MaxDelay = rc.MaxDelay
	}
	if rc.MaxAttempts > 0 {
		p.MaxAttempts = rc.MaxAttempts
	}
	return p
}

// pathConfigFrom overlays configured motion tuning on the validated defaults.
func pathConfigFrom(hc config.HumanoidConfig) humanoid.PathConfig {
	pc := humanoid.DefaultPathConfig()
	if hc.NoiseScale > 0 {
		pc.NoiseScale = hc.NoiseScale
	}
	if hc.NoiseAmplitude > 0 {
		pc.NoiseAmplitude = hc.NoiseAmplitude
	}
	if hc.MicroJitterPx > 0 {
		pc.MicroJitterPx = hc.MicroJitterPx
	}
	if hc.MinStepDelay > 0 {
		pc.MinStepDelay = hc.MinStepDelay
	}
	if hc.MaxStepDelay > 0 {
		pc.MaxStepDelay = hc.MaxStepDelay
	}
	if hc.HesitationChance > 0 {
		pc.HesitationChance = hc.HesitationChance
	}
	return pc
}
