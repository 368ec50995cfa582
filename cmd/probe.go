// File: cmd/probe.go
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wraith/internal/brain"
	"github.com/xkilldash9x/wraith/internal/config"
	"github.com/xkilldash9x/wraith/internal/observability"
)

// newProbeCmd creates the `probe` command, an operator diagnostic that
// performs one connect-and-health-check round trip against the backend.
func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Checks connectivity to the inference backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			endpoint := cfg.Brain.ResolveEndpoint()
			logger.Info("Probing inference backend", zap.String("endpoint", endpoint))

			start := time.Now()
			session, err := brain.Connect(ctx, endpoint, retryPolicyFrom(cfg.Brain.Retry), logger)
			if err != nil {
				return fmt.Errorf(
					"inference backend at %s is unreachable: %w (start the brain service or point %s at a running instance)",
					endpoint, err, config.EnvBrainAddress,
				)
			}
			defer session.Close()

			if err := session.HealthCheck(ctx); err != nil {
				return fmt.Errorf("backend at %s connected but failed the health probe: %w", endpoint, err)
			}

			latency := time.Since(start)
			logger.Info("Backend healthy", zap.Duration("round_trip", latency))
			fmt.Fprintf(cmd.OutOrStdout(), "backend %s healthy (%s)\n", endpoint, latency.Round(time.Millisecond))
			return nil
		},
	}
}
