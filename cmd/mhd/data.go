package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/DaDevFox/task-systems/mhd-core/internal/events"
	"github.com/DaDevFox/task-systems/mhd-core/internal/interchange"
	"github.com/DaDevFox/task-systems/mhd-core/internal/repository"
)

func newSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change alert settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := app.service.Settings()
			fmt.Printf("Settings:\n")
			fmt.Printf("  Soon threshold: %d days\n", settings.SoonThresholdDays)
			fmt.Printf("  Notify soon: %t\n", settings.NotifySoonEnabled)
			fmt.Printf("  Notify expired: %t\n", settings.NotifyExpiredEnabled)
			fmt.Printf("  Notification permission: %s\n", app.gate.Permission(cmd.Context()))
			return nil
		},
	})

	var threshold int
	var notifySoon, notifyExpired bool
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings; unset flags keep their value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := app.service.Settings()
			if cmd.Flags().Changed("threshold") {
				settings.SoonThresholdDays = threshold
			}
			if cmd.Flags().Changed("notify-soon") {
				settings.NotifySoonEnabled = notifySoon
			}
			if cmd.Flags().Changed("notify-expired") {
				settings.NotifyExpiredEnabled = notifyExpired
			}

			if err := app.service.UpdateSettings(cmd.Context(), settings); err != nil {
				return errors.Wrap(err, "update settings operation failed")
			}
			fmt.Printf("Settings updated: threshold %d days, notify soon %t, notify expired %t\n",
				settings.SoonThresholdDays, settings.NotifySoonEnabled, settings.NotifyExpiredEnabled)
			return nil
		},
	}
	setCmd.Flags().IntVarP(&threshold, "threshold", "t", 0, "Days before expiry at which an item counts as soon")
	setCmd.Flags().BoolVar(&notifySoon, "notify-soon", true, "Alert when an item becomes soon")
	setCmd.Flags().BoolVar(&notifyExpired, "notify-expired", true, "Alert when an item expires")
	cmd.AddCommand(setCmd)

	return cmd
}

func newExportCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write items and settings as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := interchange.Encode(app.service.Export())
			if err != nil {
				return errors.Wrap(err, "failed to encode export")
			}

			if out == "" || out == "-" {
				_, err = os.Stdout.Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(out, data, 0600); err != nil {
				return errors.Wrapf(err, "failed to write %s", out)
			}
			fmt.Printf("Exported %d items to %s\n", len(app.service.Items()), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func newImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace all items and settings with an exported file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "failed to read %s", args[0])
			}

			if err := app.service.Import(cmd.Context(), data); err != nil {
				return errors.Wrapf(err, "import of %s failed", args[0])
			}
			app.refreshResolver()

			fmt.Printf("Imported %d items from %s\n", len(app.service.Items()), args[0])
			return nil
		},
	}

	return cmd
}

func newWatchCommand() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-evaluate items periodically and send alerts until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := app.logger
			if metricsAddr == "" {
				metricsAddr = app.cfg.Metrics.Addr
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var server *http.Server
			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
				server = &http.Server{
					Addr:              metricsAddr,
					Handler:           mux,
					ReadHeaderTimeout: 5 * time.Second,
				}

				go func() {
					logger.WithField("addr", metricsAddr).Info("serving metrics")
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.WithError(err).Error("metrics server failed")
						cancel()
					}
				}()
			}

			app.bus.Subscribe(alertPrinter(os.Stdout), events.AlertEmitted)

			if err := app.scheduler.Start(ctx); err != nil {
				logger.WithError(err).Warn("initial evaluation failed")
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			select {
			case sig := <-sigChan:
				logger.WithField("signal", sig.String()).Info("received shutdown signal")
			case <-ctx.Done():
				logger.Info("context cancelled")
			}

			app.scheduler.Stop()
			if server != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.WithError(err).Warn("metrics server shutdown failed")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")
	return cmd
}

// alertPrinter writes every emitted alert as one line while watching
func alertPrinter(w io.Writer) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		_, err := fmt.Fprintf(w, "%s [%s] %s: %s\n",
			event.Timestamp.Format(time.DateTime),
			event.Payload["kind"],
			event.Payload["title"],
			event.Payload["body"])
		return err
	}
}

func newInfoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show configuration and storage backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			summary := app.service.Summary()

			fmt.Printf("Storage: %s at %s\n", cfg.Storage.Type, cfg.Storage.Path)
			fmt.Printf("Interval: %s\n", cfg.Scheduler.Interval)
			fmt.Printf("Locale: %s\n", cfg.Locale)
			fmt.Printf("Notify: %s\n", cfg.Notify.Method)
			fmt.Printf("Items: %d (%d ok, %d soon, %d expired)\n", summary.Total, summary.OK, summary.Soon, summary.Expired)

			info := repository.GetDatabaseInfo()
			types := make([]repository.DatabaseType, 0, len(info))
			for dbType := range info {
				types = append(types, dbType)
			}
			slices.Sort(types)

			fmt.Printf("\nAvailable backends:\n")
			for _, dbType := range types {
				fmt.Printf("  %-7s %s\n", dbType, info[dbType])
			}

			app.logger.WithFields(logrus.Fields{"items": summary.Total}).Debug("info shown")
			return nil
		},
	}

	return cmd
}
