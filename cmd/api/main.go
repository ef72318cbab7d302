// Package main is the detective API server and its companion commands: an
// HTTP server fronting the graph explorer and the RCA runner, plus one-shot
// commands that print an analysis or the metric hierarchy as tables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/detective/core/internal/config"
	"github.com/detective/core/internal/format"
	"github.com/detective/core/internal/logging"
	"github.com/detective/core/internal/models"
	"github.com/detective/core/internal/rca"
	"github.com/detective/core/internal/tree"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "detective-api",
		Short:         "Metric hierarchy explorer and root cause analysis server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	flags.String("addr", ":8080", "HTTP listen address")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "json", "Log format (json, console)")
	flags.String("datasource", config.DataSourceMock, "Data source (mock, http)")
	flags.String("base-url", "http://localhost:8000", "Analysis service base URL")
	flags.String("hierarchy-file", "", "Hierarchy document (JSON or YAML); empty uses the built-in sample")
	flags.String("allowed-origin", "*", "CORS allowed origin")
	flags.Duration("simulated-delay", 3*time.Second, "Pause before each analysis request")

	setup := func(cmd *cobra.Command) (*app, error) {
		if err := config.BindFlags(v, cmd.Flags()); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
		cfg, err := config.Load(v, configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return nil, err
		}
		return newApp(cfg, log, clock.New()), nil
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
	rootCmd.RunE = serveCmd.RunE

	rootCmd.AddCommand(serveCmd, newRCACmd(v, setup), newTreeCmd(setup))
	return rootCmd
}

func serve(ctx context.Context, a *app) error {
	if err := a.session.Load(ctx); err != nil {
		a.log.Warn("initial tree load failed", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      a.handler(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("version", version),
			zap.String("datasource", a.cfg.DataSource.Mode))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down", zap.Duration("timeout", a.cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.runner.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newRCACmd(v *viper.Viper, setup func(*cobra.Command) (*app, error)) *cobra.Command {
	var (
		date string
		sort string
	)
	cmd := &cobra.Command{
		Use:   "rca",
		Short: "Run one root cause analysis and print the ranked factors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// one-shot runs skip the pause unless it is asked for
			if !cmd.Flags().Changed("simulated-delay") {
				v.Set("rca.simulated_delay", "0s")
			}
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			cfg := a.rcaDefaults()
			if date != "" {
				d, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("invalid date %q: %w", date, err)
				}
				cfg.Date = d
			}
			order := rca.SortOrder(sort)
			if !order.Valid() {
				return fmt.Errorf("invalid sort order %q", sort)
			}

			status, err := runAnalysis(cmd.Context(), a.runner, cfg, order)
			if err != nil {
				return err
			}
			if status.Error != "" {
				return errors.New(status.Error)
			}
			printResults(cmd.OutOrStdout(), status.Results.Results, status.Results.Summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Analysis date (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVar(&sort, "sort", "", "Display order: impact, confidence or change")
	cmd.Flags().String("metric-type", "sessions_daily", "Metric type to analyze")
	cmd.Flags().Float64("threshold", 5.0, "Minimum absolute change percent")
	cmd.Flags().Float64("min-confidence", 0.6, "Minimum confidence")
	cmd.Flags().Int("max-results", 10, "Maximum number of factors")
	return cmd
}

func runAnalysis(ctx context.Context, runner *rca.Runner, cfg models.RCAConfig, order rca.SortOrder) (rca.Status, error) {
	if _, err := runner.Start(cfg); err != nil {
		return rca.Status{}, err
	}
	if err := runner.Wait(ctx); err != nil {
		runner.Stop()
		return rca.Status{}, err
	}
	return runner.StatusSorted(order), nil
}

func printResults(w io.Writer, results []models.RCACandidate, summary models.RCASummary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Rank", "Dimension", "Value", "Impact", "Confidence", "Change %"})
	table.SetAutoWrapText(false)
	for i, r := range results {
		table.Append([]string{
			strconv.Itoa(i + 1),
			rca.DimensionLabel(r.Dimension),
			r.Value,
			format.FormatCount(r.Impact),
			fmt.Sprintf("%.0f%%", r.Confidence*100),
			format.FormatPercentage(r.ChangePercent),
		})
	}
	table.SetFooter([]string{"", "", "Total", strconv.Itoa(summary.Count), fmt.Sprintf("%.0f%%", summary.MeanConfidence*100), ""})
	table.Render()
}

func newTreeCmd(setup func(*cobra.Command) (*app, error)) *cobra.Command {
	var (
		category string
		query    string
		statuses []string
	)
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the metric hierarchy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.session.Load(cmd.Context()); err != nil {
				return err
			}
			p := tree.DefaultPredicate()
			p.Category, p.Query = category, query
			if len(statuses) > 0 {
				p.ShowHealthy, p.ShowWarning, p.ShowCritical = false, false, false
				for _, s := range statuses {
					switch models.Status(s) {
					case models.StatusHealthy:
						p.ShowHealthy = true
					case models.StatusWarning:
						p.ShowWarning = true
					case models.StatusCritical:
						p.ShowCritical = true
					default:
						return fmt.Errorf("unknown status %q", s)
					}
				}
			}
			nodes, err := a.session.FilterNodes(p)
			if err != nil {
				return err
			}
			printTree(cmd.OutOrStdout(), nodes)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", tree.CategoryAll, "Only nodes of this category")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Case-insensitive name search")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only these statuses (healthy, warning, critical)")
	return cmd
}

func printTree(w io.Writer, nodes []*models.TreeNode) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Node", "ID", "Status", "Value", "Change"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, n := range nodes {
		table.Append([]string{
			strings.Repeat("  ", n.Level) + n.Name,
			n.ID,
			string(n.Status),
			format.FormatNumber(n.Value),
			format.FormatPercentage(n.Change),
		})
	}
	counts := tree.StatusCounts(nodes)
	table.SetFooter([]string{
		fmt.Sprintf("%d nodes", len(nodes)),
		"",
		fmt.Sprintf("%d/%d/%d", counts[models.StatusHealthy], counts[models.StatusWarning], counts[models.StatusCritical]),
		"",
		"",
	})
	table.Render()
}
