package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/icco/specimens/handlers"
	"github.com/icco/specimens/lib/config"
	"github.com/icco/specimens/lib/report"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logFormat  string
	verbose    bool
)

func newLogger(w io.Writer, format string, verbose bool) (*slog.Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	switch format {
	case "text":
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func setup() (*slog.Logger, *config.Config, error) {
	logger, err := newLogger(os.Stderr, logFormat, verbose)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return logger, cfg, nil
}

func newRootCmd(env config.Env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "specimens",
		Short:         "Occurrence dashboard for Callitrichidae specimen records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", env.ConfigPath, "path to the data source configuration")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newServeCmd(env))
	rootCmd.AddCommand(newReportCmd(env))
	rootCmd.AddCommand(newSourcesCmd())
	return rootCmd
}

func newServeCmd(env config.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, cfg, err := setup()
			if err != nil {
				return err
			}

			app, err := NewApp(cmd.Context(), cfg, env, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			return serve(cmd.Context(), app, env.Port, logger)
		},
	}
}

func serve(ctx context.Context, handler http.Handler, port string, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func newReportCmd(env config.Env) *cobra.Command {
	var (
		sourceName string
		yearMin    int
		yearMax    int
		out        string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build one report and write it as a standalone HTML page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, cfg, err := setup()
			if err != nil {
				return err
			}

			req := report.Request{Source: sourceName}
			if cmd.Flags().Changed("year-min") {
				req.YearMin = &yearMin
			}
			if cmd.Flags().Changed("year-max") {
				req.YearMax = &yearMax
			}

			app, err := NewApp(cmd.Context(), cfg, env, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			rep, err := app.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			for _, p := range rep.Panels {
				if !p.Rendered() {
					logger.Warn(p.Warning, slog.String("chart", p.ID), slog.Any("missing", p.Missing))
				}
			}
			printPreview(cmd.OutOrStdout(), rep)

			if out == "" {
				return nil
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := handlers.RenderReport(f, rep, cfg.Names()); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			logger.Info("Report written",
				slog.String("path", out),
				slog.Int("charts", rep.Rendered()),
				slog.Int("warnings", rep.Warnings()))
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceName, "source", "", "data source name (defaults to the configured default)")
	cmd.Flags().IntVar(&yearMin, "year-min", 0, "lower bound of the year range")
	cmd.Flags().IntVar(&yearMax, "year-max", 0, "upper bound of the year range")
	cmd.Flags().StringVarP(&out, "out", "o", "report.html", "HTML output path, empty to skip")
	return cmd
}

func printPreview(w io.Writer, rep *report.Report) {
	fmt.Fprintf(w, "%s: %d of %d rows", rep.Source, rep.FilteredRows, rep.TotalRows)
	if rep.Range != nil {
		fmt.Fprintf(w, " in %d-%d", rep.Range.Min, rep.Range.Max)
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.SetHeader(rep.Columns)
	table.SetAutoWrapText(false)
	for _, row := range rep.Preview {
		table.Append(row)
	}
	table.Render()
}

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the configured data sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := setup()
			if err != nil {
				return err
			}
			printSources(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printSources(w io.Writer, cfg *config.Config) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Type", "Location", "Default"})
	table.SetAutoWrapText(false)
	for _, name := range cfg.Names() {
		src := cfg.Data[name]
		location := src.Path
		if src.Table != "" {
			location += "#" + src.Table
		}
		def := ""
		if name == cfg.DefaultSource {
			def = "*"
		}
		table.Append([]string{name, src.Type, location, def})
	}
	table.Render()
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(config.LoadEnv()).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
