package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/joacominatel/dataprism-demo/internal/app"
	"github.com/joacominatel/dataprism-demo/internal/cdn"
	"github.com/joacominatel/dataprism-demo/internal/engine"
	"github.com/joacominatel/dataprism-demo/internal/tui"
	"github.com/joacominatel/dataprism-demo/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runTUI(ctx context.Context, opts *options) error {
	file, err := defaultLogFile(opts.cfg)
	if err != nil {
		return err
	}
	logger, err := newLogger(opts.cfg, file)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.NewModel(ctx, opts.cfg, func(bootCtx context.Context) (*app.Service, error) {
		return boot(bootCtx, opts.cfg, logger)
	})
	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	_, err = p.Run()
	// stops a boot that is still running so Close does not wait on it
	cancel()
	if cerr := model.Close(); cerr != nil {
		logger.Warn("close engine", zap.Error(cerr))
	}
	if err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

func newServeCmd(opts *options) *cobra.Command {
	var (
		addr     string
		basename string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard and JSON API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("basename") {
				cfg.Server.Basename = basename
			}

			logger, err := newLogger(cfg, cfg.Log.File)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			svc, err := boot(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			return web.New(svc, cfg, logger).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVar(&basename, "basename", "", "path prefix the dashboard is mounted under")
	return cmd
}

func newQueryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a SQL query and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, logger, err := bootQuiet(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer func() { _ = svc.Close() }()

			res, err := svc.ExecuteQuery(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), res)
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}
}

func newTablesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List loaded tables and their columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, logger, err := bootQuiet(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer func() { _ = svc.Close() }()

			cat, err := svc.LoadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), cat.Tables)
			}

			rows := make([][]string, 0, len(cat.Tables))
			for _, t := range cat.Tables {
				names := make([]string, len(t.Columns))
				for i, c := range t.Columns {
					names[i] = c.ColumnName
				}
				rows = append(rows, []string{t.Name, strconv.Itoa(len(t.Columns)), strings.Join(names, ", ")})
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "engine: %s\n", cat.Engine); err != nil {
				return err
			}
			return printTable(cmd.OutOrStdout(), []string{"TABLE", "COLUMNS", "NAMES"}, rows)
		},
	}
}

func newCDNCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cdn-check",
		Short: "Fetch and validate the CDN manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			logger, err := newLogger(cfg, cfg.Log.File)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			loader := cdn.NewLoader(cfg.CDN, logger)
			manifest, err := loader.FetchManifest(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.output == "json" {
				return printJSON(out, map[string]any{"manifest": manifest, "assets": loader.Assets()})
			}
			assets := loader.Assets()
			return printTable(out, []string{"KEY", "VALUE"}, [][]string{
				{"version", manifest.Version},
				{"build time", manifest.BuildTime},
				{"manifest", assets.Manifest},
				{"core bundle", assets.CoreBundle},
				{"esm bundle", assets.ESMBundle},
				{"assets", assets.AssetsDir},
				{"plugins", assets.PluginsManifest},
				{"workers", assets.WorkersDir},
			})
		},
	}
}

// bootQuiet boots the engine for one-shot commands, logging warnings only.
func bootQuiet(ctx context.Context, opts *options) (*app.Service, *zap.Logger, error) {
	cfg := opts.cfg
	if cfg.Log.Level == "" || cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	logger, err := newLogger(cfg, cfg.Log.File)
	if err != nil {
		return nil, nil, err
	}
	svc, err := boot(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return svc, logger, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, res *engine.QueryResult) error {
	cols := res.Columns
	if len(cols) == 0 {
		cols = engine.ResultColumns(res.Data)
	}
	rows := make([][]string, 0, len(res.Data))
	for _, r := range res.Data {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = r.String(c)
		}
		rows = append(rows, cells)
	}
	if len(cols) > 0 {
		if err := printTable(w, cols, rows); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d row(s) in %.1f ms\n", res.RowCount, res.ExecutionTime)
	return err
}

func printTable(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.String())
	return err
}
