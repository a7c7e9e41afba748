// Package cli implements marketctl, the command line front end of the market
// history service.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nihalnihalani/EnrichedMMCP/internal/client"
	"github.com/nihalnihalani/EnrichedMMCP/internal/config"
	"github.com/nihalnihalani/EnrichedMMCP/internal/exporter"
	"github.com/nihalnihalani/EnrichedMMCP/internal/infrastructure"
	"github.com/nihalnihalani/EnrichedMMCP/internal/ingest"
	"github.com/nihalnihalani/EnrichedMMCP/internal/storage"
	"github.com/nihalnihalani/EnrichedMMCP/internal/tools"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts"
)

// options are the global flags shared by every command.
type options struct {
	configPath string
	server     string
	text       bool
	logLevel   string

	out    io.Writer
	errOut io.Writer
}

func (o *options) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	return config.Load()
}

func (o *options) logger(cfg *config.Config) *slog.Logger {
	logCfg := cfg.Logging
	logCfg.Output = "console"
	if o.logLevel != "" {
		logCfg.Level = o.logLevel
	}
	logger, _, err := infrastructure.NewLogger(logCfg, o.errOut)
	if err != nil {
		return slog.New(slog.NewTextHandler(o.errOut, nil))
	}
	return logger
}

// backend opens the remote client when --server is set and the local store
// otherwise.
func (o *options) backend(ctx context.Context) (backend, error) {
	if o.server != "" {
		return remoteBackend{client.New(o.server, client.Options{})}, nil
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return openLocal(ctx, cfg, o.logger(cfg))
}

func (o *options) print(v interface{}, text func(io.Writer) error) error {
	if o.text && text != nil {
		return text(o.out)
	}
	return writeJSON(o.out, v)
}

// NewRootCmd creates the root command writing results to out and
// diagnostics to errOut.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &options{out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:   "marketctl",
		Short: "Query and load the market history dataset",
		Long: `marketctl loads the daily market dataset and analyzes price history.
Queries run against the local store unless --server points at a running API.`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", "", "Base URL of a running API, e.g. http://localhost:8080")
	rootCmd.PersistentFlags().BoolVar(&opts.text, "text", false, "Print a human readable summary instead of JSON")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level for diagnostics on stderr")

	rootCmd.AddCommand(newIngestCmd(opts))
	rootCmd.AddCommand(newExportCmd(opts))
	rootCmd.AddCommand(newAnalyzeCmd(opts))
	rootCmd.AddCommand(newCompareCmd(opts))
	rootCmd.AddCommand(newLatestCmd(opts))
	rootCmd.AddCommand(newToolsCmd(opts))
	rootCmd.AddCommand(newVersionCmd(opts))

	return rootCmd
}

// newIngestCmd creates the ingest command
func newIngestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest FILE",
		Short: "Replace the stored rows with a CSV or XLSX dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.server != "" {
				return errors.New("ingest writes the local store and cannot use --server")
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := opts.logger(cfg)

			local, err := openLocal(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer local.Close()

			res, err := ingest.NewLoader(local.store, nil, logger).Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.print(res, func(w io.Writer) error { return writeIngestText(w, args[0], res) })
		},
	}
}

// newExportCmd creates the export command
func newExportCmd(opts *options) *cobra.Command {
	var (
		from, to string
		columns  []string
		bom      bool
	)
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write the stored rows to a CSV or XLSX file",
		Example: `  marketctl export backup/market.xlsx
  marketctl export gold.csv --columns gold_price,gold_vol --from 2024-01-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.server != "" {
				return errors.New("export reads the local store and cannot use --server")
			}
			exportOpts := exporter.Options{Columns: columns, BOM: bom}
			var err error
			if exportOpts.From, err = parseDateFlag("from", from); err != nil {
				return err
			}
			if exportOpts.To, err = parseDateFlag("to", to); err != nil {
				return err
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := opts.logger(cfg)

			local, err := openLocal(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer local.Close()

			n, err := exporter.New(local.store, logger).ExportFile(cmd.Context(), args[0], exportOpts)
			if err != nil {
				return err
			}
			res := exportResult{Path: args[0], Rows: n}
			return opts.print(res, func(w io.Writer) error { return writeExportText(w, res) })
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First date to export (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last date to export (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Numeric columns to export, default all")
	cmd.Flags().BoolVar(&bom, "bom", false, "Prefix CSV output with a UTF-8 byte order mark")
	return cmd
}

func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(storage.DateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("--%s must be a date in YYYY-MM-DD format", name)
	}
	return &t, nil
}

// newAnalyzeCmd creates the analyze command
func newAnalyzeCmd(opts *options) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Price change and volatility of one instrument",
		Example: `  marketctl analyze AAPL --days 90
  marketctl analyze bitcoin --text`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.HistoricalAnalysis(cmd.Context(), args[0], days)
			if err != nil {
				return err
			}
			return opts.print(res, func(w io.Writer) error { return writeAnalysisText(w, res) })
		},
	}
	cmd.Flags().IntVar(&days, "days", tools.DefaultDays, "Analysis window in days")
	return cmd
}

// newCompareCmd creates the compare command
func newCompareCmd(opts *options) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:     "compare SYMBOL...",
		Short:   "Compare several instruments over one window",
		Example: `  marketctl compare AAPL MSFT NVDA --days 30`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var symbols []string
			for _, arg := range args {
				for _, s := range strings.Split(arg, ",") {
					if s = strings.TrimSpace(s); s != "" {
						symbols = append(symbols, s)
					}
				}
			}

			b, err := opts.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.Compare(cmd.Context(), symbols, days)
			if err != nil {
				return err
			}
			return opts.print(res, func(w io.Writer) error { return writeComparisonText(w, res) })
		},
	}
	cmd.Flags().IntVar(&days, "days", tools.DefaultDays, "Analysis window in days")
	return cmd
}

// newLatestCmd creates the latest command
func newLatestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Most recent price of every instrument",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.LatestPrices(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(res, func(w io.Writer) error { return writeLatestText(w, res) })
		},
	}
}

// newToolsCmd creates the tools command and its call subcommand
func newToolsCmd(opts *options) *cobra.Command {
	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "List the LLM tool definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			defs, err := b.Tools(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(defs, func(w io.Writer) error {
				for _, raw := range defs {
					var def struct {
						Function struct {
							Name        string `json:"name"`
							Description string `json:"description"`
						} `json:"function"`
					}
					if err := json.Unmarshal(raw, &def); err != nil {
						return err
					}
					fmt.Fprintf(w, "%-24s %s\n", def.Function.Name, def.Function.Description)
				}
				return nil
			})
		},
	}

	toolsCmd.AddCommand(&cobra.Command{
		Use:     "call NAME [ARGUMENTS_JSON]",
		Short:   "Execute one tool and print its JSON result",
		Example: `  marketctl tools call get_historical_analysis '{"symbol":"GOLD","days":90}'`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arguments json.RawMessage
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("arguments must be a JSON object: %q", args[1])
				}
				arguments = json.RawMessage(args[1])
			}

			b, err := opts.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.CallTool(cmd.Context(), args[0], arguments)
			if err != nil {
				return err
			}
			return writeJSON(opts.out, res)
		},
	})

	return toolsCmd
}

// newVersionCmd creates the version command
func newVersionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := contracts.GetVersionInfo()
			return opts.print(info, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, contracts.GetFullVersionString())
				return err
			})
		},
	}
}
