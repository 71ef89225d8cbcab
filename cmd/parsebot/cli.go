package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kpumuk/parsebot/internal/backend"
	"github.com/kpumuk/parsebot/internal/bot"
	"github.com/kpumuk/parsebot/internal/compat"
	"github.com/kpumuk/parsebot/internal/config"
	"github.com/kpumuk/parsebot/internal/ctxlog"
	"github.com/kpumuk/parsebot/internal/dispatch"
	"github.com/kpumuk/parsebot/internal/format"
	"github.com/kpumuk/parsebot/internal/lint"
	"github.com/kpumuk/parsebot/internal/telemetry"
)

const (
	exitOK       = 0
	exitIssues   = 1
	exitInternal = 3
)

// exitError carries a non-zero exit code for results that are not internal errors.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var errIssues = &exitError{code: exitIssues}

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	registry   *backend.Registry
	dispatcher *dispatch.Dispatcher
	linter     *lint.Runner
}

func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) int {
	root := newRootCommand(stdin, stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)

	var exit *exitError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &exit):
		return exit.code
	default:
		fmt.Fprintf(stderr, "parsebot: %s\n", format.InternalError(err))
		return exitInternal
	}
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var flags globalFlags
	a := &app{}

	root := &cobra.Command{
		Use:           "parsebot",
		Short:         "Parse Ruby snippets with interchangeable backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd, flags, stderr)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a YAML configuration file")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug|info|warn|error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text|json")

	root.AddCommand(
		newParseCommand(a),
		newCheckSyntaxCommand(a),
		newLintCommand(a),
		newBackendsCommand(a),
		newServeCommand(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command, flags globalFlags, stderr io.Writer) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := ctxlog.New(cfg.Log.Level, cfg.Log.Format, stderr)
	if err != nil {
		return err
	}
	reg, err := backend.NewRegistry(cfg.Grammar.Range())
	if err != nil {
		return err
	}
	def, err := reg.Lookup(cfg.Bot.DefaultBackend)
	if err != nil {
		return fmt.Errorf("bot.default_backend: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.registry = reg
	a.dispatcher = dispatch.New(reg, dispatch.WithDefault(def))
	a.linter = lint.NewRunner(
		lint.WithCommand(cfg.Lint.Command, cfg.Lint.Args...),
		lint.WithTimeout(cfg.Lint.Timeout),
	)
	cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
	return nil
}

// readCode joins the arguments, or reads stdin when there are none or the only one is "-".
func readCode(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	}
	return strings.Join(args, " "), nil
}

func newParseCommand(a *app) *cobra.Command {
	var (
		backendName string
		width       int
	)
	cmd := &cobra.Command{
		Use:   "parse [--backend NAME] [CODE...]",
		Short: "Print the parse result of a snippet",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readCode(cmd, args)
			if err != nil {
				return err
			}
			var id backend.ID
			if backendName != "" {
				if id, err = a.registry.Lookup(backendName); err != nil {
					return err
				}
			}
			out, err := a.dispatcher.Parse(cmd.Context(), id, code)
			if err != nil {
				return err
			}
			if width == 0 {
				width = a.cfg.Format.LineWidth
			}
			text, err := format.Outcome(out, format.Options{LineWidth: width})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			if _, failed := out.(dispatch.Failure); failed {
				return errIssues
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&backendName, "backend", "b", "", "backend identifier (see `parsebot backends`)")
	cmd.Flags().IntVar(&width, "width", 0, "line width for structured output")
	return cmd
}

func newCheckSyntaxCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-syntax [CODE...]",
		Short: "Report which grammar versions accept a snippet",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readCode(cmd, args)
			if err != nil {
				return err
			}
			report, err := compat.New(a.dispatcher, a.registry.Versions()).Check(cmd.Context(), code)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), format.Report(report))
			if !report.Compatible() {
				return errIssues
			}
			return nil
		},
	}
}

func newLintCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [CODE...]",
		Short: "Run the configured linter over a snippet",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readCode(cmd, args)
			if err != nil {
				return err
			}
			res, err := a.linter.Run(cmd.Context(), code)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), res.Output)
			if res.ExitCode != 0 {
				return errIssues
			}
			return nil
		},
	}
}

func newBackendsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List backend identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, id := range a.registry.IDs() {
				line := string(id)
				if id == a.dispatcher.Default() {
					line += " (default)"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func newServeCommand(a *app) *cobra.Command {
	var (
		stdio  bool
		listen string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer chat commands over stdio or websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen == "" {
				listen = a.cfg.Server.Listen
			}
			serveHTTP := !stdio || cmd.Flags().Changed("listen")
			return a.serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), stdio, serveHTTP, listen)
		},
	}
	cmd.Flags().BoolVar(&stdio, "stdio", false, "read one command per line from stdin")
	cmd.Flags().StringVar(&listen, "listen", "", "websocket and metrics listen address (default from config)")
	return cmd
}

func (a *app) serve(ctx context.Context, in io.Reader, out io.Writer, stdio, serveHTTP bool, listen string) error {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	shutdownMetrics, err := telemetry.Setup(promReg)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			a.logger.Warn("Failed to flush metrics", slog.Any("error", err))
		}
	}()
	b := bot.New(a.dispatcher,
		bot.WithName(a.cfg.Bot.Name),
		bot.WithLinter(a.linter),
		bot.WithFormat(format.Options{LineWidth: a.cfg.Format.LineWidth}),
		bot.WithMetrics(bot.NewMetrics(promReg)),
		bot.WithLogger(a.logger),
	)

	g, ctx := errgroup.WithContext(ctx)
	if stdio {
		g.Go(func() error {
			return b.ServeStdio(ctx, in, out)
		})
	}
	if serveHTTP {
		ln, err := net.Listen("tcp", listen)
		if err != nil {
			return fmt.Errorf("listen %s: %w", listen, err)
		}
		srv := &http.Server{
			Handler:           bot.NewHandler(b, promReg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		a.logger.Info("Serving websocket chat", slog.String("addr", ln.Addr().String()))
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
