// Command tablerag is the terminal client for the table backend: list,
// upload, preview, highlight, rename, delete and reindex tables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/tablerag/internal/backend"
	"github.com/JonMunkholm/tablerag/internal/config"
	"github.com/JonMunkholm/tablerag/internal/core"
	"github.com/JonMunkholm/tablerag/internal/logging"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
)

// app carries what every subcommand needs.
type app struct {
	cfg     *config.Config
	client  *backend.Client
	service *core.Service
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"tables", "tables", runTables},
	{"upload", "upload [-name NAME] [-plain] FILE|GLOB", runUpload},
	{"slice", "slice [-from N] [-to N] [-cols a,b] TABLE", runSlice},
	{"highlight", "highlight [-file citation.json] [ID]", runHighlight},
	{"rename", "rename TABLE NAME", runRename},
	{"delete", "delete TABLE", runDelete},
	{"reindex", "reindex TABLE", runReindex},
}

func usage() {
	fmt.Fprintf(os.Stderr, "tablerag - terminal client for the table backend\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  tablerag [options] COMMAND [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %s\n", c.usage)
	}
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  tablerag upload sales.xlsx              Upload one file\n")
	fmt.Fprintf(os.Stderr, "  tablerag upload 'exports/**/*.csv'      Upload every matching file\n")
	fmt.Fprintf(os.Stderr, "  tablerag highlight h_123                Show a cited window\n")
}

func main() {
	backendURL := flag.String("backend", "", "Backend URL (overrides BACKEND_URL)")
	logLevel := flag.String("log-level", "warn", "Log level written to stderr")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("tablerag %s (commit: %s)\n", version, commit)
		return
	}
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	// Logs go to stderr so they never interleave with tables or the TUI
	logging.SetupWriter(os.Stderr, *logLevel, "text")

	// Load .env without overriding the caller's environment
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *backendURL != "" {
		cfg.Backend.URL = *backendURL
	}

	client, err := backend.New(backend.Options{BaseURL: cfg.Backend.URL, Timeout: cfg.Backend.Timeout})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	a := &app{
		cfg:    cfg,
		client: client,
		service: core.NewService(client, core.ServiceConfig{
			Poll: core.PollConfig{
				Interval:             cfg.Poll.Interval,
				MaxTransientFailures: cfg.Poll.MaxTransientFailures,
				MaxWait:              cfg.Poll.MaxWait,
				PreviewRows:          cfg.Viewer.PreviewRows,
			},
			ContextRows: cfg.Viewer.ContextRows,
		}, nil),
	}

	name, args := flag.Arg(0), flag.Args()[1:]
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, a, args); err != nil {
		var uerr usageError
		if errors.As(err, &uerr) {
			fmt.Fprintf(os.Stderr, "Usage: tablerag %s\n", cmd.usage)
			stop()
			os.Exit(2)
		}
		slog.Debug("command failed", "command", name, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s\n", core.UserErrorWithCode(err))
		stop()
		os.Exit(1)
	}
}

// usageError reports wrong arguments for a subcommand.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// isTerminal reports whether stdout is an interactive terminal.
func isTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
