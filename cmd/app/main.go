package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	applog "msgqueue/internal/log"

	"github.com/jessevdk/go-flags"
)

var (
	// Version is set at build time.
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts := &Options{}
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Println(err)
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if opts.Version {
		printVersion()
		return 0
	}

	cfg, err := opts.configuration()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg.Version, cfg.BuildDate, cfg.Commit = Version, BuildDate, Commit

	// Creates a new Logger that uses a JSONHandler to write to the log sink
	logWriter, closeLog := configureLogWriter(cfg.LogFile)
	defer closeLog()
	loggerOptions := &slog.HandlerOptions{
		AddSource: false,
		Level:     logLevelFromString(cfg.LogLevel),
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(logWriter, loggerOptions)))

	sys, err := boot(cfg, os.Stdout)
	if err != nil {
		slog.Error("boot failed", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer sys.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sys.demo(ctx); err != nil {
		slog.Error("demo failed", slog.Any("error", err))
		return 1
	}
	if opts.Once {
		return 0
	}
	return sys.k.Run(ctx)
}

// configureLogWriter returns stderr unless path is set, in which case the
// file is opened for SIGHUP rotation. Failures fall back to stderr.
func configureLogWriter(path string) (io.Writer, func()) {
	if path == "" {
		return os.Stderr, func() {}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory for '%s': %v; falling back to stderr\n", path, err)
		return os.Stderr, func() {}
	}
	f, err := applog.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file '%s': %v; falling back to stderr\n", path, err)
		return os.Stderr, func() {}
	}
	f.WatchSIGHUP()
	return f, func() { _ = f.Close() }
}

func printVersion() {
	fmt.Printf("msgqueue version 'v%s' %s %s\n", Version, BuildDate, Commit)
}

func logLevelFromString(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelError
	}
}
