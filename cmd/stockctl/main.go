// Command stockctl operates the stock ledger from the shell: it imports stock
// sheets, books manual adjustments and prints the audit trail and reports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// command runs one subcommand with its own arguments, writing results to out
type command func(ctx context.Context, a *app, args []string, out io.Writer) error

var commands = map[string]command{
	"import":    runImport,
	"adjust":    runAdjust,
	"stock-in":  runStockIn,
	"stock-out": runStockOut,
	"movements": runMovements,
	"report":    runReport,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(argv []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("stockctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		opts     appOptions
		logLevel string
	)
	fs.StringVar(&opts.sqlitePath, "sqlite", "", "Use a local sqlite database at this path instead of the configured database")
	fs.StringVar(&opts.eventsPath, "events", "", "Append domain events as JSON lines to this file")
	fs.StringVar(&logLevel, "log-level", "", "Log level (default: log.level from config)")
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	args := fs.Args()
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	if logLevel == "" {
		logLevel = cfg.Log.Level
	}
	logCfg := logger.CLIConfig(logLevel)
	logCfg.Format = cfg.Log.Format
	log, err := logger.New(logCfg, logger.WithFields(zap.String("command", args[0])))
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	a, err := newApp(ctx, cfg, opts, log)
	if err != nil {
		log.Error("Failed to start", zap.Error(err))
		return 1
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Shutdown incomplete", zap.Error(err))
		}
	}()

	if err := cmd(ctx, a, args[1:], stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		var de *shared.DomainError
		if errors.As(err, &de) {
			log.Error("Command failed", zap.String("code", de.Code), zap.String("reason", de.Message))
		} else {
			log.Error("Command failed", zap.Error(err))
		}
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage:
  stockctl [flags] <command> [command flags]

Commands:
  import <path|s3://bucket/key>   Reconcile one stock sheet or every CSV under a directory or prefix
  adjust -sku SKU -mode M -amount N
                                  Add, subtract or set stock on one variant
  stock-in -item SKU=QTY[@COST]...
                                  Post a receiving document
  stock-out -item SKU:tiktok=N,shopee=N...
                                  Post a dispatch document split by platform
  movements [-sku SKU] [filters]  Print the movement audit trail
  report [summary|category|platform|day] [-from DATE] [-to DATE]
                                  Print stock aggregates

Flags:
  -sqlite path      Use a local sqlite database (created and migrated on open)
  -events path      Append domain events as JSON lines
  -log-level level  debug, info, warn, error

Run "stockctl <command> -h" for the flags of a command.
Configuration comes from config.toml, .env and STOCK_* variables.`)
}
