// Command divehubctl runs operator tasks against the DiveHub store using the
// same configuration as the server (DIVEHUB_* environment variables and
// config files).
//
//	divehubctl bootstrap-admin -email ops@example.com -name "Ops Admin"
//	divehubctl migrate-status
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/dalemusser/divehub/internal/app/bootstrap"
	"github.com/dalemusser/divehub/internal/app/system/auditlog"
	"go.uber.org/zap"
)

const usage = `usage: divehubctl <command> [flags]

commands:
  bootstrap-admin -email <email> -name <name>   create the first admin and print its PIN
  migrate-status                                rewrite legacy "active" statuses to approved
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "divehubctl: logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	switch cmd {
	case "bootstrap-admin":
		err = runBootstrapAdmin(ctx, args, os.Stdout, logger)
	case "migrate-status":
		err = runMigrateStatus(ctx, args, os.Stdout, logger)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "divehubctl: unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "divehubctl:", err)
		os.Exit(1)
	}
}

type adminArgs struct {
	email string
	name  string
}

func parseAdminArgs(args []string) (adminArgs, error) {
	fs := flag.NewFlagSet("bootstrap-admin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var a adminArgs
	fs.StringVar(&a.email, "email", "", "admin email")
	fs.StringVar(&a.name, "name", "", "admin full name")
	if err := fs.Parse(args); err != nil {
		return a, err
	}
	a.email = strings.TrimSpace(a.email)
	a.name = strings.TrimSpace(a.name)
	if a.email == "" || a.name == "" {
		return a, errors.New("bootstrap-admin requires -email and -name")
	}
	return a, nil
}

func runBootstrapAdmin(ctx context.Context, args []string, out io.Writer, logger *zap.Logger) error {
	a, err := parseAdminArgs(args)
	if err != nil {
		return err
	}

	cfg, deps, closeFn, err := open(ctx, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	audit := auditlog.New(deps.Audit, logger, auditlog.Config{Auth: cfg.AuditLogAuth, Admin: cfg.AuditLogAdmin})
	svc, err := bootstrap.BuildService(cfg, deps, nil, audit, nil, logger)
	if err != nil {
		return err
	}

	issued, err := svc.BootstrapAdmin(ctx, a.email, a.name)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Admin %s (%s) is approved.\nPIN: %s\nThis PIN is not stored in readable form and will not be shown again.\n",
		issued.Account.FullName, issued.Account.Email, issued.PIN)
	return nil
}

func runMigrateStatus(ctx context.Context, args []string, out io.Writer, logger *zap.Logger) error {
	if len(args) > 0 {
		return fmt.Errorf("migrate-status takes no arguments, got %q", args)
	}
	_, deps, closeFn, err := open(ctx, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := bootstrap.MigrateStatuses(ctx, deps)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "migrated %d account(s)\n", n)
	return nil
}

// open loads configuration and connects the store, applying schema setup so
// the CLI can run against a fresh database.
func open(ctx context.Context, logger *zap.Logger) (bootstrap.AppConfig, bootstrap.DBDeps, func(), error) {
	// Subcommand flags are already parsed; keep them away from the config
	// loader's own flag parsing.
	os.Args = os.Args[:1]

	coreCfg, cfg, err := bootstrap.LoadConfig(logger)
	if err != nil {
		return cfg, bootstrap.DBDeps{}, nil, err
	}
	if err := bootstrap.ValidateConfig(coreCfg, cfg, logger); err != nil {
		return cfg, bootstrap.DBDeps{}, nil, err
	}
	deps, err := bootstrap.ConnectDB(ctx, coreCfg, cfg, logger)
	if err != nil {
		return cfg, bootstrap.DBDeps{}, nil, err
	}
	closeFn := func() {
		if err := bootstrap.Shutdown(context.Background(), coreCfg, cfg, deps, logger); err != nil {
			logger.Warn("close backends", zap.Error(err))
		}
	}
	if err := bootstrap.EnsureSchema(ctx, coreCfg, cfg, deps, logger); err != nil {
		closeFn()
		return cfg, bootstrap.DBDeps{}, nil, err
	}
	return cfg, deps, closeFn, nil
}
