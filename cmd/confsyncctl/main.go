// Command confsyncctl runs administrative tasks against the store and the
// registry using the server's configuration file.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/MahdiBaghbani/confsync-go/internal/appctx"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/config"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/deps"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/confsync-go/internal/refresh"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

var flagConfig = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to the TOML config file",
	EnvVars: []string{"CONFSYNC_CONFIG"},
}

var flagMode = &cli.StringFlag{
	Name:  "mode",
	Usage: "Operating mode: strict or dev (overrides config)",
}

var flagReset = &cli.BoolFlag{
	Name:  "reset",
	Usage: "Rewrite an existing template from the configuration",
}

var flagRegistryID = &cli.Int64Flag{
	Name:     "registry-id",
	Usage:    "Registry person id of the user to sync",
	Required: true,
}

var flagUserIDs = &cli.Int64SliceFlag{
	Name:     "user-ids",
	Usage:    "Registry person ids whose submissions are imported",
	Required: true,
}

var flagRequestID = &cli.StringFlag{
	Name:  "request-id",
	Usage: "Only entries of this request",
}

var flagLimit = &cli.IntFlag{
	Name:  "limit",
	Value: 20,
	Usage: "Maximum number of entries",
}

func main() {
	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout io.Writer) *cli.App {
	return &cli.App{
		Name:      "confsyncctl",
		Usage:     "administer a confsync-go installation",
		Writer:    stdout,
		Reader:    stdin,
		Flags:     []cli.Flag{flagConfig, flagMode},
		Commands: []*cli.Command{
			{
				Name:  "setup-template",
				Usage: "create the article template, or reset it with --reset",
				Flags: []cli.Flag{flagReset},
				Action: func(cCtx *cli.Context) error {
					return withDeps(cCtx, false, func(ctx context.Context, d *deps.Deps) error {
						tpl, err := d.Templates.Ensure(ctx, cCtx.Bool(flagReset.Name))
						if err != nil {
							return err
						}
						fmt.Fprintf(cCtx.App.Writer, "template %q ready (id %d)\n", tpl.ImportID, tpl.ID)
						return nil
					})
				},
			},
			{
				Name:  "sync-user",
				Usage: "refresh profile and submissions of one registry user",
				Flags: []cli.Flag{flagRegistryID},
				Action: func(cCtx *cli.Context) error {
					return withDeps(cCtx, true, func(ctx context.Context, d *deps.Deps) error {
						ctx, _ = appctx.WithRequest(ctx, "cli:sync-user", nil)
						profile, papers, err := d.Refresh.SyncUser(ctx, cCtx.Int64(flagRegistryID.Name))
						if errors.Is(err, store.ErrNotFound) {
							return fmt.Errorf("no local user for registry id %d; the user must log in once", cCtx.Int64(flagRegistryID.Name))
						}
						if err != nil {
							return err
						}
						printOutcome(cCtx.App.Writer, "profile", profile)
						printOutcome(cCtx.App.Writer, "papers", papers)
						return failedOutcome(profile, papers)
					})
				},
			},
			{
				Name:  "sync-papers",
				Usage: "import the submissions of the given registry users",
				Flags: []cli.Flag{flagUserIDs},
				Action: func(cCtx *cli.Context) error {
					return withDeps(cCtx, true, func(ctx context.Context, d *deps.Deps) error {
						ctx, _ = appctx.WithRequest(ctx, "cli:sync-papers", nil)
						out := d.Refresh.ImportPapers(ctx, cCtx.Int64Slice(flagUserIDs.Name))
						printOutcome(cCtx.App.Writer, "papers", out)
						return failedOutcome(out)
					})
				},
			},
			{
				Name:  "import-logs",
				Usage: "show recent operation log entries",
				Flags: []cli.Flag{flagRequestID, flagLimit},
				Action: func(cCtx *cli.Context) error {
					return withDeps(cCtx, false, func(ctx context.Context, d *deps.Deps) error {
						entries, err := d.Log.List(ctx, store.ImportLogFilter{
							RequestID: cCtx.String(flagRequestID.Name),
							Limit:     cCtx.Int(flagLimit.Name),
						})
						if err != nil {
							return err
						}
						for _, e := range entries {
							printLogEntry(cCtx.App.Writer, &e)
						}
						return nil
					})
				},
			},
			{
				Name:      "hash-token",
				Usage:     "read an admin token from stdin and print its bcrypt hash for server.admin_token_hash",
				ArgsUsage: " ",
				Action: func(cCtx *cli.Context) error {
					hash, err := hashToken(cCtx.App.Reader)
					if err != nil {
						return err
					}
					fmt.Fprintln(cCtx.App.Writer, hash)
					return nil
				},
			},
		},
	}
}

// withDeps loads the configuration, builds the shared components and runs fn.
func withDeps(cCtx *cli.Context, needRegistry bool, fn func(context.Context, *deps.Deps) error) error {
	// Logs go to stderr so command output stays parseable.
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: cCtx.String(flagConfig.Name),
		ModeFlag:   cCtx.String(flagMode.Name),
		Logger:     bootstrap,
	})
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logutil.ParseLevel(cfg.Logging.Level)}))

	ctx := cCtx.Context
	d, err := deps.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	if needRegistry {
		if err := d.WithRegistry(); err != nil {
			return err
		}
	}
	return fn(appctx.WithLogger(ctx, logger), d)
}

func hashToken(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("empty token")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}

func printOutcome(w io.Writer, name string, o *refresh.Outcome) {
	fmt.Fprintf(w, "%s: %s (%s) request=%s imported=%d failures=%d\n",
		name, o.Status, o.Message, o.RequestID, o.Imported, o.Failures)
	if len(o.UnvalidatedEmails) > 0 {
		fmt.Fprintf(w, "  unvalidated: %s\n", strings.Join(o.UnvalidatedEmails, ", "))
	}
}

func printLogEntry(w io.Writer, e *store.ImportLog) {
	status := "ok"
	if !e.Success {
		status = e.ErrorType
	}
	fmt.Fprintf(w, "%s %s %-2s %s", e.Added.Format("2006-01-02 15:04:05"), e.RequestID, status, e.Path)
	if e.UserID != nil {
		fmt.Fprintf(w, " user=%d", *e.UserID)
	}
	if e.RegistryPaperID != nil {
		fmt.Fprintf(w, " paper=%d", *e.RegistryPaperID)
	}
	if e.Message != "" {
		fmt.Fprintf(w, " %s", e.Message)
	}
	fmt.Fprintln(w)
}

func failedOutcome(outcomes ...*refresh.Outcome) error {
	for _, o := range outcomes {
		if !o.OK() {
			return cli.Exit("", 2)
		}
	}
	return nil
}
