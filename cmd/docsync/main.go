package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/coordinator"
	"git.home.luguber.info/inful/docsync/internal/daemon"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/registry"
	"git.home.luguber.info/inful/docsync/internal/siteconfig"
	"git.home.luguber.info/inful/docsync/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"docsync.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`
	Server  string `short:"s" help:"Base URL of a running docsync daemon" default:"http://127.0.0.1:8080"`

	Serve struct{} `cmd:"" help:"Run the documentation synchronization daemon"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Enroll struct {
		Repository string `arg:"" help:"Repository as owner/name"`
		Branch     string `help:"Default branch override"`
	} `cmd:"" help:"Enroll a repository for synchronization"`

	Unenroll struct {
		Repository string `arg:"" help:"Repository as owner/name"`
	} `cmd:"" help:"Suspend a repository's enrollment"`

	Status struct {
		Repository string `arg:"" optional:"" help:"Repository as owner/name; omit to list all enrollments"`
	} `cmd:"" help:"Show enrollment and sync status"`

	Sync struct {
		Repository string `arg:"" help:"Repository as owner/name"`
		Revision   string `help:"Commit to sync instead of the branch head"`
	} `cmd:"" help:"Trigger a sync for an enrolled repository"`

	Search struct {
		Query []string `arg:"" help:"Search terms"`
		Limit int      `default:"10" help:"Maximum number of results"`
	} `cmd:"" help:"Search the published documentation"`

	Purge struct {
		Repository string `arg:"" help:"Repository as owner/name"`
	} `cmd:"" help:"Remove a repository's entries from the search index"`

	Regenerate struct{} `cmd:"" help:"Rebuild the unified site config from committed fragments"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("docsync"),
		kong.Description("Synchronizes documentation from enrolled repositories into one published site."))

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	adapter := ferrors.NewCLIErrorAdapter(CLI.Verbose, nil)
	client := newAPIClient(CLI.Server)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch kctx.Command() {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "enroll <repository>":
		err = runEnroll(ctx, client)
	case "unenroll <repository>":
		err = runUnenroll(ctx, client)
	case "status", "status <repository>":
		err = runStatus(ctx, client)
	case "sync <repository>":
		err = runSync(ctx, client)
	case "search <query>":
		err = runSearch(ctx, client)
	case "purge <repository>":
		err = runPurge(ctx, client)
	case "regenerate":
		err = runRegenerate(ctx)
	case "version":
		fmt.Printf("docsync %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	default:
		err = ferrors.ValidationError("unknown command: " + kctx.Command()).Build()
	}
	adapter.HandleError(err)
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return ferrors.ConfigError("failed to load configuration").WithCause(err).Build()
	}

	d, err := daemon.New(cfg, CLI.Config)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}

func runInit() error {
	if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
		return ferrors.ConfigError("failed to initialize configuration").WithCause(err).Build()
	}
	fmt.Printf("Configuration written to %s\n", CLI.Config)
	return nil
}

func runEnroll(ctx context.Context, client *apiClient) error {
	owner, name, err := splitRepository(CLI.Enroll.Repository)
	if err != nil {
		return err
	}
	resp, err := client.Enroll(ctx, owner, name, CLI.Enroll.Branch)
	if err != nil {
		return err
	}
	fmt.Printf("Enrolled %s/%s\n", owner, name)
	if resp.JobID != "" {
		fmt.Printf("Initial sync queued as job %s\n", resp.JobID)
	}
	return nil
}

func runUnenroll(ctx context.Context, client *apiClient) error {
	owner, name, err := splitRepository(CLI.Unenroll.Repository)
	if err != nil {
		return err
	}
	if err := client.Unenroll(ctx, owner, name); err != nil {
		return err
	}
	fmt.Printf("Unenrolled %s/%s; published documents remain until purged\n", owner, name)
	return nil
}

func runStatus(ctx context.Context, client *apiClient) error {
	if CLI.Status.Repository == "" {
		list, err := client.ListRepositories(ctx)
		if err != nil {
			return err
		}
		if len(list.Repositories) == 0 {
			fmt.Println("No repositories enrolled")
			return nil
		}
		for _, e := range list.Repositories {
			fmt.Printf("%s/%s\tslug=%s\tbranch=%s\tstatus=%s\n",
				e.Owner, e.Name, e.Slug, e.DefaultBranch, e.Status)
		}
		return nil
	}

	owner, name, err := splitRepository(CLI.Status.Repository)
	if err != nil {
		return err
	}
	status, err := client.Status(ctx, owner, name)
	if err != nil {
		return err
	}
	e := status.Enrollment
	fmt.Printf("%s/%s\n", e.Owner, e.Name)
	fmt.Printf("  slug:    %s\n", e.Slug)
	fmt.Printf("  branch:  %s\n", e.DefaultBranch)
	fmt.Printf("  status:  %s\n", e.Status)
	if e.LastSyncedRevision != "" {
		fmt.Printf("  synced:  %s\n", e.LastSyncedRevision)
	}
	for _, h := range status.History {
		line := fmt.Sprintf("  %s  %-9s  %s", h.QueuedAt.Format("2006-01-02 15:04:05"), h.Status, h.JobID)
		if h.ErrorMessage != "" {
			line += "  " + h.ErrorMessage
		}
		fmt.Println(line)
	}
	return nil
}

func runSync(ctx context.Context, client *apiClient) error {
	owner, name, err := splitRepository(CLI.Sync.Repository)
	if err != nil {
		return err
	}
	resp, err := client.TriggerSync(ctx, owner, name, CLI.Sync.Revision)
	if err != nil {
		return err
	}
	fmt.Printf("Sync queued as job %s\n", resp.JobID)
	return nil
}

func runSearch(ctx context.Context, client *apiClient) error {
	query := strings.Join(CLI.Search.Query, " ")
	resp, err := client.Search(ctx, query, CLI.Search.Limit)
	if err != nil {
		return err
	}
	if resp.Total == 0 {
		fmt.Println("No results")
		return nil
	}
	fmt.Printf("%d result(s) for %q\n", resp.Total, resp.Query)
	for _, r := range resp.Results {
		fmt.Printf("  %s\t%s\t(%s)\n", r.SitePath, r.Title, r.Repository)
		if r.Snippet != "" {
			fmt.Printf("    %s\n", r.Snippet)
		}
	}
	return nil
}

func runPurge(ctx context.Context, client *apiClient) error {
	owner, name, err := splitRepository(CLI.Purge.Repository)
	if err != nil {
		return err
	}
	if err := client.Purge(ctx, owner, name); err != nil {
		return err
	}
	fmt.Printf("Purged search entries for %s/%s\n", owner, name)
	return nil
}

// runRegenerate rebuilds the unified config straight from the local stores,
// without a running daemon. Useful after hand-editing fragments or restoring
// a backup.
func runRegenerate(ctx context.Context) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return ferrors.ConfigError("failed to load configuration").WithCause(err).Build()
	}

	store, err := registry.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck // read-only usage; close failure is inconsequential

	publisher, err := siteconfig.NewStore(cfg.Site.OutputDir)
	if err != nil {
		return err
	}
	writer := siteconfig.NewWriter(cfg.Site.ConfigPath)

	pipeline := coordinator.NewPipeline(store, nil, publisher, writer, nil, cfg.Site, cfg.Sync.DocsDir, nil, nil)
	if err := pipeline.RegenerateConfig(ctx); err != nil {
		return err
	}
	fmt.Printf("Unified config written to %s\n", writer.Path())
	return nil
}

func splitRepository(repo string) (owner, name string, err error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ferrors.ValidationError("repository must be owner/name").
			WithContext("repository", repo).
			Build()
	}
	return parts[0], parts[1], nil
}
