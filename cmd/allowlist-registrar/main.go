// Package main implements the allowlist-registrar CLI, a CI helper that
// registers a repository's GraphQL query documents with a GraphQL engine's
// query-collection allowlist.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/susemeee/hasura-graphql-allowlist-registrar/internal/config"
	"github.com/susemeee/hasura-graphql-allowlist-registrar/internal/logging"
	"github.com/susemeee/hasura-graphql-allowlist-registrar/internal/repoid"
	"github.com/susemeee/hasura-graphql-allowlist-registrar/pkg/allowlist"
	"github.com/susemeee/hasura-graphql-allowlist-registrar/pkg/collector"
	"github.com/susemeee/hasura-graphql-allowlist-registrar/pkg/hasura"
	"go.uber.org/zap"
)

var version = "dev"

type cliFlags struct {
	configPath string
	endpoint   string
	collection string
	pattern    string
	root       string
	repoName   string
	detectRepo bool
	dryRun     bool
	logLevel   string
	logFormat  string
}

var flags cliFlags

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "allowlist-registrar",
	Short: "Sync GraphQL query documents with a GraphQL engine allowlist",
	Long: `allowlist-registrar collects GraphQL query documents from a source tree,
registers them under a named query collection on a GraphQL engine, and
activates that collection as the engine's allowlist.

It is designed to run once per CI build: repeated runs against the same
engine converge on the same collection instead of accumulating duplicates.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Collect query documents and sync them to the engine allowlist",
	Long: `Collect query documents matching the configured pattern, create the
query collection if it does not exist, add every document, and activate
the collection as the allowlist.

Examples:
  # Everything from environment (CI)
  ALLOWLIST_ENDPOINT=http://localhost:8080 \
  ALLOWLIST_ADMIN_SECRET=secret \
  allowlist-registrar sync

  # Explicit flags
  allowlist-registrar sync --endpoint http://localhost:8080 --root ./queries

  # Show what would be registered without touching the engine
  allowlist-registrar sync --dry-run`,
	RunE: runSync,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "allowlist-registrar %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format (console, json)")

	syncCmd.Flags().StringVar(&flags.endpoint, "endpoint", "", "GraphQL engine base URL")
	syncCmd.Flags().StringVar(&flags.collection, "collection", "", "query collection name")
	syncCmd.Flags().StringVar(&flags.pattern, "pattern", "", "query document file pattern")
	syncCmd.Flags().StringVar(&flags.root, "root", "", "directory to search for query documents")
	syncCmd.Flags().StringVar(&flags.repoName, "repo-name", "", "repository name for namespacing document identifiers")
	syncCmd.Flags().BoolVar(&flags.detectRepo, "detect-repo", false, "derive the repository name from the git origin remote")
	syncCmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "collect and report documents without calling the engine")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(versionCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := sync(cmd, cfg, logger); err != nil {
		logger.Error("allowlist sync failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// loadConfig loads file/env config and layers changed flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("endpoint") {
		cfg.Endpoint = flags.endpoint
	}
	if cmd.Flags().Changed("collection") {
		cfg.Collection = flags.collection
	}
	if cmd.Flags().Changed("pattern") {
		cfg.Pattern = flags.pattern
	}
	if cmd.Flags().Changed("root") {
		cfg.Root = flags.root
	}
	if cmd.Flags().Changed("repo-name") {
		cfg.RepoName = flags.repoName
	}
	if cmd.Flags().Changed("detect-repo") {
		cfg.DetectRepo = flags.detectRepo
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = flags.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Logging.Format = flags.logFormat
	}
	if flags.dryRun {
		cfg.DryRun = true
	}

	// A dry run never talks to the engine, so endpoint and secret may be
	// absent.
	if !cfg.DryRun {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func sync(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger) error {
	repoName := cfg.RepoName
	if repoName == "" && cfg.DetectRepo {
		repoName = repoid.Detect(cfg.Root)
		logger.Debug("detected repository name", zap.String("repo", repoName))
	}

	coll, err := collector.New(cfg.Root, cfg.Pattern, logger)
	if err != nil {
		return err
	}
	docs, err := coll.Collect()
	if err != nil {
		return err
	}
	logger.Info("collected query documents",
		zap.Int("count", len(docs)),
		zap.String("root", cfg.Root),
		zap.String("pattern", cfg.Pattern))

	if cfg.DryRun {
		for _, doc := range docs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", doc.ID(repoName), doc.Path)
		}
		return nil
	}

	client, err := hasura.NewClient(hasura.Config{
		Endpoint:    cfg.Endpoint,
		AdminSecret: cfg.AdminSecret,
		Timeout:     cfg.Timeout.Duration(),
	}, logger)
	if err != nil {
		return err
	}

	syncer, err := allowlist.NewSyncer(client, cfg.Collection, repoName, logger)
	if err != nil {
		return err
	}

	report, err := syncer.Run(cmd.Context(), docs)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "collection %s %s: %d added, %d already present, activated\n",
		report.Collection, report.OutcomeText, report.Added, report.AlreadyPresent)
	return nil
}
