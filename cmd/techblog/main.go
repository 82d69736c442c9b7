package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Mark577-code/tech-blog/internal/auth"
	"github.com/Mark577-code/tech-blog/internal/config"
	"github.com/Mark577-code/tech-blog/internal/database"
	"github.com/Mark577-code/tech-blog/internal/knowledge"
	"github.com/Mark577-code/tech-blog/internal/logging"
	"github.com/Mark577-code/tech-blog/internal/processor"
	"github.com/Mark577-code/tech-blog/internal/syncer"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Commands that run without a config file.
var noConfig = map[string]bool{"init": true, "version": true, "hash-password": true, "completion": true}

var rootCmd = &cobra.Command{
	Use:     "techblog",
	Short:   "Tech blog backend",
	Long:    "techblog serves the blog API and keeps published articles in sync with the AI assistant's knowledge base.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noConfig[cmd.Name()] {
			return logging.Setup(config.Default().Logging, verbose)
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		config.LoadEnv(path)
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return logging.Setup(cfg.Logging, verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(articlesCmd)
	rootCmd.AddCommand(hashPasswordCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(importCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("techblog", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/techblog/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Set ADMIN_PASSWORD, JWT_SECRET and DIFY_API_KEY (or a .env file next to it).")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show content and knowledge sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		syncStats, err := db.GetSyncStats()
		if err != nil {
			return fmt.Errorf("getting sync stats: %w", err)
		}
		datasets, err := db.ListDatasets()
		if err != nil {
			return fmt.Errorf("listing datasets: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Content:")
		fmt.Printf("  Articles: %d (%d published, %d drafts)\n",
			stats.TotalArticles, stats.PublishedArticles, stats.DraftArticles)
		fmt.Printf("  Projects: %d\n", stats.TotalProjects)
		fmt.Printf("  Gallery images: %d\n", stats.TotalImages)
		fmt.Printf("  Categories: %d\n", stats.TotalCategories)
		fmt.Printf("  Total views: %d\n", stats.TotalViews)

		fmt.Println("\nKnowledge sync:")
		fmt.Printf("  Tracked: %d\n", syncStats.Total)
		fmt.Printf("  Synced: %d\n", syncStats.Synced)
		fmt.Printf("  Pending: %d\n", syncStats.Pending)
		fmt.Printf("  Failed: %d\n", syncStats.Failed)
		if syncStats.LastSyncTime != nil {
			fmt.Printf("  Last sync: %s\n", syncStats.LastSyncTime.Local().Format("2006-01-02 15:04:05"))
		}
		if len(datasets) > 0 {
			fmt.Println("\nDatasets:")
			for _, ds := range datasets {
				fmt.Printf("  %-12s %s (%s)\n", ds.Category, ds.Name, ds.DatasetID)
			}
		}
		return nil
	},
}

var articlesStatus string

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "List articles with their knowledge sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		articles, err := db.AllArticles(articlesStatus)
		if err != nil {
			return err
		}
		if len(articles) == 0 {
			fmt.Println("No articles.")
			return nil
		}

		for _, a := range articles {
			state := "-"
			rec, err := db.GetSyncRecord(a.ID)
			if err != nil {
				return err
			}
			if rec != nil {
				state = rec.Status
			}
			title := a.Title
			if len([]rune(title)) > 50 {
				title = string([]rune(title)[:50]) + "..."
			}
			fmt.Printf("%s  %-9s  %-7s  %-10s  %s\n", a.ID, a.Status, state, a.Category, title)
		}
		return nil
	},
}

func init() {
	articlesCmd.Flags().StringVar(&articlesStatus, "status", "all", "Filter by status: draft, published or all")
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for the admin password variable",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var password string
		if len(args) == 1 {
			password = args[0]
		} else {
			fmt.Fprint(os.Stderr, "Password: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if password == "" {
			return fmt.Errorf("password must not be empty")
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DatabasePath())
}

// newSyncer wires the knowledge client, processor and store from config.
func newSyncer(db *database.DB) (*syncer.Syncer, error) {
	k := cfg.Knowledge
	if !k.Enabled {
		return nil, fmt.Errorf("knowledge sync is disabled (knowledge.enabled)")
	}
	client := knowledge.NewClient(knowledge.Options{
		BaseURL:           k.BaseURL,
		APIKey:            cfg.KnowledgeAPIKey(),
		IndexingTechnique: k.IndexingTechnique,
		Timeout:           k.Timeout,
		RequestsPerSecond: k.RequestsPerSecond,
	})
	if !client.IsConfigured() {
		return nil, fmt.Errorf("knowledge API key not set (environment variable %s)", k.APIKeyEnv)
	}

	proc := processor.New(processor.Options{
		BaseURL:           cfg.Site.BaseURL,
		DefaultAuthor:     cfg.Site.Author,
		IndexingTechnique: k.IndexingTechnique,
		SegmentSeparator:  k.SegmentSeparator,
		SegmentMaxTokens:  k.SegmentMaxTokens,
	})
	log.WithFields(log.Fields{"base_url": k.BaseURL, "prefix": k.DatasetPrefix}).Debug("Knowledge sync configured")
	return syncer.New(db, client, proc, syncer.Options{
		DatasetPrefix:        k.DatasetPrefix,
		BatchSize:            k.BatchSize,
		BatchPause:           k.BatchPause,
		MaxAttempts:          k.MaxAttempts,
		RetryInitialInterval: k.RetryInitialInterval,
		RequireKnownCategory: k.RequireKnownCategory,
	}), nil
}
