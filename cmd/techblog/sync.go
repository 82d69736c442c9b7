package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Mark577-code/tech-blog/internal/content"
	"github.com/Mark577-code/tech-blog/internal/database"
	"github.com/Mark577-code/tech-blog/internal/importer"
	"github.com/Mark577-code/tech-blog/internal/syncer"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printResult(r *syncer.Result) {
	fmt.Printf("  Total: %d\n", r.Total)
	fmt.Printf("  Succeeded: %d (%d created, %d updated)\n", r.Success, r.Created, r.Updated)
	fmt.Printf("  Skipped: %d (%d unchanged)\n", r.Skipped, r.Unchanged)
	fmt.Printf("  Failed: %d\n", r.Failed)
	for _, f := range r.Failures {
		fmt.Printf("    %s %q: %s\n", f.ArticleID, f.Title, f.Err)
	}
}

var syncAll bool

var syncCmd = &cobra.Command{
	Use:   "sync [article-id]",
	Short: "Sync one article, or all published articles, to the knowledge base",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 && syncAll {
			return fmt.Errorf("give an article id or --all, not both")
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		sy, err := newSyncer(db)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		if len(args) == 1 {
			a, err := db.GetArticleByID(args[0])
			if err != nil {
				return err
			}
			if a == nil {
				return fmt.Errorf("article %s not found", args[0])
			}
			outcome, err := sy.SyncArticle(ctx, a)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", a.Title, outcome)
			return nil
		}

		articles, err := db.AllArticles(database.StatusPublished)
		if err != nil {
			return err
		}
		fmt.Printf("Syncing %d published articles...\n", len(articles))
		printResult(sy.SyncAll(ctx, articles))
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "Sync every published article (default when no id is given)")
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry every failed knowledge sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		sy, err := newSyncer(db)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		articles, err := db.AllArticles("")
		if err != nil {
			return err
		}
		r, err := sy.RetryFailed(ctx, articles)
		if err != nil {
			return err
		}
		fmt.Println("Retry complete:")
		printResult(r)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <article-id>",
	Short: "Remove an article from the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		sy, err := newSyncer(db)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		if err := sy.RemoveArticle(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s from the knowledge base\n", args[0])
		return nil
	},
}

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every blog dataset from the knowledge base and reset sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return fmt.Errorf("this deletes all blog datasets remotely; rerun with --yes to confirm")
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		sy, err := newSyncer(db)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		r, err := sy.ClearAll(ctx)
		if r != nil {
			fmt.Printf("Deleted %d datasets and %d documents\n", r.Datasets, r.Documents)
		}
		return err
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm deletion")
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import recent feed items as draft articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Import.Feeds) == 0 {
			return fmt.Errorf("no feeds configured (import.feeds)")
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		ctx, stop := signalContext()
		defer stop()

		result := newImporter(db).Import(ctx)

		fmt.Println("Import complete:")
		fmt.Printf("  Found: %d\n", result.Found)
		fmt.Printf("  Imported: %d\n", result.Imported)
		fmt.Printf("  Duplicates: %d\n", result.Duplicates)
		fmt.Printf("  Failed: %d\n", result.Failed)

		if len(result.Sources) > 0 {
			fmt.Println("\nArticles by feed:")
			type kv struct {
				key string
				val int
			}
			var sorted []kv
			for k, v := range result.Sources {
				sorted = append(sorted, kv{k, v})
			}
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].val > sorted[j].val })
			for _, s := range sorted {
				fmt.Printf("  %s: %d\n", s.key, s.val)
			}
		}
		return nil
	},
}

func newImporter(db *database.DB) *importer.Importer {
	feeds := make([]importer.Feed, len(cfg.Import.Feeds))
	for i, f := range cfg.Import.Feeds {
		feeds[i] = importer.Feed{URL: f.URL, Name: f.Name}
	}
	return importer.New(content.NewService(db, cfg.Site.Author), importer.NewFetcher(0), importer.Options{
		Feeds:    feeds,
		DaysBack: cfg.Import.DaysBack,
		Category: cfg.Import.Category,
	})
}
