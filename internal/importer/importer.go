// Package importer turns items from RSS/Atom feeds into draft articles.
package importer

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/Mark577-code/tech-blog/internal/database"
	"github.com/Mark577-code/tech-blog/internal/metrics"
	"github.com/Mark577-code/tech-blog/internal/processor"
)

// Store is the part of the content layer the importer writes through.
type Store interface {
	HasArticleWithSourceURL(url string) (bool, error)
	CreateArticle(a *database.Article) error
}

// Result holds the counters of one import run.
type Result struct {
	Found      int
	Imported   int
	Duplicates int
	Failed     int
	Sources    map[string]int
}

// Options configures an Importer.
type Options struct {
	Feeds    []Feed
	DaysBack int
	Category string
}

// Importer stores new feed entries as draft articles.
type Importer struct {
	store   Store
	parser  *FeedParser
	fetcher *Fetcher
	opts    Options
}

// New creates an Importer writing to store.
func New(store Store, fetcher *Fetcher, opts Options) *Importer {
	if opts.DaysBack <= 0 {
		opts.DaysBack = 7
	}
	if opts.Category == "" {
		opts.Category = "tech"
	}
	return &Importer{
		store:   store,
		parser:  NewFeedParser(opts.Feeds),
		fetcher: fetcher,
		opts:    opts,
	}
}

// Import parses all feeds and stores entries not seen before. Entries whose
// feed text is too short to sync get their full text fetched from the page.
// Articles are created as drafts; publishing stays a manual step.
func (im *Importer) Import(ctx context.Context) *Result {
	r := &Result{Sources: map[string]int{}}
	entries := im.parser.ParseAll(ctx, im.opts.DaysBack)
	r.Found = len(entries)
	failedHosts := map[string]bool{}

	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		logger := log.WithFields(log.Fields{"feed": e.Source, "url": e.URL})

		dup, err := im.store.HasArticleWithSourceURL(e.URL)
		if err != nil {
			logger.WithError(err).Error("Failed to check for existing article")
			r.Failed++
			continue
		}
		if dup {
			r.Duplicates++
			continue
		}

		content := e.Content
		host := hostOf(e.URL)
		if tooShort(content) && im.fetcher != nil && !failedHosts[host] {
			text, err := im.fetcher.FetchText(ctx, e.URL)
			switch {
			case err != nil:
				var he *httpError
				if errors.As(err, &he) && host != "" {
					failedHosts[host] = true
				}
				logger.WithError(err).Warn("Failed to fetch full text, keeping feed summary")
			case utf8.RuneCountInString(text) > utf8.RuneCountInString(content):
				content = text
			}
		}
		if strings.TrimSpace(content) == "" {
			logger.Debug("Skipping entry without content")
			r.Failed++
			continue
		}

		source := e.URL
		a := &database.Article{
			Title:     e.Title,
			Content:   content,
			Category:  im.opts.Category,
			Tags:      e.Tags,
			Status:    database.StatusDraft,
			Author:    e.Source,
			SourceURL: &source,
		}
		if err := im.store.CreateArticle(a); err != nil {
			logger.WithError(err).Error("Failed to store imported article")
			r.Failed++
			continue
		}
		r.Imported++
		r.Sources[e.Source]++
		metrics.ImportedArticles.WithLabelValues(e.Source).Inc()
		logger.WithField("article_id", a.ID).Info("Imported article")
	}

	log.WithFields(log.Fields{
		"found":      r.Found,
		"imported":   r.Imported,
		"duplicates": r.Duplicates,
		"failed":     r.Failed,
	}).Info("Import complete")
	return r
}

func tooShort(content string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(content)) < processor.MinContentLength
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
