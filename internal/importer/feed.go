package importer

import (
	"context"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	log "github.com/sirupsen/logrus"
)

const maxPerFeed = 20

// Entry is a parsed feed item.
type Entry struct {
	URL       string
	Title     string
	Published time.Time // zero when the feed gives no date
	Content   string
	Tags      []string
	Source    string
}

// Feed is a single configured feed.
type Feed struct {
	URL  string
	Name string
}

// FeedParser parses RSS/Atom feeds.
type FeedParser struct {
	feeds  []Feed
	parser *gofeed.Parser
}

// NewFeedParser creates a FeedParser for feeds.
func NewFeedParser(feeds []Feed) *FeedParser {
	return &FeedParser{feeds: feeds, parser: gofeed.NewParser()}
}

// ParseAll parses every feed and returns entries published within daysBack
// days. A feed that fails to parse is logged and skipped.
func (fp *FeedParser) ParseAll(ctx context.Context, daysBack int) []Entry {
	cutoff := time.Now().AddDate(0, 0, -daysBack)
	var all []Entry

	for _, fc := range fp.feeds {
		name := fc.Name
		if name == "" {
			name = sourceName(fc.URL)
		}
		logger := log.WithField("feed", name)

		feed, err := fp.parser.ParseURLWithContext(fc.URL, ctx)
		if err != nil {
			logger.WithError(err).Warn("Failed to parse feed")
			continue
		}

		var entries []Entry
		for _, item := range feed.Items {
			if len(entries) >= maxPerFeed {
				break
			}
			entry := parseItem(item, name)
			if entry == nil {
				continue
			}
			if entry.Published.IsZero() || !entry.Published.Before(cutoff) {
				entries = append(entries, *entry)
			}
		}
		logger.Infof("Parsed %d entries (within %d days)", len(entries), daysBack)
		all = append(all, entries...)
	}
	return all
}

func parseItem(item *gofeed.Item, source string) *Entry {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return nil
	}

	e := &Entry{URL: link, Title: title, Source: source, Tags: []string{}}
	switch {
	case item.PublishedParsed != nil:
		e.Published = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		e.Published = *item.UpdatedParsed
	}

	body := item.Content
	if body == "" {
		body = item.Description
	}
	e.Content = stripHTML(body)

	seen := map[string]bool{}
	for _, c := range item.Categories {
		tag := strings.ToLower(strings.TrimSpace(c))
		if tag != "" && !seen[tag] {
			seen[tag] = true
			e.Tags = append(e.Tags, tag)
		}
	}
	return e
}

// stripHTML drops tags, decodes entities and collapses whitespace.
func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteByte(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(html.UnescapeString(b.String())), " ")
}

// sourceName derives a display name from a feed URL's host.
func sourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}
	parts := strings.Split(host, ".")
	name := parts[0]
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
