// Package processor turns articles into knowledge-base documents.
package processor

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Mark577-code/tech-blog/internal/database"
	"github.com/Mark577-code/tech-blog/internal/knowledge"
)

// MinContentLength is the shortest trimmed body that is worth indexing.
const MinContentLength = 100

const defaultAuthor = "Blog Author"

const documentFooter = "*This document comes from the tech blog and is provided as reference for the AI assistant.*"

// Document is an article rendered for the knowledge base.
type Document struct {
	Title    string
	Content  string
	Metadata Metadata
}

type Metadata struct {
	ID          string
	Category    string
	Tags        []string
	Author      string
	PublishedAt time.Time
	URL         string
	Summary     string
}

// Options configures a Processor.
type Options struct {
	BaseURL           string
	DefaultAuthor     string
	IndexingTechnique string
	SegmentSeparator  string
	SegmentMaxTokens  int
}

// Processor formats articles and builds create-document requests.
type Processor struct {
	opts Options
}

// New creates a Processor, filling unset options with defaults.
func New(opts Options) *Processor {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.DefaultAuthor == "" {
		opts.DefaultAuthor = defaultAuthor
	}
	if opts.IndexingTechnique == "" {
		opts.IndexingTechnique = "high_quality"
	}
	if opts.SegmentSeparator == "" {
		opts.SegmentSeparator = "\n\n"
	}
	if opts.SegmentMaxTokens <= 0 {
		opts.SegmentMaxTokens = 1000
	}
	return &Processor{opts: opts}
}

// Format renders an article into the fixed knowledge-base template.
func (p *Processor) Format(a *database.Article) Document {
	author := a.Author
	if author == "" {
		author = p.opts.DefaultAuthor
	}
	url := fmt.Sprintf("%s/articles/%s", p.opts.BaseURL, a.Slug)
	excerpt := a.Excerpt
	if excerpt == "" {
		excerpt = fmt.Sprintf("A technical article about %s.", a.Category)
	}
	hashtags := make([]string, len(a.Tags))
	for i, t := range a.Tags {
		hashtags[i] = "#" + t
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", a.Title)
	b.WriteString("## Article Info\n")
	fmt.Fprintf(&b, "- **Category**: %s\n", a.Category)
	fmt.Fprintf(&b, "- **Tags**: %s\n", strings.Join(a.Tags, ", "))
	fmt.Fprintf(&b, "- **Author**: %s\n", author)
	fmt.Fprintf(&b, "- **Published**: %s\n", a.UpdatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Link**: %s\n\n", url)
	fmt.Fprintf(&b, "## Summary\n%s\n\n", excerpt)
	fmt.Fprintf(&b, "## Content\n\n%s\n\n", a.Content)
	fmt.Fprintf(&b, "## Related Tags\n%s\n\n", strings.Join(hashtags, " "))
	b.WriteString("---\n")
	b.WriteString(documentFooter)

	return Document{
		Title:   a.Title,
		Content: strings.TrimSpace(b.String()),
		Metadata: Metadata{
			ID:          a.ID,
			Category:    a.Category,
			Tags:        a.Tags,
			Author:      author,
			PublishedAt: a.UpdatedAt,
			URL:         url,
			Summary:     a.Excerpt,
		},
	}
}

// DocumentRequest builds the create-document call for a formatted article.
func (p *Processor) DocumentRequest(doc Document) knowledge.CreateDocumentRequest {
	return knowledge.CreateDocumentRequest{
		Name:              doc.Title,
		Text:              doc.Content,
		IndexingTechnique: p.opts.IndexingTechnique,
		ProcessRule: &knowledge.ProcessRule{
			Mode: "custom",
			Rules: knowledge.Rules{
				PreProcessingRules: []knowledge.PreProcessingRule{
					{ID: "remove_extra_spaces", Enabled: true},
					{ID: "remove_urls_emails", Enabled: false},
				},
				Segmentation: knowledge.Segmentation{
					Separator: p.opts.SegmentSeparator,
					MaxTokens: p.opts.SegmentMaxTokens,
				},
			},
		},
	}
}

// ContentHash fingerprints the fields that matter to the knowledge base.
// It is an equality check, not a security measure.
func ContentHash(a *database.Article) string {
	sum := md5.Sum([]byte(a.Title + a.Content + strings.Join(a.Tags, "") + a.Category))
	return hex.EncodeToString(sum[:])
}

// ShouldSync reports whether an article is eligible for the knowledge base:
// published, with a title and a body of at least MinContentLength characters.
func ShouldSync(a *database.Article) bool {
	if a == nil || a.Status != database.StatusPublished {
		return false
	}
	if utf8.RuneCountInString(strings.TrimSpace(a.Content)) < MinContentLength {
		return false
	}
	return strings.TrimSpace(a.Title) != ""
}
