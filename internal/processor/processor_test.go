package processor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mark577-code/tech-blog/internal/database"
)

func sampleArticle() *database.Article {
	return &database.Article{
		ID:        "a1",
		Title:     "Understanding Go Channels",
		Slug:      "understanding-go-channels",
		Content:   strings.Repeat("Channels connect goroutines. ", 10),
		Excerpt:   "A tour of channels.",
		Category:  "tech",
		Tags:      []string{"go", "concurrency"},
		Status:    database.StatusPublished,
		Author:    "Mark",
		UpdatedAt: time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC),
	}
}

func TestFormatEmbedsArticleFields(t *testing.T) {
	p := New(Options{BaseURL: "https://blog.example.com/"})
	doc := p.Format(sampleArticle())

	assert.Equal(t, "Understanding Go Channels", doc.Title)
	assert.True(t, strings.HasPrefix(doc.Content, "# Understanding Go Channels\n"))
	for _, want := range []string{
		"- **Category**: tech",
		"- **Tags**: go, concurrency",
		"- **Author**: Mark",
		"- **Published**: 2026-05-04T08:30:00Z",
		"- **Link**: https://blog.example.com/articles/understanding-go-channels",
		"## Summary\nA tour of channels.",
		"Channels connect goroutines.",
		"#go #concurrency",
		documentFooter,
	} {
		assert.Contains(t, doc.Content, want)
	}
	assert.Equal(t, "https://blog.example.com/articles/understanding-go-channels", doc.Metadata.URL)
}

func TestFormatDefaults(t *testing.T) {
	a := sampleArticle()
	a.Author = ""
	a.Excerpt = ""

	doc := New(Options{BaseURL: "http://localhost:3001"}).Format(a)
	assert.Contains(t, doc.Content, "- **Author**: Blog Author")
	assert.Contains(t, doc.Content, "A technical article about tech.")
	assert.Equal(t, "Blog Author", doc.Metadata.Author)
}

func TestFormatDeterministic(t *testing.T) {
	p := New(Options{BaseURL: "http://localhost:3001"})
	assert.Equal(t, p.Format(sampleArticle()), p.Format(sampleArticle()))
}

func TestDocumentRequest(t *testing.T) {
	p := New(Options{})
	req := p.DocumentRequest(p.Format(sampleArticle()))

	assert.Equal(t, "Understanding Go Channels", req.Name)
	assert.Equal(t, "high_quality", req.IndexingTechnique)
	require.NotNil(t, req.ProcessRule)
	rules := req.ProcessRule.Rules
	require.Len(t, rules.PreProcessingRules, 2)
	assert.Equal(t, "remove_extra_spaces", rules.PreProcessingRules[0].ID)
	assert.True(t, rules.PreProcessingRules[0].Enabled)
	assert.False(t, rules.PreProcessingRules[1].Enabled)
	assert.Equal(t, "\n\n", rules.Segmentation.Separator)
	assert.Equal(t, 1000, rules.Segmentation.MaxTokens)
}

func TestContentHash(t *testing.T) {
	base := sampleArticle()
	h := ContentHash(base)
	assert.Len(t, h, 32)
	assert.Equal(t, h, ContentHash(sampleArticle()))

	// Fields outside the fingerprint do not change it.
	other := sampleArticle()
	other.Excerpt = "different"
	other.ViewCount = 99
	assert.Equal(t, h, ContentHash(other))

	mutations := map[string]func(*database.Article){
		"title":    func(a *database.Article) { a.Title += "!" },
		"content":  func(a *database.Article) { a.Content += "more" },
		"tags":     func(a *database.Article) { a.Tags = append(a.Tags, "new") },
		"category": func(a *database.Article) { a.Category = "life" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			a := sampleArticle()
			mutate(a)
			assert.NotEqual(t, h, ContentHash(a))
		})
	}
}

func TestShouldSync(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*database.Article)
		want   bool
	}{
		{"eligible", func(a *database.Article) {}, true},
		{"draft", func(a *database.Article) { a.Status = database.StatusDraft }, false},
		{"short content", func(a *database.Article) { a.Content = strings.Repeat("x", 99) }, false},
		{"exactly minimum", func(a *database.Article) { a.Content = strings.Repeat("x", 100) }, true},
		{"padded short content", func(a *database.Article) { a.Content = "  " + strings.Repeat("x", 99) + "\n\n" }, false},
		{"blank title", func(a *database.Article) { a.Title = "   " }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := sampleArticle()
			tt.mutate(a)
			assert.Equal(t, tt.want, ShouldSync(a))
		})
	}
	assert.False(t, ShouldSync(nil))
}
