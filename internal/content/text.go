package content

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	excerptLength  = 150
	wordsPerMinute = 200
)

var md = goldmark.New()

// Slugify lowercases a title and joins its letters and digits with dashes.
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case unicode.IsSpace(r) || r == '-' || r == '_':
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// PlainText renders markdown to whitespace-normalized text, dropping code blocks.
func PlainText(markdown string) string {
	src := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

// Excerpt returns the first excerptLength characters of the article text,
// cut at a word boundary.
func Excerpt(markdown string) string {
	plain := PlainText(markdown)
	if utf8.RuneCountInString(plain) <= excerptLength {
		return plain
	}
	cut := string([]rune(plain)[:excerptLength])
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}

// ReadingTime estimates minutes to read at wordsPerMinute, never less than one.
func ReadingTime(markdown string) int {
	words := len(strings.Fields(markdown))
	return max(1, int(math.Ceil(float64(words)/wordsPerMinute)))
}
