// Package content applies the blog's content rules (ids, slugs, excerpts,
// reading time, immutable creation stamps) on top of the database.
package content

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Mark577-code/tech-blog/internal/database"
)

// ErrInvalid marks input that fails validation.
var ErrInvalid = errors.New("invalid input")

// Service creates and updates content.
type Service struct {
	db     *database.DB
	author string
}

// NewService creates a content service. author is used when an article
// or project is created without one.
func NewService(db *database.DB, author string) *Service {
	return &Service{db: db, author: author}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func validStatus(s string) bool {
	return s == database.StatusDraft || s == database.StatusPublished
}

// uniqueSlug appends -2, -3, ... to base until taken reports false.
func uniqueSlug(base string, taken func(string) (bool, error)) (string, error) {
	slug := base
	for n := 2; ; n++ {
		used, err := taken(slug)
		if err != nil {
			return "", err
		}
		if !used {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}

func (s *Service) articleSlug(title, id string) (string, error) {
	base := Slugify(title)
	if base == "" {
		base = "article-" + id[:8]
	}
	return uniqueSlug(base, func(slug string) (bool, error) {
		return s.db.ArticleSlugTaken(slug, id)
	})
}

func validateArticle(a *database.Article) error {
	a.Title = strings.TrimSpace(a.Title)
	switch {
	case a.Title == "":
		return invalid("title is required")
	case strings.TrimSpace(a.Content) == "":
		return invalid("content is required")
	case a.Category == "":
		return invalid("category is required")
	case !validStatus(a.Status):
		return invalid("status must be draft or published")
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return nil
}

// CreateArticle assigns an id, slug, excerpt and reading time and stores a.
func (s *Service) CreateArticle(a *database.Article) error {
	if a.Status == "" {
		a.Status = database.StatusDraft
	}
	if err := validateArticle(a); err != nil {
		return err
	}
	a.ID = uuid.New().String()
	slug, err := s.articleSlug(a.Title, a.ID)
	if err != nil {
		return err
	}
	a.Slug = slug
	if a.Excerpt == "" {
		a.Excerpt = Excerpt(a.Content)
	}
	if a.Author == "" {
		a.Author = s.author
	}
	a.ReadingTime = ReadingTime(a.Content)
	a.ViewCount, a.Likes = 0, 0
	a.CreatedAt, a.UpdatedAt = time.Time{}, time.Time{}
	return s.db.InsertArticle(a)
}

// UpdateArticle loads an article, lets apply modify a copy, then enforces
// the article invariants: the slug follows the title, excerpt and reading
// time follow the content, and id, createdAt and counters are kept.
func (s *Service) UpdateArticle(id string, apply func(*database.Article) error) (*database.Article, error) {
	prev, err := s.db.GetArticleByID(id)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, database.ErrNotFound
	}

	next := *prev
	next.Tags = append([]string(nil), prev.Tags...)
	if err := apply(&next); err != nil {
		return nil, err
	}
	if err := validateArticle(&next); err != nil {
		return nil, err
	}

	next.ID = prev.ID
	next.CreatedAt = prev.CreatedAt
	next.ViewCount = prev.ViewCount
	next.Likes = prev.Likes
	next.SourceURL = prev.SourceURL

	next.Slug = prev.Slug
	if next.Title != prev.Title {
		if next.Slug, err = s.articleSlug(next.Title, id); err != nil {
			return nil, err
		}
	}
	if next.Content != prev.Content {
		next.ReadingTime = ReadingTime(next.Content)
		if next.Excerpt == prev.Excerpt {
			next.Excerpt = ""
		}
	}
	if next.Excerpt == "" {
		next.Excerpt = Excerpt(next.Content)
	}

	if err := s.db.UpdateArticle(&next); err != nil {
		return nil, err
	}
	return &next, nil
}

// HasArticleWithSourceURL reports whether an article was imported from url.
func (s *Service) HasArticleWithSourceURL(url string) (bool, error) {
	return s.db.HasArticleWithSourceURL(url)
}

// DeleteArticle removes an article.
func (s *Service) DeleteArticle(id string) error {
	return s.db.DeleteArticle(id)
}

func (s *Service) projectSlug(title, id string) (string, error) {
	base := Slugify(title)
	if base == "" {
		base = "project-" + id[:8]
	}
	return uniqueSlug(base, func(slug string) (bool, error) {
		return s.db.ProjectSlugTaken(slug, id)
	})
}

func validateProject(p *database.Project) error {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return invalid("title is required")
	}
	if !validStatus(p.Status) {
		return invalid("status must be draft or published")
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Technologies == nil {
		p.Technologies = []string{}
	}
	return nil
}

// CreateProject assigns an id and slug and stores p.
func (s *Service) CreateProject(p *database.Project) error {
	if p.Status == "" {
		p.Status = database.StatusDraft
	}
	if err := validateProject(p); err != nil {
		return err
	}
	p.ID = uuid.New().String()
	slug, err := s.projectSlug(p.Title, p.ID)
	if err != nil {
		return err
	}
	p.Slug = slug
	if p.Author == "" {
		p.Author = s.author
	}
	p.ViewCount, p.Likes = 0, 0
	return s.db.InsertProject(p)
}

// UpdateProject applies changes to a project, keeping id, creation time,
// counters, and regenerating the slug on title change.
func (s *Service) UpdateProject(id string, apply func(*database.Project) error) (*database.Project, error) {
	prev, err := s.db.GetProjectByID(id)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, database.ErrNotFound
	}

	next := *prev
	if err := apply(&next); err != nil {
		return nil, err
	}
	if err := validateProject(&next); err != nil {
		return nil, err
	}
	next.ID, next.CreatedAt = prev.ID, prev.CreatedAt
	next.ViewCount, next.Likes = prev.ViewCount, prev.Likes
	next.Slug = prev.Slug
	if next.Title != prev.Title {
		if next.Slug, err = s.projectSlug(next.Title, id); err != nil {
			return nil, err
		}
	}

	if err := s.db.UpdateProject(&next); err != nil {
		return nil, err
	}
	return &next, nil
}

// DeleteProject removes a project.
func (s *Service) DeleteProject(id string) error {
	return s.db.DeleteProject(id)
}

// CreateCategory stores a category; the slug defaults to the slugified name.
func (s *Service) CreateCategory(c *database.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return invalid("name is required")
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if c.Slug == "" {
		return invalid("name must contain letters or digits")
	}
	exists, err := s.db.CategoryExists(c.Slug)
	if err != nil {
		return err
	}
	if exists {
		return invalid("category %q already exists", c.Slug)
	}
	c.ID = uuid.New().String()
	if c.Author == "" {
		c.Author = s.author
	}
	return s.db.InsertCategory(c)
}

// UpdateCategory applies changes to a category. The slug is part of every
// article's category reference and cannot change.
func (s *Service) UpdateCategory(id string, apply func(*database.Category) error) (*database.Category, error) {
	prev, err := s.db.GetCategoryByID(id)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, database.ErrNotFound
	}
	next := *prev
	if err := apply(&next); err != nil {
		return nil, err
	}
	if strings.TrimSpace(next.Name) == "" {
		return nil, invalid("name is required")
	}
	next.ID, next.Slug, next.CreatedAt = prev.ID, prev.Slug, prev.CreatedAt
	if err := s.db.UpdateCategory(&next); err != nil {
		return nil, err
	}
	return &next, nil
}

// DeleteCategory removes a category.
func (s *Service) DeleteCategory(id string) error {
	return s.db.DeleteCategory(id)
}

// CreateGalleryImage stores an image; title and url are required.
func (s *Service) CreateGalleryImage(g *database.GalleryImage) error {
	if strings.TrimSpace(g.Title) == "" || strings.TrimSpace(g.URL) == "" {
		return invalid("title and url are required")
	}
	g.ID = uuid.New().String()
	if g.Tags == nil {
		g.Tags = []string{}
	}
	if g.ThumbnailURL == "" {
		g.ThumbnailURL = g.URL
	}
	if g.Author == "" {
		g.Author = s.author
	}
	g.ViewCount, g.Likes = 0, 0
	return s.db.InsertGalleryImage(g)
}

// UpdateGalleryImage applies changes to a gallery image.
func (s *Service) UpdateGalleryImage(id string, apply func(*database.GalleryImage) error) (*database.GalleryImage, error) {
	prev, err := s.db.GetGalleryImageByID(id)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, database.ErrNotFound
	}
	next := *prev
	if err := apply(&next); err != nil {
		return nil, err
	}
	if strings.TrimSpace(next.Title) == "" || strings.TrimSpace(next.URL) == "" {
		return nil, invalid("title and url are required")
	}
	next.ID, next.CreatedAt = prev.ID, prev.CreatedAt
	next.ViewCount, next.Likes = prev.ViewCount, prev.Likes
	if err := s.db.UpdateGalleryImage(&next); err != nil {
		return nil, err
	}
	return &next, nil
}

// DeleteGalleryImage removes a gallery image.
func (s *Service) DeleteGalleryImage(id string) error {
	return s.db.DeleteGalleryImage(id)
}
