package database

import (
	"database/sql"
	"fmt"
	"strings"
)

const articleColumns = `id, title, slug, content, excerpt, category, tags, status, author,
	featured_image, reading_time, view_count, likes, source_url, created_at, updated_at`

var articleSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
	"viewCount": "view_count",
}

// InsertArticle stores a new article. CreatedAt/UpdatedAt are stamped when zero.
func (db *DB) InsertArticle(a *Article) error {
	now := db.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	_, err := db.conn.Exec(
		`INSERT INTO articles (`+articleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Slug, a.Content, a.Excerpt, a.Category, encodeList(a.Tags), a.Status, a.Author,
		a.FeaturedImage, a.ReadingTime, a.ViewCount, a.Likes, a.SourceURL,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting article: %w", err)
	}
	return nil
}

// UpdateArticle writes every mutable field of an article and stamps
// updated_at. created_at is never rewritten.
func (db *DB) UpdateArticle(a *Article) error {
	a.UpdatedAt = db.now()
	result, err := db.conn.Exec(
		`UPDATE articles SET title = ?, slug = ?, content = ?, excerpt = ?, category = ?, tags = ?,
		status = ?, author = ?, featured_image = ?, reading_time = ?, updated_at = ?
		WHERE id = ?`,
		a.Title, a.Slug, a.Content, a.Excerpt, a.Category, encodeList(a.Tags),
		a.Status, a.Author, a.FeaturedImage, a.ReadingTime, formatTime(a.UpdatedAt), a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating article: %w", err)
	}
	return expectOneRow(result)
}

// DeleteArticle removes an article.
func (db *DB) DeleteArticle(id string) error {
	result, err := db.conn.Exec("DELETE FROM articles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting article: %w", err)
	}
	return expectOneRow(result)
}

// GetArticleByID returns a single article by ID.
func (db *DB) GetArticleByID(id string) (*Article, error) {
	row := db.conn.QueryRow(`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetArticleBySlug returns a single article by slug.
func (db *DB) GetArticleBySlug(slug string) (*Article, error) {
	row := db.conn.QueryRow(`SELECT `+articleColumns+` FROM articles WHERE slug = ?`, slug)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// HasArticleWithSourceURL reports whether an article was already imported from url.
func (db *DB) HasArticleWithSourceURL(url string) (bool, error) {
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM articles WHERE source_url = ?", url).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ArticleSlugTaken reports whether slug is used by an article other than excludeID.
func (db *DB) ArticleSlugTaken(slug, excludeID string) (bool, error) {
	var n int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM articles WHERE slug = ? AND id != ?", slug, excludeID,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListArticles returns a filtered, sorted page of articles.
func (db *DB) ListArticles(f ArticleFilter) (*ArticlePage, error) {
	where, args := articleWhere(f)
	page, limit := normalizePage(f.Page, f.Limit)

	var total int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM articles"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting articles: %w", err)
	}

	sortCol, ok := articleSortColumns[f.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		order = "ASC"
	}

	query := fmt.Sprintf("SELECT %s FROM articles%s ORDER BY %s %s, id LIMIT ? OFFSET ?",
		articleColumns, where, sortCol, order)
	rows, err := db.conn.Query(query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}
	defer rows.Close()

	articles, err := scanArticles(rows)
	if err != nil {
		return nil, err
	}
	return &ArticlePage{Articles: articles, Pagination: paginate(page, limit, total)}, nil
}

// AllArticles returns every article with the given status ("" or "all" for
// every status), newest first.
func (db *DB) AllArticles(status string) ([]Article, error) {
	where, args := articleWhere(ArticleFilter{Status: status})
	rows, err := db.conn.Query(
		`SELECT `+articleColumns+` FROM articles`+where+` ORDER BY created_at DESC, id`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// IncrementViewCount adds one view to an article.
func (db *DB) IncrementViewCount(id string) error {
	_, err := db.conn.Exec("UPDATE articles SET view_count = view_count + 1 WHERE id = ?", id)
	return err
}

// ListTags returns every tag used by an article with its usage count.
func (db *DB) ListTags() ([]Tag, error) {
	rows, err := db.conn.Query(
		`SELECT j.value, COUNT(*) FROM articles a, json_each(a.tags) j
		GROUP BY j.value ORDER BY COUNT(*) DESC, j.value`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.Name, &t.Count); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func articleWhere(f ArticleFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" && f.Status != "all" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if len(f.Tags) > 0 {
		clauses = append(clauses,
			"EXISTS (SELECT 1 FROM json_each(articles.tags) WHERE value IN (?"+strings.Repeat(",?", len(f.Tags)-1)+"))")
		for _, t := range f.Tags {
			args = append(args, t)
		}
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		clauses = append(clauses, "(LOWER(title) LIKE ? OR LOWER(content) LIKE ? OR LOWER(excerpt) LIKE ?)")
		args = append(args, like, like, like)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticles(rows *sql.Rows) ([]Article, error) {
	articles := []Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

func scanArticle(row scanner) (*Article, error) {
	var a Article
	var tags, created, updated string
	if err := row.Scan(&a.ID, &a.Title, &a.Slug, &a.Content, &a.Excerpt, &a.Category, &tags,
		&a.Status, &a.Author, &a.FeaturedImage, &a.ReadingTime, &a.ViewCount, &a.Likes,
		&a.SourceURL, &created, &updated); err != nil {
		return nil, err
	}
	a.Tags = decodeList(tags)
	a.CreatedAt = parseTime(created)
	a.UpdatedAt = parseTime(updated)
	return &a, nil
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
