package database

import "fmt"

// GetStats returns dashboard counts across all content tables.
func (db *DB) GetStats() (*Stats, error) {
	var s Stats
	err := db.conn.QueryRow(`SELECT
		(SELECT COUNT(*) FROM articles),
		(SELECT COUNT(*) FROM articles WHERE status = 'published'),
		(SELECT COUNT(*) FROM articles WHERE status = 'draft'),
		(SELECT COUNT(*) FROM projects),
		(SELECT COUNT(*) FROM gallery_images),
		(SELECT COUNT(*) FROM categories),
		(SELECT COALESCE(SUM(view_count), 0) FROM articles)`,
	).Scan(&s.TotalArticles, &s.PublishedArticles, &s.DraftArticles, &s.TotalProjects,
		&s.TotalImages, &s.TotalCategories, &s.TotalViews)
	if err != nil {
		return nil, fmt.Errorf("computing stats: %w", err)
	}
	return &s, nil
}
