package database

import (
	"database/sql"
	"fmt"
)

// articleCount is evaluated per row; it counts published articles only.
const categorySelect = `SELECT c.id, c.name, c.slug, c.description, c.icon, c.color, c.sort_order,
	c.is_visible, c.author, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM articles a WHERE a.category = c.slug AND a.status = 'published')
	FROM categories c`

// InsertCategory stores a new category.
func (db *DB) InsertCategory(c *Category) error {
	now := db.now()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := db.conn.Exec(
		`INSERT INTO categories (id, name, slug, description, icon, color, sort_order, is_visible,
		author, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Slug, c.Description, c.Icon, c.Color, c.Order, boolInt(c.IsVisible),
		c.Author, formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("inserting category: %w", err)
	}
	return nil
}

// UpdateCategory writes the mutable fields of a category.
func (db *DB) UpdateCategory(c *Category) error {
	c.UpdatedAt = db.now()
	result, err := db.conn.Exec(
		`UPDATE categories SET name = ?, slug = ?, description = ?, icon = ?, color = ?,
		sort_order = ?, is_visible = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Slug, c.Description, c.Icon, c.Color, c.Order, boolInt(c.IsVisible),
		formatTime(c.UpdatedAt), c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating category: %w", err)
	}
	return expectOneRow(result)
}

// DeleteCategory removes a category. Articles keep their category string.
func (db *DB) DeleteCategory(id string) error {
	result, err := db.conn.Exec("DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	return expectOneRow(result)
}

// GetCategoryByID returns a category, or nil if absent.
func (db *DB) GetCategoryByID(id string) (*Category, error) {
	return db.getCategory(categorySelect+" WHERE c.id = ?", id)
}

// GetCategoryBySlug returns a category, or nil if absent.
func (db *DB) GetCategoryBySlug(slug string) (*Category, error) {
	return db.getCategory(categorySelect+" WHERE c.slug = ?", slug)
}

// CategoryExists reports whether a category with this slug is registered.
func (db *DB) CategoryExists(slug string) (bool, error) {
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM categories WHERE slug = ?", slug).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListCategories returns categories by display order. Hidden categories
// are included only when includeHidden is set.
func (db *DB) ListCategories(includeHidden bool) ([]Category, error) {
	query := categorySelect
	if !includeHidden {
		query += " WHERE c.is_visible = 1"
	}
	rows, err := db.conn.Query(query + " ORDER BY c.sort_order, c.name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (db *DB) getCategory(query string, arg any) (*Category, error) {
	c, err := scanCategory(db.conn.QueryRow(query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func scanCategory(row scanner) (*Category, error) {
	var c Category
	var visible int
	var created, updated string
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Icon, &c.Color, &c.Order,
		&visible, &c.Author, &created, &updated, &c.ArticleCount); err != nil {
		return nil, err
	}
	c.IsVisible = visible != 0
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return &c, nil
}
