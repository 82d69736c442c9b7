package database

import (
	"database/sql"
	"fmt"
	"strings"
)

const galleryColumns = `id, title, description, url, thumbnail_url, category, tags, featured,
	author, view_count, likes, sort_order, created_at, updated_at`

// InsertGalleryImage stores a new gallery image.
func (db *DB) InsertGalleryImage(g *GalleryImage) error {
	now := db.now()
	g.CreatedAt, g.UpdatedAt = now, now
	_, err := db.conn.Exec(
		`INSERT INTO gallery_images (`+galleryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Title, g.Description, g.URL, g.ThumbnailURL, g.Category, encodeList(g.Tags),
		boolInt(g.Featured), g.Author, g.ViewCount, g.Likes, g.Order,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("inserting gallery image: %w", err)
	}
	return nil
}

// UpdateGalleryImage writes the mutable fields of a gallery image.
func (db *DB) UpdateGalleryImage(g *GalleryImage) error {
	g.UpdatedAt = db.now()
	result, err := db.conn.Exec(
		`UPDATE gallery_images SET title = ?, description = ?, url = ?, thumbnail_url = ?,
		category = ?, tags = ?, featured = ?, author = ?, sort_order = ?, updated_at = ?
		WHERE id = ?`,
		g.Title, g.Description, g.URL, g.ThumbnailURL, g.Category, encodeList(g.Tags),
		boolInt(g.Featured), g.Author, g.Order, formatTime(g.UpdatedAt), g.ID,
	)
	if err != nil {
		return fmt.Errorf("updating gallery image: %w", err)
	}
	return expectOneRow(result)
}

// DeleteGalleryImage removes a gallery image.
func (db *DB) DeleteGalleryImage(id string) error {
	result, err := db.conn.Exec("DELETE FROM gallery_images WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting gallery image: %w", err)
	}
	return expectOneRow(result)
}

// GetGalleryImageByID returns an image, or nil if absent.
func (db *DB) GetGalleryImageByID(id string) (*GalleryImage, error) {
	g, err := scanGalleryImage(db.conn.QueryRow(
		`SELECT `+galleryColumns+` FROM gallery_images WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListGalleryImages returns a filtered page of images in display order.
func (db *DB) ListGalleryImages(f GalleryFilter) (*GalleryPage, error) {
	var clauses []string
	var args []any
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if f.Featured != nil {
		clauses = append(clauses, "featured = ?")
		args = append(args, boolInt(*f.Featured))
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		clauses = append(clauses, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		args = append(args, like, like)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	page, limit := normalizePage(f.Page, f.Limit)
	var total int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM gallery_images"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting gallery images: %w", err)
	}

	rows, err := db.conn.Query(
		`SELECT `+galleryColumns+` FROM gallery_images`+where+
			` ORDER BY sort_order, created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, limit, (page-1)*limit)...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing gallery images: %w", err)
	}
	defer rows.Close()

	images := []GalleryImage{}
	for rows.Next() {
		g, err := scanGalleryImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &GalleryPage{Images: images, Pagination: paginate(page, limit, total)}, nil
}

func scanGalleryImage(row scanner) (*GalleryImage, error) {
	var g GalleryImage
	var featured int
	var tags, created, updated string
	if err := row.Scan(&g.ID, &g.Title, &g.Description, &g.URL, &g.ThumbnailURL, &g.Category,
		&tags, &featured, &g.Author, &g.ViewCount, &g.Likes, &g.Order, &created, &updated); err != nil {
		return nil, err
	}
	g.Featured = featured != 0
	g.Tags = decodeList(tags)
	g.CreatedAt = parseTime(created)
	g.UpdatedAt = parseTime(updated)
	return &g, nil
}
