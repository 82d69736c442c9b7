package database

import (
	"database/sql"
	"fmt"
	"strings"
)

const projectColumns = `id, title, slug, description, content, category, tags, status, featured,
	author, featured_image, demo_url, github_url, technologies, view_count, likes, created_at, updated_at`

// InsertProject stores a new project.
func (db *DB) InsertProject(p *Project) error {
	now := db.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt
	_, err := db.conn.Exec(
		`INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Slug, p.Description, p.Content, p.Category, encodeList(p.Tags), p.Status,
		boolInt(p.Featured), p.Author, p.FeaturedImage, p.DemoURL, p.GithubURL,
		encodeList(p.Technologies), p.ViewCount, p.Likes,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// UpdateProject writes every mutable field of a project.
func (db *DB) UpdateProject(p *Project) error {
	p.UpdatedAt = db.now()
	result, err := db.conn.Exec(
		`UPDATE projects SET title = ?, slug = ?, description = ?, content = ?, category = ?,
		tags = ?, status = ?, featured = ?, author = ?, featured_image = ?, demo_url = ?,
		github_url = ?, technologies = ?, updated_at = ? WHERE id = ?`,
		p.Title, p.Slug, p.Description, p.Content, p.Category, encodeList(p.Tags), p.Status,
		boolInt(p.Featured), p.Author, p.FeaturedImage, p.DemoURL, p.GithubURL,
		encodeList(p.Technologies), formatTime(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	return expectOneRow(result)
}

// DeleteProject removes a project.
func (db *DB) DeleteProject(id string) error {
	result, err := db.conn.Exec("DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return expectOneRow(result)
}

// GetProjectByID returns a project, or nil if absent.
func (db *DB) GetProjectByID(id string) (*Project, error) {
	p, err := scanProject(db.conn.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ProjectSlugTaken reports whether slug is used by a project other than excludeID.
func (db *DB) ProjectSlugTaken(slug, excludeID string) (bool, error) {
	var n int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM projects WHERE slug = ? AND id != ?", slug, excludeID,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListProjects returns a filtered page of projects, featured first then newest.
func (db *DB) ListProjects(f ProjectFilter) (*ProjectPage, error) {
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
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM projects"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting projects: %w", err)
	}

	rows, err := db.conn.Query(
		`SELECT `+projectColumns+` FROM projects`+where+
			` ORDER BY featured DESC, created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, limit, (page-1)*limit)...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &ProjectPage{Projects: projects, Pagination: paginate(page, limit, total)}, nil
}

func scanProject(row scanner) (*Project, error) {
	var p Project
	var featured int
	var tags, techs, created, updated string
	if err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Description, &p.Content, &p.Category, &tags,
		&p.Status, &featured, &p.Author, &p.FeaturedImage, &p.DemoURL, &p.GithubURL, &techs,
		&p.ViewCount, &p.Likes, &created, &updated); err != nil {
		return nil, err
	}
	p.Featured = featured != 0
	p.Tags = decodeList(tags)
	p.Technologies = decodeList(techs)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}
