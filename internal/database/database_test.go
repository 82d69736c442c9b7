package database

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

func insertArticle(t *testing.T, db *DB, id, title, status, category string, tags ...string) *Article {
	t.Helper()
	a := &Article{
		ID:       id,
		Title:    title,
		Slug:     id + "-slug",
		Content:  "Body of " + title,
		Category: category,
		Tags:     tags,
		Status:   status,
	}
	if err := db.InsertArticle(a); err != nil {
		t.Fatalf("InsertArticle(%s): %v", id, err)
	}
	return a
}

func TestInsertAndGetArticle(t *testing.T) {
	db := openTestDB(t)
	insertArticle(t, db, "a1", "Hello", StatusPublished, "tech", "go", "sqlite")

	a, err := db.GetArticleByID("a1")
	if err != nil {
		t.Fatalf("GetArticleByID: %v", err)
	}
	if a == nil {
		t.Fatal("expected article, got nil")
	}
	if a.Title != "Hello" || a.Category != "tech" {
		t.Errorf("unexpected article: %+v", a)
	}
	if len(a.Tags) != 2 || a.Tags[0] != "go" {
		t.Errorf("expected tags [go sqlite], got %v", a.Tags)
	}
	if a.CreatedAt.IsZero() || !a.CreatedAt.Equal(a.UpdatedAt) {
		t.Errorf("expected stamped equal timestamps, got %v / %v", a.CreatedAt, a.UpdatedAt)
	}

	bySlug, err := db.GetArticleBySlug("a1-slug")
	if err != nil || bySlug == nil || bySlug.ID != "a1" {
		t.Errorf("GetArticleBySlug: %v %v", bySlug, err)
	}
}

func TestGetArticleMissing(t *testing.T) {
	db := openTestDB(t)
	a, err := db.GetArticleByID("nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != nil {
		t.Errorf("expected nil, got %+v", a)
	}
}

func TestUpdateArticleKeepsCreatedAt(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	db.SetClock(func() time.Time { return base })
	a := insertArticle(t, db, "a1", "Before", StatusDraft, "tech")

	db.SetClock(func() time.Time { return base.Add(time.Hour) })
	a.Title = "After"
	a.CreatedAt = base.Add(48 * time.Hour)
	if err := db.UpdateArticle(a); err != nil {
		t.Fatalf("UpdateArticle: %v", err)
	}

	got, _ := db.GetArticleByID("a1")
	if got.Title != "After" {
		t.Errorf("expected title After, got %q", got.Title)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("created_at changed: %v", got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("expected updated_at %v, got %v", base.Add(time.Hour), got.UpdatedAt)
	}
}

func TestUpdateDeleteMissingArticle(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpdateArticle(&Article{ID: "ghost", Title: "x", Slug: "x", Status: StatusDraft}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateArticle: expected ErrNotFound, got %v", err)
	}
	if err := db.DeleteArticle("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteArticle: expected ErrNotFound, got %v", err)
	}
}

func TestListArticlesFilters(t *testing.T) {
	db := openTestDB(t)
	insertArticle(t, db, "a1", "Go generics", StatusPublished, "tech", "go")
	insertArticle(t, db, "a2", "Rust traits", StatusPublished, "tech", "rust")
	insertArticle(t, db, "a3", "Hiking notes", StatusDraft, "life", "outdoors", "go")

	tests := []struct {
		name   string
		filter ArticleFilter
		want   int
	}{
		{"all", ArticleFilter{}, 3},
		{"published", ArticleFilter{Status: StatusPublished}, 2},
		{"status all", ArticleFilter{Status: "all"}, 3},
		{"category", ArticleFilter{Category: "life"}, 1},
		{"tag", ArticleFilter{Tags: []string{"go"}}, 2},
		{"tags any", ArticleFilter{Tags: []string{"rust", "outdoors"}}, 2},
		{"search title", ArticleFilter{Search: "GENERICS"}, 1},
		{"search body", ArticleFilter{Search: "body of"}, 3},
		{"combined", ArticleFilter{Status: StatusPublished, Tags: []string{"go"}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := db.ListArticles(tt.filter)
			if err != nil {
				t.Fatalf("ListArticles: %v", err)
			}
			if len(page.Articles) != tt.want || page.Pagination.Total != tt.want {
				t.Errorf("expected %d articles, got %d (total %d)", tt.want, len(page.Articles), page.Pagination.Total)
			}
		})
	}
}

func TestListArticlesPagination(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		db.SetClock(func() time.Time { return base.Add(time.Duration(i) * time.Minute) })
		insertArticle(t, db, fmt.Sprintf("a%d", i), fmt.Sprintf("Title %d", i), StatusPublished, "tech")
	}

	page, err := db.ListArticles(ArticleFilter{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(page.Articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(page.Articles))
	}
	// Newest first: a4 a3 | a2 a1 | a0
	if page.Articles[0].ID != "a2" {
		t.Errorf("expected a2 first on page 2, got %s", page.Articles[0].ID)
	}
	p := page.Pagination
	if p.TotalPages != 3 || !p.HasNextPage || !p.HasPrevPage {
		t.Errorf("unexpected pagination: %+v", p)
	}

	asc, _ := db.ListArticles(ArticleFilter{SortBy: "title", SortOrder: "asc", Limit: 1})
	if asc.Articles[0].ID != "a0" {
		t.Errorf("expected a0 first by title asc, got %s", asc.Articles[0].ID)
	}
}

func TestSlugAndSourceURLChecks(t *testing.T) {
	db := openTestDB(t)
	insertArticle(t, db, "a1", "Hello", StatusDraft, "tech")

	taken, err := db.ArticleSlugTaken("a1-slug", "other")
	if err != nil || !taken {
		t.Errorf("expected slug taken, got %v %v", taken, err)
	}
	taken, _ = db.ArticleSlugTaken("a1-slug", "a1")
	if taken {
		t.Error("slug should not count as taken by its own article")
	}

	url := "https://example.com/post"
	b := &Article{ID: "b1", Title: "Imported", Slug: "imported", Status: StatusDraft, SourceURL: &url}
	if err := db.InsertArticle(b); err != nil {
		t.Fatalf("InsertArticle: %v", err)
	}
	has, err := db.HasArticleWithSourceURL(url)
	if err != nil || !has {
		t.Errorf("expected source url present, got %v %v", has, err)
	}
}

func TestIncrementViewCountAndTags(t *testing.T) {
	db := openTestDB(t)
	insertArticle(t, db, "a1", "One", StatusPublished, "tech", "go", "web")
	insertArticle(t, db, "a2", "Two", StatusPublished, "tech", "go")

	db.IncrementViewCount("a1")
	db.IncrementViewCount("a1")
	a, _ := db.GetArticleByID("a1")
	if a.ViewCount != 2 {
		t.Errorf("expected 2 views, got %d", a.ViewCount)
	}

	tags, err := db.ListTags()
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(tags) != 2 || tags[0].Name != "go" || tags[0].Count != 2 {
		t.Errorf("unexpected tags: %+v", tags)
	}
}

func TestCategoriesArticleCount(t *testing.T) {
	db := openTestDB(t)
	insertArticle(t, db, "a1", "One", StatusPublished, "tech")
	insertArticle(t, db, "a2", "Two", StatusDraft, "tech")

	c, err := db.GetCategoryBySlug("tech")
	if err != nil || c == nil {
		t.Fatalf("GetCategoryBySlug: %v %v", c, err)
	}
	if c.ArticleCount != 1 {
		t.Errorf("expected 1 published article, got %d", c.ArticleCount)
	}

	hidden := &Category{ID: "c-hidden", Name: "Hidden", Slug: "hidden"}
	if err := db.InsertCategory(hidden); err != nil {
		t.Fatalf("InsertCategory: %v", err)
	}
	visible, _ := db.ListCategories(false)
	all, _ := db.ListCategories(true)
	if len(visible) != 3 || len(all) != 4 {
		t.Errorf("expected 3 visible / 4 total, got %d / %d", len(visible), len(all))
	}

	ok, _ := db.CategoryExists("hidden")
	if !ok {
		t.Error("expected hidden category to exist")
	}
	if err := db.DeleteCategory("c-hidden"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	ok, _ = db.CategoryExists("hidden")
	if ok {
		t.Error("expected category to be gone")
	}
}

func TestProjectsCRUD(t *testing.T) {
	db := openTestDB(t)
	p := &Project{ID: "p1", Title: "CLI", Slug: "cli", Status: StatusPublished,
		Technologies: []string{"go"}, Featured: true}
	if err := db.InsertProject(p); err != nil {
		t.Fatalf("InsertProject: %v", err)
	}
	db.InsertProject(&Project{ID: "p2", Title: "Site", Slug: "site", Status: StatusDraft})

	page, err := db.ListProjects(ProjectFilter{Featured: ptr(true)})
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(page.Projects) != 1 || page.Projects[0].Technologies[0] != "go" {
		t.Errorf("unexpected featured projects: %+v", page.Projects)
	}

	p.Description = "A tool"
	if err := db.UpdateProject(p); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	got, _ := db.GetProjectByID("p1")
	if got.Description != "A tool" {
		t.Errorf("expected description updated, got %q", got.Description)
	}
	if err := db.DeleteProject("p1"); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if err := db.DeleteProject("p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestGalleryCRUD(t *testing.T) {
	db := openTestDB(t)
	db.InsertGalleryImage(&GalleryImage{ID: "g1", Title: "Sunset", URL: "/img/1.jpg", Category: "travel", Order: 2})
	db.InsertGalleryImage(&GalleryImage{ID: "g2", Title: "Harbor", URL: "/img/2.jpg", Category: "travel", Order: 1})
	db.InsertGalleryImage(&GalleryImage{ID: "g3", Title: "Desk", URL: "/img/3.jpg", Category: "work"})

	page, err := db.ListGalleryImages(GalleryFilter{Category: "travel"})
	if err != nil {
		t.Fatalf("ListGalleryImages: %v", err)
	}
	if len(page.Images) != 2 || page.Images[0].ID != "g2" {
		t.Errorf("expected g2 first by order, got %+v", page.Images)
	}

	img, _ := db.GetGalleryImageByID("g3")
	img.Featured = true
	if err := db.UpdateGalleryImage(img); err != nil {
		t.Fatalf("UpdateGalleryImage: %v", err)
	}
	featured, _ := db.ListGalleryImages(GalleryFilter{Featured: ptr(true)})
	if len(featured.Images) != 1 {
		t.Errorf("expected 1 featured image, got %d", len(featured.Images))
	}
}

func TestUpsertSyncRecordCreatesPending(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	if err := db.UpsertSyncRecord("a1", SyncUpdate{LastAttempt: &now}); err != nil {
		t.Fatalf("UpsertSyncRecord: %v", err)
	}
	r, err := db.GetSyncRecord("a1")
	if err != nil || r == nil {
		t.Fatalf("GetSyncRecord: %v %v", r, err)
	}
	if r.Status != SyncPending || r.DocumentID != "" || r.DatasetID != "" {
		t.Errorf("expected empty pending record, got %+v", r)
	}
	if r.LastAttempt == nil || !r.LastAttempt.Equal(now) {
		t.Errorf("expected last attempt %v, got %v", now, r.LastAttempt)
	}
}

func TestUpsertSyncRecordMergesAndClearsErrors(t *testing.T) {
	db := openTestDB(t)

	err := db.UpsertSyncRecord("a1", SyncUpdate{
		DatasetID:         ptr("ds-1"),
		Status:            ptr(SyncFailed),
		ErrorMessage:      ptr("boom"),
		ErrorKind:         ptr("transient"),
		IncrementAttempts: true,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	db.UpsertSyncRecord("a1", SyncUpdate{Status: ptr(SyncFailed), ErrorMessage: ptr("boom again"), IncrementAttempts: true})

	r, _ := db.GetSyncRecord("a1")
	if r.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", r.Attempts)
	}
	if r.ErrorMessage == nil || *r.ErrorMessage != "boom again" {
		t.Errorf("expected latest error message, got %v", r.ErrorMessage)
	}
	if r.ErrorKind == nil || *r.ErrorKind != "transient" {
		t.Errorf("expected error kind kept, got %v", r.ErrorKind)
	}

	synced := time.Now().UTC()
	db.UpsertSyncRecord("a1", SyncUpdate{
		DocumentID:  ptr("doc-1"),
		ContentHash: ptr("abc"),
		Status:      ptr(SyncSynced),
		LastSynced:  &synced,
		Attempts:    ptr(0),
	})
	r, _ = db.GetSyncRecord("a1")
	if r.Status != SyncSynced || r.DatasetID != "ds-1" || r.DocumentID != "doc-1" {
		t.Errorf("unexpected merged record: %+v", r)
	}
	if r.ErrorMessage != nil || r.ErrorKind != nil {
		t.Errorf("expected error fields cleared, got %v / %v", r.ErrorMessage, r.ErrorKind)
	}
	if r.Attempts != 0 {
		t.Errorf("expected attempts reset, got %d", r.Attempts)
	}
}

func TestShouldSync(t *testing.T) {
	db := openTestDB(t)

	ok, err := db.ShouldSync("a1", "h1")
	if err != nil || !ok {
		t.Errorf("expected true with no record, got %v %v", ok, err)
	}

	db.UpsertSyncRecord("a1", SyncUpdate{Status: ptr(SyncSynced), ContentHash: ptr("h1")})
	if ok, _ := db.ShouldSync("a1", "h1"); ok {
		t.Error("expected false for unchanged synced record")
	}
	if ok, _ := db.ShouldSync("a1", "h2"); !ok {
		t.Error("expected true for changed hash")
	}

	db.UpsertSyncRecord("a1", SyncUpdate{Status: ptr(SyncFailed), ErrorMessage: ptr("x")})
	if ok, _ := db.ShouldSync("a1", "h1"); !ok {
		t.Error("expected true for failed record")
	}
}

func TestSyncStats(t *testing.T) {
	db := openTestDB(t)
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(24 * time.Hour)

	db.UpsertSyncRecord("a1", SyncUpdate{Status: ptr(SyncSynced), LastSynced: &early})
	db.UpsertSyncRecord("a2", SyncUpdate{Status: ptr(SyncSynced), LastSynced: &late})
	db.UpsertSyncRecord("a3", SyncUpdate{Status: ptr(SyncFailed), ErrorMessage: ptr("x")})
	db.UpsertSyncRecord("a4", SyncUpdate{})

	s, err := db.GetSyncStats()
	if err != nil {
		t.Fatalf("GetSyncStats: %v", err)
	}
	if s.Total != 4 || s.Synced != 2 || s.Failed != 1 || s.Pending != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
	if s.LastSyncTime == nil || !s.LastSyncTime.Equal(late) {
		t.Errorf("expected last sync %v, got %v", late, s.LastSyncTime)
	}

	failed, _ := db.ListSyncRecordsByStatus(SyncFailed)
	if len(failed) != 1 || failed[0].ArticleID != "a3" {
		t.Errorf("unexpected failed records: %+v", failed)
	}

	if err := db.ClearSyncRecords(); err != nil {
		t.Fatalf("ClearSyncRecords: %v", err)
	}
	s, _ = db.GetSyncStats()
	if s.Total != 0 || s.LastSyncTime != nil {
		t.Errorf("expected empty stats, got %+v", s)
	}
}

func TestDeleteSyncRecordMissing(t *testing.T) {
	db := openTestDB(t)
	if err := db.DeleteSyncRecord("ghost"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestConcurrentUpsertsDistinctIDs(t *testing.T) {
	db := openTestDB(t)
	const n = 40

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- db.UpsertSyncRecord(fmt.Sprintf("a%d", i), SyncUpdate{
				Status:      ptr(SyncSynced),
				ContentHash: ptr(fmt.Sprintf("h%d", i)),
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	records, _ := db.ListSyncRecords()
	if len(records) != n {
		t.Errorf("expected %d records, got %d", n, len(records))
	}
}

func TestConcurrentIncrementsSameID(t *testing.T) {
	db := openTestDB(t)
	const n = 25

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			db.UpsertSyncRecord("a1", SyncUpdate{Status: ptr(SyncFailed), ErrorMessage: ptr("x"), IncrementAttempts: true})
		}()
	}
	wg.Wait()

	r, _ := db.GetSyncRecord("a1")
	if r.Attempts != n {
		t.Errorf("expected %d attempts, got %d", n, r.Attempts)
	}
}

func TestClaimDataset(t *testing.T) {
	db := openTestDB(t)

	d, won, err := db.ClaimDataset("tech", "ds-1", "blog-articles-tech")
	if err != nil {
		t.Fatalf("ClaimDataset: %v", err)
	}
	if !won || d.DatasetID != "ds-1" {
		t.Errorf("expected first claim to win, got %v %+v", won, d)
	}

	d, won, err = db.ClaimDataset("tech", "ds-2", "blog-articles-tech")
	if err != nil {
		t.Fatalf("second ClaimDataset: %v", err)
	}
	if won || d.DatasetID != "ds-1" {
		t.Errorf("expected second claim to lose to ds-1, got %v %+v", won, d)
	}

	list, _ := db.ListDatasets()
	if len(list) != 1 {
		t.Errorf("expected 1 dataset, got %d", len(list))
	}
	if err := db.ClearDatasets(); err != nil {
		t.Fatalf("ClearDatasets: %v", err)
	}
	got, _ := db.GetDataset("tech")
	if got != nil {
		t.Errorf("expected registry empty, got %+v", got)
	}
}

func TestForgetDataset(t *testing.T) {
	db := openTestDB(t)
	if _, _, err := db.ClaimDataset("tech", "ds-1", "blog-articles-tech"); err != nil {
		t.Fatalf("ClaimDataset: %v", err)
	}

	removed, err := db.ForgetDataset("tech", "ds-other")
	if err != nil {
		t.Fatalf("ForgetDataset: %v", err)
	}
	if removed {
		t.Error("expected a mismatched id to leave the entry alone")
	}
	if got, _ := db.GetDataset("tech"); got == nil || got.DatasetID != "ds-1" {
		t.Fatalf("expected ds-1 still registered, got %+v", got)
	}

	removed, err = db.ForgetDataset("tech", "ds-1")
	if err != nil {
		t.Fatalf("ForgetDataset: %v", err)
	}
	if !removed {
		t.Error("expected entry removed")
	}
	if got, _ := db.GetDataset("tech"); got != nil {
		t.Errorf("expected registry empty, got %+v", got)
	}

	// The category can be claimed again with a new dataset.
	d, won, err := db.ClaimDataset("tech", "ds-2", "blog-articles-tech")
	if err != nil {
		t.Fatalf("ClaimDataset: %v", err)
	}
	if !won || d.DatasetID != "ds-2" {
		t.Errorf("expected new claim to win, got %v %+v", won, d)
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	insertArticle(t, db, "a1", "One", StatusPublished, "tech")
	insertArticle(t, db, "a2", "Two", StatusDraft, "tech")
	db.IncrementViewCount("a1")
	db.InsertProject(&Project{ID: "p1", Title: "P", Slug: "p", Status: StatusDraft})

	s, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if s.TotalArticles != 2 || s.PublishedArticles != 1 || s.DraftArticles != 1 {
		t.Errorf("unexpected article counts: %+v", s)
	}
	if s.TotalProjects != 1 || s.TotalCategories != 3 || s.TotalViews != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
}
