package database

import "time"

// Article statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Sync record statuses.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncFailed  = "failed"
)

// Article is a blog post.
type Article struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	Content       string    `json:"content"`
	Excerpt       string    `json:"excerpt"`
	Category      string    `json:"category"`
	Tags          []string  `json:"tags"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Author        string    `json:"author"`
	FeaturedImage string    `json:"featuredImage"`
	ReadingTime   int       `json:"readingTime"`
	ViewCount     int       `json:"viewCount"`
	Likes         int       `json:"likes"`
	SourceURL     *string   `json:"sourceUrl,omitempty"`
}

// ArticleFilter selects and pages articles. Zero values mean "no filter".
type ArticleFilter struct {
	Status    string // draft, published, or "" / "all"
	Category  string
	Tags      []string
	Search    string
	Page      int
	Limit     int
	SortBy    string // createdAt, updatedAt, title, viewCount
	SortOrder string // asc, desc
}

// Pagination describes a page of results.
type Pagination struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// ArticlePage is a paginated list of articles.
type ArticlePage struct {
	Articles   []Article  `json:"articles"`
	Pagination Pagination `json:"pagination"`
}

// Tag is a tag with the number of articles using it.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Category groups articles; Slug is what Article.Category refers to.
type Category struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  string    `json:"description"`
	Icon         string    `json:"icon"`
	Color        string    `json:"color"`
	Order        int       `json:"order"`
	IsVisible    bool      `json:"isVisible"`
	ArticleCount int       `json:"articleCount"`
	Author       string    `json:"author"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Project is a portfolio entry.
type Project struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	Description   string    `json:"description"`
	Content       string    `json:"content"`
	Category      string    `json:"category"`
	Tags          []string  `json:"tags"`
	Status        string    `json:"status"`
	Featured      bool      `json:"featured"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Author        string    `json:"author"`
	FeaturedImage string    `json:"featuredImage"`
	DemoURL       string    `json:"demoUrl"`
	GithubURL     string    `json:"githubUrl"`
	Technologies  []string  `json:"technologies"`
	ViewCount     int       `json:"viewCount"`
	Likes         int       `json:"likes"`
}

// ProjectFilter selects and pages projects.
type ProjectFilter struct {
	Status   string
	Category string
	Featured *bool
	Search   string
	Page     int
	Limit    int
}

// ProjectPage is a paginated list of projects.
type ProjectPage struct {
	Projects   []Project  `json:"projects"`
	Pagination Pagination `json:"pagination"`
}

// GalleryImage is a photograph in the gallery.
type GalleryImage struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	Category     string    `json:"category"`
	Tags         []string  `json:"tags"`
	Featured     bool      `json:"featured"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Author       string    `json:"author"`
	ViewCount    int       `json:"viewCount"`
	Likes        int       `json:"likes"`
	Order        int       `json:"order"`
}

// GalleryFilter selects and pages gallery images.
type GalleryFilter struct {
	Category string
	Featured *bool
	Search   string
	Page     int
	Limit    int
}

// GalleryPage is a paginated list of gallery images.
type GalleryPage struct {
	Images     []GalleryImage `json:"images"`
	Pagination Pagination     `json:"pagination"`
}

// SyncRecord tracks an article's state in the remote knowledge base.
type SyncRecord struct {
	ArticleID    string     `json:"articleId"`
	DatasetID    string     `json:"datasetId"`
	DocumentID   string     `json:"documentId"`
	ContentHash  string     `json:"contentHash"`
	Status       string     `json:"status"`
	LastSynced   *time.Time `json:"lastSynced,omitempty"`
	LastAttempt  *time.Time `json:"lastAttempt,omitempty"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`
	ErrorKind    *string    `json:"errorKind,omitempty"`
	Attempts     int        `json:"attempts"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// SyncUpdate holds the fields to merge into a sync record. Nil fields keep
// their stored value.
type SyncUpdate struct {
	DatasetID    *string
	DocumentID   *string
	ContentHash  *string
	Status       *string
	LastSynced   *time.Time
	LastAttempt  *time.Time
	ErrorMessage *string
	ErrorKind    *string
	// Attempts overwrites the failure counter; IncrementAttempts adds one.
	Attempts          *int
	IncrementAttempts bool
}

// SyncStats aggregates sync records.
type SyncStats struct {
	Total        int        `json:"totalArticles"`
	Synced       int        `json:"syncedArticles"`
	Pending      int        `json:"pendingSync"`
	Failed       int        `json:"failedSync"`
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`
}

// KnowledgeDataset maps a category to its remote dataset.
type KnowledgeDataset struct {
	Category  string    `json:"category"`
	DatasetID string    `json:"datasetId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stats contains aggregate content statistics for the dashboard.
type Stats struct {
	TotalArticles     int `json:"totalArticles"`
	PublishedArticles int `json:"publishedArticles"`
	DraftArticles     int `json:"draftArticles"`
	TotalProjects     int `json:"totalProjects"`
	TotalImages       int `json:"totalImages"`
	TotalCategories   int `json:"totalCategories"`
	TotalViews        int `json:"totalViews"`
}
