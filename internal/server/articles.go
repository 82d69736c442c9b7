package server

import (
	"net/http"

	"github.com/Mark577-code/tech-blog/internal/database"
)

// articleInput carries the writable article fields. Absent fields are left
// unchanged on update.
type articleInput struct {
	ID            *string   `json:"id"`
	Title         *string   `json:"title"`
	Content       *string   `json:"content"`
	Excerpt       *string   `json:"excerpt"`
	Category      *string   `json:"category"`
	Tags          *[]string `json:"tags"`
	Status        *string   `json:"status"`
	Author        *string   `json:"author"`
	FeaturedImage *string   `json:"featuredImage"`
}

func (in *articleInput) apply(a *database.Article) {
	set(&a.Title, in.Title)
	set(&a.Content, in.Content)
	set(&a.Excerpt, in.Excerpt)
	set(&a.Category, in.Category)
	set(&a.Tags, in.Tags)
	set(&a.Status, in.Status)
	set(&a.Author, in.Author)
	set(&a.FeaturedImage, in.FeaturedImage)
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := database.ArticleFilter{
		Status:    q.Get("status"),
		Category:  q.Get("category"),
		Tags:      listParam(r, "tags"),
		Search:    q.Get("search"),
		Page:      intParam(r, "page", 1),
		Limit:     intParam(r, "limit", 10),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}
	if !isAdmin(r) {
		f.Status = database.StatusPublished
	}

	page, err := s.DB.ListArticles(f)
	if err != nil {
		s.storeError(w, err)
		return
	}
	ok(w, page, "")
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	a, err := s.DB.GetArticleByID(r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if a == nil || (a.Status != database.StatusPublished && !isAdmin(r)) {
		fail(w, http.StatusNotFound, "article not found")
		return
	}
	ok(w, a, "")
}

func (s *Server) handleGetArticleBySlug(w http.ResponseWriter, r *http.Request) {
	a, err := s.DB.GetArticleBySlug(r.PathValue("slug"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if a == nil || (a.Status != database.StatusPublished && !isAdmin(r)) {
		fail(w, http.StatusNotFound, "article not found")
		return
	}
	if err := s.DB.IncrementViewCount(a.ID); err != nil {
		s.storeError(w, err)
		return
	}
	a.ViewCount++
	ok(w, a, "")
}

func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	var in articleInput
	if err := decode(w, r, &in); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	a := &database.Article{}
	in.apply(a)
	if err := s.Content.CreateArticle(a); err != nil {
		s.storeError(w, err)
		return
	}
	s.autoSync(a)
	created(w, a, "article created")
}

func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in articleInput
	if err := decode(w, r, &in); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.ID != nil && *in.ID != id {
		fail(w, http.StatusBadRequest, "id in body does not match path")
		return
	}
	a, err := s.Content.UpdateArticle(id, func(a *database.Article) error {
		in.apply(a)
		return nil
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.autoSync(a)
	ok(w, a, "article updated")
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Content.DeleteArticle(id); err != nil {
		s.storeError(w, err)
		return
	}
	s.autoRemove(id)
	ok(w, nil, "article deleted")
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.DB.ListTags()
	if err != nil {
		s.storeError(w, err)
		return
	}
	ok(w, tags, "")
}
