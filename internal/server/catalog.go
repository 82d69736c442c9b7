package server

import (
	"net/http"

	"github.com/Mark577-code/tech-blog/internal/database"
)

type categoryInput struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	Color       *string `json:"color"`
	Order       *int    `json:"order"`
	IsVisible   *bool   `json:"isVisible"`
}

func (in *categoryInput) apply(c *database.Category) {
	set(&c.Name, in.Name)
	set(&c.Slug, in.Slug)
	set(&c.Description, in.Description)
	set(&c.Icon, in.Icon)
	set(&c.Color, in.Color)
	set(&c.Order, in.Order)
	set(&c.IsVisible, in.IsVisible)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.DB.ListCategories(isAdmin(r))
	if err != nil {
		s.storeError(w, err)
		return
	}
	ok(w, cats, "")
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := s.DB.GetCategoryByID(r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if c == nil || (!c.IsVisible && !isAdmin(r)) {
		fail(w, http.StatusNotFound, "category not found")
		return
	}
	ok(w, c, "")
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	in := categoryInput{}
	if err := decode(w, r, &in); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	c := &database.Category{IsVisible: true}
	in.apply(c)
	if err := s.Content.CreateCategory(c); err != nil {
		s.storeError(w, err)
		return
	}
	created(w, c, "category created")
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var in categoryInput
	if err := decode(w, r, &in); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.Content.UpdateCategory(r.PathValue("id"), func(c *database.Category) error {
		in.apply(c)
		return nil
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	ok(w, c, "category updated")
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.Content.DeleteCategory(r.PathValue("id")); err != nil {
		s.storeError(w, err)
		return
	}
	ok(w, nil, "category deleted")
}

type projectInput struct {
	ID            *string   `json:"id"`
	Title         *string   `json:"title"`
	Description   *string   `json:"description"`
	Content       *string   `json:"content"`
	Category      *string   `json:"category"`
	Tags          *[]string `json:"tags"`
	Status        *string   `json:"status"`
	Featured      *bool     `json:"featured"`
	Author        *string   `json:"author"`
	FeaturedImage *string   `json:"featuredImage"`
	DemoURL       *string   `json:"demoUrl"`
	GithubURL     *string   `json:"githubUrl"`
	Technologies  *[]string `json:"technologies"`
}

func (in *projectInput) apply(p *database.Project) {
	set(&p.Title, in.Title)
	set(&p.Description, in.Description)
	set(&p.Content, in.Content)
	set(&p.Category, in.Category)
	set(&p.Tags, in.Tags)
	set(&p.Status, in.Status)
	set(&p.Featured, in.Featured)
	set(&p.Author, in.Author)
	set(&p.FeaturedImage, in.FeaturedImage)
	set(&p.DemoURL, in.DemoURL)
	set(&p.GithubURL, in.GithubURL)
	set(&p.Technologies, in.Technologies)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := database.ProjectFilter{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Featured: boolParam(r, "featured"),
		Search:   q.Get("search"),
		Page:     intParam(r, "page", 1),
		Limit:    intParam(r, "limit", 10),
	}
	if !isAdmin(r) {
		f.Status = database.StatusPublished
	}
	page, err := s.DB.ListProjects(f)
	if err != nil {
		s.storeError(w, err)
		return
	}
	ok(w, page, "")
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.DB.GetProjectByID(r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if p == nil || (p.Status != database.StatusPublished && !isAdmin(r)) {
		fail(w, http.StatusNotFound, "project not found")
		return
	}
	ok(w, p, "")
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in projectInput
	if err := decode(w, r, &in); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	p := &database.Project{}
	in.apply(p)
	if err := s.Content.CreateProject(p); err != nil {
		s.storeError(w, err)
		return
	}
	created(w, p, "project created")
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in projectInput
	if err := decode(w, r, &in); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.ID != nil && *in.ID != id {
		fail(w, http.StatusBadRequest, "id in body does not match path")
		return
	}
	p, err := s.Content.UpdateProject(id, func(p *database.Project) error {
		in.apply(p)
		return nil
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	ok(w, p, "project updated")
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.Content.DeleteProject(r.PathValue("id")); err != nil {
		s.storeError(w, err)
		return
	}
	ok(w, nil, "project deleted")
}

type galleryInput struct {
	Title        *string   `json:"title"`
	Description  *string   `json:"description"`
	URL          *string   `json:"url"`
	ThumbnailURL *string   `json:"thumbnailUrl"`
	Category     *string   `json:"category"`
	Tags         *[]string `json:"tags"`
	Featured     *bool     `json:"featured"`
	Author       *string   `json:"author"`
	Order        *int      `json:"order"`
}

func (in *galleryInput) apply(g *database.GalleryImage) {
	set(&g.Title, in.Title)
	set(&g.Description, in.Description)
	set(&g.URL, in.URL)
	set(&g.ThumbnailURL, in.ThumbnailURL)
	set(&g.Category, in.Category)
	set(&g.Tags, in.Tags)
	set(&g.Featured, in.Featured)
	set(&g.Author, in.Author)
	set(&g.Order, in.Order)
}

func (s *Server) handleListGallery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.DB.ListGalleryImages(database.GalleryFilter{
		Category: q.Get("category"),
		Featured: boolParam(r, "featured"),
		Search:   q.Get("search"),
		Page:     intParam(r, "page", 1),
		Limit:    intParam(r, "limit", 20),
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	ok(w, page, "")
}

func (s *Server) handleGetGalleryImage(w http.ResponseWriter, r *http.Request) {
	g, err := s.DB.GetGalleryImageByID(r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if g == nil {
		fail(w, http.StatusNotFound, "image not found")
		return
	}
	ok(w, g, "")
}

func (s *Server) handleCreateGalleryImage(w http.ResponseWriter, r *http.Request) {
	var in galleryInput
	if err := decode(w, r, &in); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	g := &database.GalleryImage{}
	in.apply(g)
	if err := s.Content.CreateGalleryImage(g); err != nil {
		s.storeError(w, err)
		return
	}
	created(w, g, "image created")
}

func (s *Server) handleUpdateGalleryImage(w http.ResponseWriter, r *http.Request) {
	var in galleryInput
	if err := decode(w, r, &in); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := s.Content.UpdateGalleryImage(r.PathValue("id"), func(g *database.GalleryImage) error {
		in.apply(g)
		return nil
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	ok(w, g, "image updated")
}

func (s *Server) handleDeleteGalleryImage(w http.ResponseWriter, r *http.Request) {
	if err := s.Content.DeleteGalleryImage(r.PathValue("id")); err != nil {
		s.storeError(w, err)
		return
	}
	ok(w, nil, "image deleted")
}
