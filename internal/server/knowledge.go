package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Mark577-code/tech-blog/internal/database"
)

const autoSyncTimeout = 2 * time.Minute

type syncStatus struct {
	Stats   *database.SyncStats   `json:"stats"`
	Records []database.SyncRecord `json:"records"`
}

type syncRequest struct {
	Action    string `json:"action"`
	ArticleID string `json:"articleId"`
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if s.Syncer == nil {
		fail(w, http.StatusServiceUnavailable, "knowledge sync is disabled")
		return
	}
	stats, err := s.Syncer.Stats()
	if err != nil {
		s.storeError(w, err)
		return
	}
	records, err := s.Syncer.Records()
	if err != nil {
		s.storeError(w, err)
		return
	}
	if records == nil {
		records = []database.SyncRecord{}
	}
	ok(w, syncStatus{Stats: stats, Records: records}, "")
}

func (s *Server) handleSyncAction(w http.ResponseWriter, r *http.Request) {
	if s.Syncer == nil {
		fail(w, http.StatusServiceUnavailable, "knowledge sync is disabled")
		return
	}
	var req syncRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	logger := log.WithField("action", req.Action)

	switch req.Action {
	case "sync-single":
		if req.ArticleID == "" {
			fail(w, http.StatusBadRequest, "articleId is required")
			return
		}
		a, err := s.DB.GetArticleByID(req.ArticleID)
		if err != nil {
			s.storeError(w, err)
			return
		}
		if a == nil {
			fail(w, http.StatusNotFound, "article not found")
			return
		}
		outcome, err := s.Syncer.SyncArticle(ctx, a)
		if err != nil {
			logger.WithField("article_id", a.ID).WithError(err).Error("Sync failed")
			fail(w, http.StatusInternalServerError, err.Error())
			return
		}
		ok(w, map[string]string{"outcome": string(outcome)},
			fmt.Sprintf("article %q: %s", a.Title, outcome))

	case "sync-all":
		articles, err := s.DB.AllArticles(database.StatusPublished)
		if err != nil {
			s.storeError(w, err)
			return
		}
		res := s.Syncer.SyncAll(ctx, articles)
		ok(w, res, fmt.Sprintf("synced %d articles: %d succeeded, %d failed, %d skipped",
			res.Total, res.Success, res.Failed, res.Skipped))

	case "retry-failed":
		articles, err := s.DB.AllArticles("")
		if err != nil {
			s.storeError(w, err)
			return
		}
		res, err := s.Syncer.RetryFailed(ctx, articles)
		if err != nil {
			logger.WithError(err).Error("Retry failed")
			fail(w, http.StatusInternalServerError, err.Error())
			return
		}
		ok(w, res, fmt.Sprintf("retried %d failed syncs: %d succeeded, %d failed",
			res.Total, res.Success, res.Failed))

	case "remove-article":
		if req.ArticleID == "" {
			fail(w, http.StatusBadRequest, "articleId is required")
			return
		}
		if err := s.Syncer.RemoveArticle(ctx, req.ArticleID); err != nil {
			logger.WithError(err).Error("Remove failed")
			fail(w, http.StatusInternalServerError, err.Error())
			return
		}
		ok(w, nil, "article removed from knowledge base")

	case "clear-all":
		res, err := s.Syncer.ClearAll(ctx)
		if err != nil {
			logger.WithError(err).Error("Clear failed")
			fail(w, http.StatusInternalServerError, err.Error())
			return
		}
		ok(w, res, fmt.Sprintf("knowledge base cleared: %d datasets, %d documents",
			res.Datasets, res.Documents))

	default:
		fail(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
	}
}

// autoSync pushes a written article to the knowledge base in the
// background. Unpublished articles are removed from it instead.
func (s *Server) autoSync(a *database.Article) {
	if !s.AutoSync || s.Syncer == nil {
		return
	}
	article := *a
	s.background(func(ctx context.Context) {
		logger := log.WithField("article_id", article.ID)
		if article.Status != database.StatusPublished {
			if err := s.Syncer.RemoveArticle(ctx, article.ID); err != nil {
				logger.WithError(err).Warn("Auto-remove failed")
			}
			return
		}
		if _, err := s.Syncer.SyncArticle(ctx, &article); err != nil {
			logger.WithError(err).Warn("Auto-sync failed")
		}
	})
}

func (s *Server) autoRemove(id string) {
	if !s.AutoSync || s.Syncer == nil {
		return
	}
	s.background(func(ctx context.Context) {
		if err := s.Syncer.RemoveArticle(ctx, id); err != nil {
			log.WithField("article_id", id).WithError(err).Warn("Auto-remove failed")
		}
	})
}

func (s *Server) background(fn func(ctx context.Context)) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(s.bgCtx, autoSyncTimeout)
		defer cancel()
		fn(ctx)
	}()
}
