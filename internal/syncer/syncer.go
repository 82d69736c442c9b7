// Package syncer keeps the remote knowledge base in step with published
// articles: one document per article, one dataset per category.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Mark577-code/tech-blog/internal/database"
	"github.com/Mark577-code/tech-blog/internal/knowledge"
	"github.com/Mark577-code/tech-blog/internal/metrics"
	"github.com/Mark577-code/tech-blog/internal/processor"
)

// Outcome is the result of a single SyncArticle call.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"   // not eligible
	OutcomeUnchanged Outcome = "unchanged" // already synced with this content
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeFailed    Outcome = "failed"
)

// Failure classes stored in SyncRecord.ErrorKind.
const (
	KindTransient = "transient"
	KindPermanent = "permanent"
)

// Store is the local state the syncer reads and writes.
type Store interface {
	GetSyncRecord(articleID string) (*database.SyncRecord, error)
	UpsertSyncRecord(articleID string, u database.SyncUpdate) error
	DeleteSyncRecord(articleID string) error
	ListSyncRecords() ([]database.SyncRecord, error)
	ListSyncRecordsByStatus(status string) ([]database.SyncRecord, error)
	ShouldSync(articleID, currentHash string) (bool, error)
	GetSyncStats() (*database.SyncStats, error)
	ClearSyncRecords() error

	GetDataset(category string) (*database.KnowledgeDataset, error)
	ClaimDataset(category, datasetID, name string) (*database.KnowledgeDataset, bool, error)
	ForgetDataset(category, datasetID string) (bool, error)
	ClearDatasets() error
	CategoryExists(slug string) (bool, error)
}

// Options tunes batching, retries and dataset naming.
type Options struct {
	DatasetPrefix        string
	BatchSize            int
	BatchPause           time.Duration
	MaxAttempts          int
	RetryInitialInterval time.Duration
	RequireKnownCategory bool
}

// Result tallies a multi-article run.
type Result struct {
	Total     int       `json:"total"`
	Success   int       `json:"success"` // created + updated
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"` // ineligible, unchanged or missing
	Created   int       `json:"created"`
	Updated   int       `json:"updated"`
	Unchanged int       `json:"unchanged"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Failure names an article that could not be synced.
type Failure struct {
	ArticleID string `json:"articleId"`
	Title     string `json:"title"`
	Err       string `json:"error"`
}

func (r *Result) add(a *database.Article, outcome Outcome, err error) {
	switch outcome {
	case OutcomeCreated:
		r.Success++
		r.Created++
	case OutcomeUpdated:
		r.Success++
		r.Updated++
	case OutcomeUnchanged:
		r.Skipped++
		r.Unchanged++
	case OutcomeSkipped:
		r.Skipped++
	default:
		r.Failed++
		f := Failure{ArticleID: a.ID, Title: a.Title}
		if err != nil {
			f.Err = err.Error()
		}
		r.Failures = append(r.Failures, f)
	}
}

// ClearResult reports what ClearAll removed remotely.
type ClearResult struct {
	Datasets  int `json:"datasets"`
	Documents int `json:"documents"`
}

// Syncer orchestrates article syncs against a knowledge.Service.
type Syncer struct {
	store  Store
	remote knowledge.Service
	proc   *processor.Processor
	opts   Options

	group    singleflight.Group
	datasets *lru.Cache[string, string]
	articles keyedMutex
	now      func() time.Time
}

const datasetCacheSize = 128

// New creates a Syncer. Zero options get the documented defaults.
func New(store Store, remote knowledge.Service, proc *processor.Processor, opts Options) *Syncer {
	if opts.DatasetPrefix == "" {
		opts.DatasetPrefix = "blog-articles"
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 3
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = 500 * time.Millisecond
	}
	cache, _ := lru.New[string, string](datasetCacheSize)
	return &Syncer{
		store:    store,
		remote:   remote,
		proc:     proc,
		opts:     opts,
		datasets: cache,
		now:      time.Now,
	}
}

// SetClock overrides the time source for lastSynced/lastAttempt stamps.
func (s *Syncer) SetClock(now func() time.Time) {
	s.now = now
}

// SyncArticle pushes one article to the knowledge base if it is eligible and
// changed. Remote failures are recorded on the article's sync record and
// returned. Calls for the same article run one at a time.
func (s *Syncer) SyncArticle(ctx context.Context, a *database.Article) (Outcome, error) {
	unlock := s.articles.lock(a.ID)
	defer unlock()

	start := time.Now()
	outcome, err := s.syncArticle(ctx, a)
	metrics.RecordSync(string(outcome), time.Since(start))
	return outcome, err
}

func (s *Syncer) syncArticle(ctx context.Context, a *database.Article) (Outcome, error) {
	logger := log.WithFields(log.Fields{"article_id": a.ID, "category": a.Category})

	if !processor.ShouldSync(a) {
		logger.Debug("article not eligible for knowledge sync")
		return OutcomeSkipped, nil
	}

	hash := processor.ContentHash(a)
	need, err := s.store.ShouldSync(a.ID, hash)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("checking sync state of %s: %w", a.ID, err)
	}
	if !need {
		logger.Debug("article unchanged since last sync")
		return OutcomeUnchanged, nil
	}

	existing, err := s.store.GetSyncRecord(a.ID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("reading sync record of %s: %w", a.ID, err)
	}

	doc := s.proc.Format(a)
	datasetID, documentID, outcome, err := s.push(ctx, a, doc, existing)
	if err != nil {
		s.recordFailure(a.ID, err)
		logger.WithError(err).Warn("knowledge sync failed")
		return OutcomeFailed, fmt.Errorf("syncing article %s: %w", a.ID, err)
	}

	now := s.now()
	synced := database.SyncSynced
	zero := 0
	if err := s.store.UpsertSyncRecord(a.ID, database.SyncUpdate{
		DatasetID:   &datasetID,
		DocumentID:  &documentID,
		ContentHash: &hash,
		Status:      &synced,
		LastSynced:  &now,
		LastAttempt: &now,
		Attempts:    &zero,
	}); err != nil {
		s.discardOrphan(ctx, a.ID, datasetID, documentID, outcome)
		return OutcomeFailed, fmt.Errorf("saving sync record of %s: %w", a.ID, err)
	}

	logger.WithFields(log.Fields{"dataset_id": datasetID, "document_id": documentID}).
		Infof("Synced article %q (%s)", a.Title, outcome)
	return outcome, nil
}

// push resolves the dataset and creates or updates the remote document.
func (s *Syncer) push(ctx context.Context, a *database.Article, doc processor.Document, existing *database.SyncRecord) (string, string, Outcome, error) {
	datasetID, err := s.resolveDataset(ctx, a.Category)
	if err != nil {
		return "", "", OutcomeFailed, err
	}

	if existing != nil && existing.DocumentID != "" {
		if existing.DatasetID == "" || existing.DatasetID == datasetID {
			_, err := retry(ctx, s, "update_document", func() (*knowledge.Document, error) {
				return s.remote.UpdateDocument(ctx, datasetID, existing.DocumentID, doc.Content)
			})
			if err == nil {
				return datasetID, existing.DocumentID, OutcomeUpdated, nil
			}
			if !isNotFound(err) {
				return datasetID, "", OutcomeFailed, err
			}
			log.WithField("article_id", a.ID).Info("remote document missing, recreating")
		} else {
			// Category changed: the old document lives in another dataset.
			if err := s.remote.DeleteDocument(ctx, existing.DatasetID, existing.DocumentID); err != nil {
				log.WithField("article_id", a.ID).WithError(err).Warn("failed to delete document from previous dataset")
			}
		}
	}

	created, err := s.createDocument(ctx, datasetID, doc)
	if isNotFound(err) {
		// The dataset itself is gone remotely; register a fresh one.
		log.WithFields(log.Fields{"category": a.Category, "dataset_id": datasetID}).
			Warn("dataset missing remotely, resolving again")
		if err := s.forgetDataset(a.Category, datasetID); err != nil {
			return datasetID, "", OutcomeFailed, err
		}
		datasetID, err = s.resolveDataset(ctx, a.Category)
		if err != nil {
			return "", "", OutcomeFailed, err
		}
		created, err = s.createDocument(ctx, datasetID, doc)
	}
	if err != nil {
		return datasetID, "", OutcomeFailed, err
	}
	return datasetID, created.ID, OutcomeCreated, nil
}

func (s *Syncer) createDocument(ctx context.Context, datasetID string, doc processor.Document) (*knowledge.Document, error) {
	return retry(ctx, s, "create_document", func() (*knowledge.Document, error) {
		return s.remote.CreateDocument(ctx, datasetID, s.proc.DocumentRequest(doc))
	})
}

// discardOrphan deletes a document created in this call whose sync record
// could not be saved, so the next sync does not create a second copy.
func (s *Syncer) discardOrphan(ctx context.Context, articleID, datasetID, documentID string, outcome Outcome) {
	logger := log.WithFields(log.Fields{"article_id": articleID, "dataset_id": datasetID, "document_id": documentID})
	if outcome != OutcomeCreated {
		logger.Error("sync record not saved after remote update")
		return
	}
	if err := s.remote.DeleteDocument(ctx, datasetID, documentID); err != nil {
		logger.WithError(err).Error("sync record not saved, remote document left orphaned")
		return
	}
	logger.Warn("sync record not saved, deleted the new remote document")
}

func (s *Syncer) recordFailure(articleID string, err error) {
	now := s.now()
	failed := database.SyncFailed
	msg := err.Error()
	kind := errorKind(err)
	if uerr := s.store.UpsertSyncRecord(articleID, database.SyncUpdate{
		Status:            &failed,
		ErrorMessage:      &msg,
		ErrorKind:         &kind,
		LastAttempt:       &now,
		IncrementAttempts: true,
	}); uerr != nil {
		log.WithField("article_id", articleID).WithError(uerr).Error("failed to record sync failure")
	}
}

// RemoveArticle deletes the article's remote document (best effort) and
// its sync record. Articles never synced are a no-op.
func (s *Syncer) RemoveArticle(ctx context.Context, articleID string) error {
	unlock := s.articles.lock(articleID)
	defer unlock()

	rec, err := s.store.GetSyncRecord(articleID)
	if err != nil {
		return fmt.Errorf("reading sync record of %s: %w", articleID, err)
	}
	if rec == nil {
		return nil
	}

	if rec.DatasetID != "" && rec.DocumentID != "" {
		if err := s.remote.DeleteDocument(ctx, rec.DatasetID, rec.DocumentID); err != nil {
			log.WithFields(log.Fields{"article_id": articleID, "dataset_id": rec.DatasetID}).
				WithError(err).Warn("failed to delete remote document")
		}
	}

	if err := s.store.DeleteSyncRecord(articleID); err != nil {
		return err
	}
	log.WithField("article_id", articleID).Info("Removed article from knowledge base")
	return nil
}

// SyncAll syncs articles in fixed-size concurrent batches with a pause
// between batches. Individual failures are tallied, never returned.
func (s *Syncer) SyncAll(ctx context.Context, articles []database.Article) *Result {
	r := &Result{Total: len(articles)}
	var mu sync.Mutex

	for start := 0; start < len(articles); start += s.opts.BatchSize {
		if start > 0 && s.opts.BatchPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.opts.BatchPause):
			}
		}
		if ctx.Err() != nil {
			log.Warnf("Sync interrupted after %d of %d articles: %v", start, len(articles), ctx.Err())
			break
		}

		end := min(start+s.opts.BatchSize, len(articles))
		var g errgroup.Group
		for i := start; i < end; i++ {
			a := &articles[i]
			g.Go(func() error {
				outcome, err := s.SyncArticle(ctx, a)
				mu.Lock()
				r.add(a, outcome, err)
				mu.Unlock()
				return nil
			})
		}
		g.Wait()
	}

	log.Infof("Knowledge sync complete: %d succeeded, %d failed, %d skipped",
		r.Success, r.Failed, r.Skipped)
	return r
}

// RetryFailed re-runs every failed record sequentially. Records whose
// article is not in articles are skipped.
func (s *Syncer) RetryFailed(ctx context.Context, articles []database.Article) (*Result, error) {
	failed, err := s.store.ListSyncRecordsByStatus(database.SyncFailed)
	if err != nil {
		return nil, fmt.Errorf("listing failed syncs: %w", err)
	}

	byID := make(map[string]*database.Article, len(articles))
	for i := range articles {
		byID[articles[i].ID] = &articles[i]
	}

	r := &Result{Total: len(failed)}
	for _, rec := range failed {
		if ctx.Err() != nil {
			break
		}
		a, ok := byID[rec.ArticleID]
		if !ok {
			log.WithField("article_id", rec.ArticleID).Debug("failed record has no matching article")
			r.Skipped++
			continue
		}
		outcome, err := s.SyncArticle(ctx, a)
		r.add(a, outcome, err)
	}

	log.Infof("Retry complete: %d succeeded, %d failed, %d skipped", r.Success, r.Failed, r.Skipped)
	return r, nil
}

// ClearAll deletes every document and dataset under the configured prefix,
// then wipes the local sync records and dataset registry. Local state is
// cleared even if some remote deletions fail; those failures are returned.
func (s *Syncer) ClearAll(ctx context.Context) (*ClearResult, error) {
	datasets, err := retry(ctx, s, "list_datasets", func() ([]knowledge.Dataset, error) {
		return s.remote.ListDatasets(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}

	r := &ClearResult{}
	var errs []error
	prefix := s.opts.DatasetPrefix + "-"
	for _, ds := range datasets {
		if !strings.HasPrefix(ds.Name, prefix) {
			continue
		}
		docs, err := s.remote.ListDocuments(ctx, ds.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("listing documents of %s: %w", ds.Name, err))
			continue
		}
		for _, doc := range docs {
			if err := s.remote.DeleteDocument(ctx, ds.ID, doc.ID); err != nil {
				errs = append(errs, fmt.Errorf("deleting document %s: %w", doc.ID, err))
				continue
			}
			r.Documents++
		}
		if err := s.remote.DeleteDataset(ctx, ds.ID); err != nil {
			errs = append(errs, fmt.Errorf("deleting dataset %s: %w", ds.Name, err))
			continue
		}
		r.Datasets++
	}

	if err := s.store.ClearSyncRecords(); err != nil {
		return r, err
	}
	if err := s.store.ClearDatasets(); err != nil {
		return r, err
	}
	s.datasets.Purge()

	log.Infof("Cleared knowledge base: %d datasets, %d documents", r.Datasets, r.Documents)
	return r, errors.Join(errs...)
}

// Stats returns aggregate sync state.
func (s *Syncer) Stats() (*database.SyncStats, error) {
	return s.store.GetSyncStats()
}

// Records returns every sync record.
func (s *Syncer) Records() ([]database.SyncRecord, error) {
	return s.store.ListSyncRecords()
}

func errorKind(err error) string {
	if knowledge.IsTransient(err) {
		return KindTransient
	}
	return KindPermanent
}

func isNotFound(err error) bool {
	var apiErr *knowledge.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}
