package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"

	"github.com/Mark577-code/tech-blog/internal/knowledge"
)

// ErrUnknownCategory is returned for articles whose category is not
// registered while known categories are required.
var ErrUnknownCategory = errors.New("unknown category")

// resolveDataset maps a category to its remote dataset id. Lookups go
// cache, registry, remote listing, remote create; concurrent callers for one
// category share a single resolution and the registry keeps the first claim.
func (s *Syncer) resolveDataset(ctx context.Context, category string) (string, error) {
	if id, ok := s.datasets.Get(category); ok {
		return id, nil
	}

	v, err, _ := s.group.Do(category, func() (any, error) {
		return s.lookupOrCreateDataset(ctx, category)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Syncer) lookupOrCreateDataset(ctx context.Context, category string) (string, error) {
	registered, err := s.store.GetDataset(category)
	if err != nil {
		return "", fmt.Errorf("reading dataset registry: %w", err)
	}
	if registered != nil {
		s.datasets.Add(category, registered.DatasetID)
		return registered.DatasetID, nil
	}

	if category == "" {
		return "", fmt.Errorf("%w: article has no category", ErrUnknownCategory)
	}
	if s.opts.RequireKnownCategory {
		ok, err := s.store.CategoryExists(category)
		if err != nil {
			return "", fmt.Errorf("checking category %s: %w", category, err)
		}
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
	}

	name := knowledge.DatasetName(s.opts.DatasetPrefix, category)
	logger := log.WithFields(log.Fields{"category": category, "dataset": name})

	// Adopt a dataset left over from an earlier registry.
	datasets, err := retry(ctx, s, "list_datasets", func() ([]knowledge.Dataset, error) {
		return s.remote.ListDatasets(ctx)
	})
	if err != nil {
		return "", fmt.Errorf("listing datasets: %w", err)
	}
	var datasetID string
	createdHere := false
	for _, ds := range datasets {
		if ds.Name == name {
			datasetID = ds.ID
			break
		}
	}
	if datasetID == "" {
		ds, err := retry(ctx, s, "create_dataset", func() (*knowledge.Dataset, error) {
			return s.remote.CreateDataset(ctx, name, knowledge.Description(category))
		})
		if err != nil {
			return "", fmt.Errorf("creating dataset %s: %w", name, err)
		}
		datasetID = ds.ID
		createdHere = true
		logger.WithField("dataset_id", datasetID).Info("Created knowledge dataset")
	}

	claimed, won, err := s.store.ClaimDataset(category, datasetID, name)
	if err != nil {
		return "", err
	}
	if !won && createdHere && claimed.DatasetID != datasetID {
		logger.WithField("dataset_id", datasetID).Warn("lost dataset claim, deleting duplicate")
		if err := s.remote.DeleteDataset(ctx, datasetID); err != nil {
			logger.WithError(err).Warn("failed to delete duplicate dataset")
		}
	}

	s.datasets.Add(category, claimed.DatasetID)
	return claimed.DatasetID, nil
}

// forgetDataset drops a dataset id the remote no longer knows from the cache
// and the registry. A newer claim for the category is left in place.
func (s *Syncer) forgetDataset(category, staleID string) error {
	if id, ok := s.datasets.Peek(category); ok && id == staleID {
		s.datasets.Remove(category)
	}
	removed, err := s.store.ForgetDataset(category, staleID)
	if err != nil {
		return fmt.Errorf("forgetting dataset %s: %w", staleID, err)
	}
	if removed {
		log.WithFields(log.Fields{"category": category, "dataset_id": staleID}).Info("Forgot stale knowledge dataset")
	}
	return nil
}

// retry runs fn until it succeeds, fails permanently, or MaxAttempts is
// reached. Only knowledge.IsTransient errors are retried.
func retry[T any](ctx context.Context, s *Syncer, op string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInitialInterval
	b.MaxInterval = 30 * time.Second

	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && !knowledge.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.opts.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.WithField("op", op).WithError(err).Debugf("transient failure, retrying in %s", next)
		}),
	)
}
