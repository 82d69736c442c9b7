// Package knowledge is a client for the remote knowledge-base document API
// (datasets and documents, bearer-token authenticated).
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Mark577-code/tech-blog/internal/metrics"
)

const pageLimit = 100

// Service is the set of remote operations the sync orchestrator relies on.
type Service interface {
	ListDatasets(ctx context.Context) ([]Dataset, error)
	CreateDataset(ctx context.Context, name, description string) (*Dataset, error)
	GetDataset(ctx context.Context, datasetID string) (*Dataset, error)
	DeleteDataset(ctx context.Context, datasetID string) error
	ListDocuments(ctx context.Context, datasetID string) ([]Document, error)
	CreateDocument(ctx context.Context, datasetID string, req CreateDocumentRequest) (*Document, error)
	UpdateDocument(ctx context.Context, datasetID, documentID, text string) (*Document, error)
	DeleteDocument(ctx context.Context, datasetID, documentID string) error
}

// Dataset is a named document collection.
type Dataset struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	IndexingTechnique string `json:"indexing_technique"`
	DocumentCount     int    `json:"document_count"`
}

// Document is a single indexed text unit inside a dataset.
type Document struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	DataSourceType string `json:"data_source_type"`
	IndexingStatus string `json:"indexing_status"`
	Batch          string `json:"batch"`
}

// CreateDocumentRequest is the body of a create-by-text call.
type CreateDocumentRequest struct {
	Name              string       `json:"name"`
	Text              string       `json:"text"`
	IndexingTechnique string       `json:"indexing_technique"`
	ProcessRule       *ProcessRule `json:"process_rule,omitempty"`
}

type ProcessRule struct {
	Mode  string `json:"mode"`
	Rules Rules  `json:"rules"`
}

type Rules struct {
	PreProcessingRules []PreProcessingRule `json:"pre_processing_rules"`
	Segmentation       Segmentation        `json:"segmentation"`
}

type PreProcessingRule struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

type Segmentation struct {
	Separator string `json:"separator"`
	MaxTokens int    `json:"max_tokens"`
}

// APIError is returned for every non-2xx response.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("knowledge API error (%s): %d %s", e.Operation, e.StatusCode, strings.TrimSpace(e.Body))
}

// IsTransient reports whether err is worth retrying: 5xx, 408 and 429
// responses and network failures. Cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		code := apiErr.StatusCode
		return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// DatasetName is the remote dataset name used for a category.
func DatasetName(prefix, category string) string {
	return prefix + "-" + category
}

// Options configures a Client.
type Options struct {
	BaseURL           string
	APIKey            string
	IndexingTechnique string
	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client talks to the remote API. It never retries; every call is a single attempt.
type Client struct {
	baseURL           string
	apiKey            string
	indexingTechnique string
	client            *http.Client
	limiter           *rate.Limiter
}

// NewClient creates a client for {BaseURL}/v1.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	technique := opts.IndexingTechnique
	if technique == "" {
		technique = "high_quality"
	}
	return &Client{
		baseURL:           strings.TrimRight(opts.BaseURL, "/") + "/v1",
		apiKey:            opts.APIKey,
		indexingTechnique: technique,
		client:            httpClient,
		limiter:           rate.NewLimiter(limit, 1),
	}
}

// IsConfigured checks if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

type listResponse[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

type documentResponse struct {
	Document Document `json:"document"`
}

// ListDatasets returns every dataset visible to the API key.
func (c *Client) ListDatasets(ctx context.Context) ([]Dataset, error) {
	return listAll[Dataset](ctx, c, "list_datasets", "/datasets")
}

// CreateDataset creates an empty dataset.
func (c *Client) CreateDataset(ctx context.Context, name, description string) (*Dataset, error) {
	body := map[string]any{
		"name":               name,
		"description":        description,
		"indexing_technique": c.indexingTechnique,
		"permission":         "only_me",
	}
	var ds Dataset
	if err := c.do(ctx, "create_dataset", http.MethodPost, "/datasets", body, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// GetDataset fetches one dataset.
func (c *Client) GetDataset(ctx context.Context, datasetID string) (*Dataset, error) {
	var ds Dataset
	if err := c.do(ctx, "get_dataset", http.MethodGet, "/datasets/"+url.PathEscape(datasetID), nil, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// DeleteDataset removes a dataset and everything in it.
func (c *Client) DeleteDataset(ctx context.Context, datasetID string) error {
	return c.do(ctx, "delete_dataset", http.MethodDelete, "/datasets/"+url.PathEscape(datasetID), nil, nil)
}

// GetOrCreateDatasetByCategory returns the dataset named prefix-category,
// creating it when absent. Concurrent callers may both create; callers
// that need one dataset per category must serialize around this.
func (c *Client) GetOrCreateDatasetByCategory(ctx context.Context, prefix, category string) (*Dataset, error) {
	name := DatasetName(prefix, category)
	datasets, err := c.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}
	for _, ds := range datasets {
		if ds.Name == name {
			return &ds, nil
		}
	}
	return c.CreateDataset(ctx, name, Description(category))
}

// Description is the description given to a category dataset.
func Description(category string) string {
	return fmt.Sprintf("All blog articles in the %s category, used by the AI assistant to answer related questions.", category)
}

// ListDocuments returns every document in a dataset.
func (c *Client) ListDocuments(ctx context.Context, datasetID string) ([]Document, error) {
	return listAll[Document](ctx, c, "list_documents", "/datasets/"+url.PathEscape(datasetID)+"/documents")
}

// CreateDocument adds a text document to a dataset.
func (c *Client) CreateDocument(ctx context.Context, datasetID string, req CreateDocumentRequest) (*Document, error) {
	var resp documentResponse
	path := "/datasets/" + url.PathEscape(datasetID) + "/documents"
	if err := c.do(ctx, "create_document", http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	if resp.Document.ID == "" {
		return nil, fmt.Errorf("create document: response carried no document id")
	}
	return &resp.Document, nil
}

// UpdateDocument replaces a document's text.
func (c *Client) UpdateDocument(ctx context.Context, datasetID, documentID, text string) (*Document, error) {
	var resp documentResponse
	path := "/datasets/" + url.PathEscape(datasetID) + "/documents/" + url.PathEscape(documentID)
	if err := c.do(ctx, "update_document", http.MethodPatch, path, map[string]string{"text": text}, &resp); err != nil {
		return nil, err
	}
	if resp.Document.ID == "" {
		resp.Document.ID = documentID
	}
	return &resp.Document, nil
}

// DeleteDocument removes a document from a dataset.
func (c *Client) DeleteDocument(ctx context.Context, datasetID, documentID string) error {
	path := "/datasets/" + url.PathEscape(datasetID) + "/documents/" + url.PathEscape(documentID)
	return c.do(ctx, "delete_document", http.MethodDelete, path, nil, nil)
}

func listAll[T any](ctx context.Context, c *Client, op, path string) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		var resp listResponse[T]
		p := fmt.Sprintf("%s?page=%d&limit=%d", path, page, pageLimit)
		if err := c.do(ctx, op, http.MethodGet, p, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)
		if !resp.HasMore || len(resp.Data) == 0 {
			return all, nil
		}
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordRemote(op, 0, time.Since(start))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	metrics.RecordRemote(op, resp.StatusCode, time.Since(start))
	log.WithFields(log.Fields{"op": op, "status": resp.StatusCode}).Debug("knowledge request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}
