package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL, APIKey: "test-key", Timeout: 5 * time.Second})
}

func TestClientSendsBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer header, got %q", got)
		}
		if r.URL.Path != "/v1/datasets/ds-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"id":"ds-1","name":"blog-articles-tech"}`)
	})

	ds, err := c.GetDataset(context.Background(), "ds-1")
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if ds.Name != "blog-articles-tech" {
		t.Errorf("unexpected dataset %+v", ds)
	}
}

func TestListDatasetsFollowsHasMore(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{"data":[{"id":"a","name":"one"}],"has_more":true}`)
		case "2":
			fmt.Fprint(w, `{"data":[{"id":"b","name":"two"}],"has_more":false}`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	datasets, err := c.ListDatasets(context.Background())
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	if len(datasets) != 2 || datasets[1].ID != "b" {
		t.Errorf("expected two datasets across pages, got %+v", datasets)
	}
}

func TestNon2xxReturnsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":"invalid_param"}`)
	})

	_, err := c.CreateDataset(context.Background(), "x", "y")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || !strings.Contains(apiErr.Body, "invalid_param") {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if IsTransient(err) {
		t.Error("400 should not be transient")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"500", &APIError{StatusCode: 500}, true},
		{"503 wrapped", fmt.Errorf("sync: %w", &APIError{StatusCode: 503}), true},
		{"429", &APIError{StatusCode: 429}, true},
		{"404", &APIError{StatusCode: 404}, false},
		{"canceled", fmt.Errorf("x: %w", context.Canceled), false},
		{"plain", errors.New("bad payload"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(Options{BaseURL: base, APIKey: "k", Timeout: time.Second})
	_, err := c.ListDatasets(context.Background())
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if !IsTransient(err) {
		t.Errorf("expected connection failure to be transient: %v", err)
	}
}

func TestCreateDocumentBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/datasets/ds-1/documents" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req CreateDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.Name != "Title" || req.IndexingTechnique != "high_quality" {
			t.Errorf("unexpected request %+v", req)
		}
		if req.ProcessRule == nil || req.ProcessRule.Rules.Segmentation.MaxTokens != 1000 {
			t.Errorf("expected process rule, got %+v", req.ProcessRule)
		}
		fmt.Fprint(w, `{"document":{"id":"doc-9","name":"Title"},"batch":"b1"}`)
	})

	doc, err := c.CreateDocument(context.Background(), "ds-1", CreateDocumentRequest{
		Name:              "Title",
		Text:              "body",
		IndexingTechnique: "high_quality",
		ProcessRule: &ProcessRule{
			Mode:  "custom",
			Rules: Rules{Segmentation: Segmentation{Separator: "\n\n", MaxTokens: 1000}},
		},
	})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if doc.ID != "doc-9" {
		t.Errorf("expected doc-9, got %s", doc.ID)
	}
}

func TestUpdateAndDeleteDocument(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch r.Method {
		case http.MethodPatch:
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"text":"new text"`) {
				t.Errorf("unexpected patch body %s", body)
			}
			fmt.Fprint(w, `{"document":{"id":"doc-1"}}`)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	doc, err := c.UpdateDocument(context.Background(), "ds-1", "doc-1", "new text")
	if err != nil || doc.ID != "doc-1" {
		t.Fatalf("UpdateDocument: %v %+v", err, doc)
	}
	if err := c.DeleteDocument(context.Background(), "ds-1", "doc-1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []string{"PATCH /v1/datasets/ds-1/documents/doc-1", "DELETE /v1/datasets/ds-1/documents/doc-1"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestGetOrCreateDatasetByCategory(t *testing.T) {
	var created atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, `{"data":[{"id":"ds-life","name":"blog-articles-life"}],"has_more":false}`)
		case http.MethodPost:
			created.Add(1)
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			fmt.Fprintf(w, `{"id":"ds-new","name":%q}`, body["name"])
		}
	})

	ds, err := c.GetOrCreateDatasetByCategory(context.Background(), "blog-articles", "life")
	if err != nil || ds.ID != "ds-life" {
		t.Fatalf("expected existing dataset, got %+v %v", ds, err)
	}
	if created.Load() != 0 {
		t.Error("expected no create for existing dataset")
	}

	ds, err = c.GetOrCreateDatasetByCategory(context.Background(), "blog-articles", "tech")
	if err != nil || ds.Name != "blog-articles-tech" {
		t.Fatalf("expected created dataset, got %+v %v", ds, err)
	}
	if created.Load() != 1 {
		t.Errorf("expected one create, got %d", created.Load())
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"x"}`)
	}))
	defer srv.Close()
	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k", RequestsPerSecond: 0.001})

	if _, err := c.GetDataset(context.Background(), "x"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.GetDataset(ctx, "x"); err == nil {
		t.Error("expected limiter to refuse within deadline")
	}
}
