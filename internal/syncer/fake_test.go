package syncer

import (
	"context"
	"fmt"
	"sync"

	"github.com/Mark577-code/tech-blog/internal/knowledge"
)

// fakeRemote is an in-memory knowledge.Service.
type fakeRemote struct {
	mu        sync.Mutex
	nextID    int
	datasets  map[string]*knowledge.Dataset
	documents map[string]map[string]string // dataset id -> document id -> text
	calls     map[string]int

	// Hooks return an error to fail the call; nil lets it through.
	onCreateDocument func(datasetID string, req knowledge.CreateDocumentRequest) error
	onUpdateDocument func(documentID string) error
	onDeleteDocument func(documentID string) error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		datasets:  map[string]*knowledge.Dataset{},
		documents: map[string]map[string]string{},
		calls:     map[string]int{},
	}
}

func (f *fakeRemote) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeRemote) datasetNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, ds := range f.datasets {
		names = append(names, ds.Name)
	}
	return names
}

func (f *fakeRemote) documentText(datasetID, documentID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.documents[datasetID][documentID]
	return text, ok
}

func (f *fakeRemote) ListDatasets(ctx context.Context) ([]knowledge.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list_datasets"]++
	var out []knowledge.Dataset
	for _, ds := range f.datasets {
		out = append(out, *ds)
	}
	return out, nil
}

func (f *fakeRemote) CreateDataset(ctx context.Context, name, description string) (*knowledge.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create_dataset"]++
	ds := &knowledge.Dataset{ID: f.id("ds"), Name: name, Description: description}
	f.datasets[ds.ID] = ds
	f.documents[ds.ID] = map[string]string{}
	return ds, nil
}

func (f *fakeRemote) GetDataset(ctx context.Context, datasetID string) (*knowledge.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["get_dataset"]++
	ds, ok := f.datasets[datasetID]
	if !ok {
		return nil, &knowledge.APIError{StatusCode: 404, Body: "dataset not found"}
	}
	return ds, nil
}

func (f *fakeRemote) DeleteDataset(ctx context.Context, datasetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["delete_dataset"]++
	delete(f.datasets, datasetID)
	delete(f.documents, datasetID)
	return nil
}

func (f *fakeRemote) ListDocuments(ctx context.Context, datasetID string) ([]knowledge.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list_documents"]++
	var out []knowledge.Document
	for id := range f.documents[datasetID] {
		out = append(out, knowledge.Document{ID: id})
	}
	return out, nil
}

func (f *fakeRemote) CreateDocument(ctx context.Context, datasetID string, req knowledge.CreateDocumentRequest) (*knowledge.Document, error) {
	f.mu.Lock()
	f.calls["create_document"]++
	hook := f.onCreateDocument
	f.mu.Unlock()
	if hook != nil {
		if err := hook(datasetID, req); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	docs, ok := f.documents[datasetID]
	if !ok {
		return nil, &knowledge.APIError{StatusCode: 404, Body: "dataset not found"}
	}
	doc := &knowledge.Document{ID: f.id("doc"), Name: req.Name}
	docs[doc.ID] = req.Text
	return doc, nil
}

func (f *fakeRemote) UpdateDocument(ctx context.Context, datasetID, documentID, text string) (*knowledge.Document, error) {
	f.mu.Lock()
	f.calls["update_document"]++
	hook := f.onUpdateDocument
	f.mu.Unlock()
	if hook != nil {
		if err := hook(documentID); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.documents[datasetID][documentID]; !ok {
		return nil, &knowledge.APIError{StatusCode: 404, Body: "document not found"}
	}
	f.documents[datasetID][documentID] = text
	return &knowledge.Document{ID: documentID}, nil
}

func (f *fakeRemote) DeleteDocument(ctx context.Context, datasetID, documentID string) error {
	f.mu.Lock()
	f.calls["delete_document"]++
	hook := f.onDeleteDocument
	f.mu.Unlock()
	if hook != nil {
		if err := hook(documentID); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.documents[datasetID], documentID)
	return nil
}
