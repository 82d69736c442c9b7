package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesRecordedSeries(t *testing.T) {
	RecordSync("created", 120*time.Millisecond)
	RecordRemote("create_document", 200, 40*time.Millisecond)
	RecordRemote("list_datasets", 0, time.Second)
	ImportedArticles.WithLabelValues("Go Blog").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)

	assert.Contains(t, out, `techblog_knowledge_sync_outcomes_total{outcome="created"}`)
	assert.Contains(t, out, "techblog_knowledge_sync_duration_seconds_bucket")
	assert.Contains(t, out, `techblog_knowledge_remote_requests_total{code="200",operation="create_document"}`)
	assert.Contains(t, out, `techblog_knowledge_remote_requests_total{code="error",operation="list_datasets"}`)
	assert.Contains(t, out, `techblog_imported_articles_total{feed="Go Blog"}`)
}
