package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ParticipantAdded()
	c.ParticipantAdded()
	c.SubmissionRejected("duplicate")
	c.ParticipantsImported(3, 2)
	c.ArtifactCompiled(4)
	c.StreamResubscribed("participants")

	assert.Equal(t, float64(2), testutil.ToFloat64(c.participantsAdded))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.submissionsRejected.WithLabelValues("duplicate")))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.importRows.WithLabelValues("imported")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.importRows.WithLabelValues("skipped")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.artifactsCompiled))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.streamResubscribes.WithLabelValues("participants")))
}

func TestMiddleware_RecordsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	h := Middleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(c.httpStatus.WithLabelValues("409")))
}

func TestHandler_Exposes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ParticipantAdded()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "vcfgather_participants_added_total 1"))
}
