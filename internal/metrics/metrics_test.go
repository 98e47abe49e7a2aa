package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppMetrics_Exposed(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)

	m.FramesTotal.WithLabelValues("notice").Add(3)
	m.CommandTotal.WithLabelValues("get power", "ok").Inc()
	m.TagsReadTotal.Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("notice")))

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `reader_frames_total{type="notice"} 3`))
	assert.Contains(t, body, "reader_tags_read_total 1")
}
