package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFilterResult(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.FilterResults.WithLabelValues("renounced", "fail"))
	RecordFilterResult("renounced", false, 0.01)
	after := testutil.ToFloat64(DefaultMetrics.FilterResults.WithLabelValues("renounced", "fail"))
	assert.Equal(t, before+1, after)
}

func TestUpdateAdmission(t *testing.T) {
	UpdateAdmission(2, 5)
	assert.Equal(t, 2.0, testutil.ToFloat64(DefaultMetrics.AdmissionActive))
	assert.Equal(t, 5.0, testutil.ToFloat64(DefaultMetrics.AdmissionWaiting))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordPoolDetected("raydium")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "solana_pool_sniper_detection_pools_detected_total"))
}
