package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/recommend", "404"))
	RecordAPIRequest("POST", "/recommend", 404, 10*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/recommend", "404"))
	if after != before+1 {
		t.Errorf("counter=%v, want %v", after, before+1)
	}
}

func TestSetStale(t *testing.T) {
	SetStale(true)
	if v := testutil.ToFloat64(ArtifactsStale); v != 1 {
		t.Errorf("stale gauge=%v, want 1", v)
	}
	SetStale(false)
	if v := testutil.ToFloat64(ArtifactsStale); v != 0 {
		t.Errorf("stale gauge=%v, want 0", v)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	PosterResolutions.WithLabelValues(OutcomeFound).Inc()
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "reelmatch_poster_resolutions_total") {
		t.Error("exposition should include poster resolution counter")
	}
}
