package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(ChannelOutcomes.WithLabelValues("customer", "success"))
	ChannelOutcomes.WithLabelValues("customer", "success").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ChannelOutcomes.WithLabelValues("customer", "success")))
}

func TestMetricsHandlerExposesFamilies(t *testing.T) {
	DeliverabilitySpamScore.WithLabelValues("example.com").Set(30)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `deliverability_spam_score{domain="example.com"} 30`)
}
