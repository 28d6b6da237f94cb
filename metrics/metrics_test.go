package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/requests/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := counterValue(t, httpRequests.WithLabelValues("GET", "/api/requests/{id}", "404"))
	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/requests/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}
	after := counterValue(t, httpRequests.WithLabelValues("GET", "/api/requests/{id}", "404"))
	assert.Equal(t, 2.0, after-before)
}

func TestRecordSlotRequestDeleted(t *testing.T) {
	deleted := counterValue(t, slotRequestsDeleted)
	refunded := counterValue(t, tokensRefunded)

	RecordSlotRequestDeleted(6)
	RecordSlotRequestDeleted(0)

	assert.Equal(t, 2.0, counterValue(t, slotRequestsDeleted)-deleted)
	assert.Equal(t, 6.0, counterValue(t, tokensRefunded)-refunded)
}

func TestHandlerExposesBookingSeries(t *testing.T) {
	RecordSlotRequestCreated("pending")
	RecordDecision(true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `slot_engine_booking_slot_requests_created_total{status="pending"}`)
	assert.Contains(t, body, `slot_engine_booking_slot_request_decisions_total{decision="approved"}`)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}
