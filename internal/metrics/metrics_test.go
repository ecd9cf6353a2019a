package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	Reservations.WithLabelValues("seat", OutcomeConfirmed).Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `campus_reservation_coordinator_reservations_total{kind="seat",outcome="confirmed"}`)
}

func TestTimeObserves(t *testing.T) {
	before := testutil.CollectAndCount(LedgerSeconds)
	Time(LedgerSeconds.WithLabelValues("test-op"))()
	assert.Equal(t, before+1, testutil.CollectAndCount(LedgerSeconds))
}
