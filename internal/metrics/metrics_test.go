package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveStore(t *testing.T) {
	before := testutil.CollectAndCount(StoreOperationDuration)

	ObserveStore("test_op", time.Now(), nil)
	ObserveStore("test_op", time.Now(), errors.New("boom"))

	assert.Equal(t, before+2, testutil.CollectAndCount(StoreOperationDuration))
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(PasteRetrievals.WithLabelValues("served"))
	PasteRetrievals.WithLabelValues("served").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PasteRetrievals.WithLabelValues("served")))
}

func TestHandler(t *testing.T) {
	PastesCreated.Inc()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "npaste_pastes_created_total"))
}
