package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordConversion(t *testing.T) {
	ok := testutil.ToFloat64(ConversionsTotal.WithLabelValues("ok"))
	cached := testutil.ToFloat64(ConversionsTotal.WithLabelValues("cached"))

	RecordConversion(false, 0.2, 2, 4096)
	RecordConversion(true, 0, 0, 4096)

	assert.Equal(t, ok+1, testutil.ToFloat64(ConversionsTotal.WithLabelValues("ok")))
	assert.Equal(t, cached+1, testutil.ToFloat64(ConversionsTotal.WithLabelValues("cached")))
}

func TestRecordError(t *testing.T) {
	failed := testutil.ToFloat64(ConversionsTotal.WithLabelValues("failed"))
	RecordError("convert", "timeout")
	RecordError("clipboard", "busy")

	assert.Equal(t, failed+1, testutil.ToFloat64(ConversionsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ErrorsTotal.WithLabelValues("clipboard", "busy")))
}

func TestListeningGauge(t *testing.T) {
	SetListening(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(Listening))
	SetListening(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(Listening))
}

func TestHandler(t *testing.T) {
	RecordSave(true)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "svglive_saves_total"))
}
