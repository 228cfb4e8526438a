package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveTask(t *testing.T) {
	okBefore := testutil.ToFloat64(TasksTotal.WithLabelValues("test_op", "ok"))
	errBefore := testutil.ToFloat64(TasksTotal.WithLabelValues("test_op", "error"))

	ObserveTask("test_op", time.Now(), nil)
	ObserveTask("test_op", time.Now(), errors.New("boom"))
	ObserveTask("test_op", time.Now(), nil)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(TasksTotal.WithLabelValues("test_op", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(TasksTotal.WithLabelValues("test_op", "error")))
}

func TestCacheRowsGauge(t *testing.T) {
	CacheRows.Set(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(CacheRows))
}
