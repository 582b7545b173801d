package hashcol

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testutilCount(vec *prometheus.CounterVec, labels ...string) float64 {
	return testutil.ToFloat64(vec.WithLabelValues(labels...))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m := newPostModel(t, func(opt *ModelOptions) { opt.Metrics = metrics })

	rec := loadPost(t, m, map[string]any{"at": "2024-01-31T23:59:59.123Z"})
	_, err := rec.Call("at")
	ok(t, err)
	_, err = rec.Call("at_changed?")
	ok(t, err)
	deepEqual(t, testutilCount(metrics.Materializations, "Post"), 1.0)
	deepEqual(t, testutilCount(metrics.CodecApplications, "datetime", "load"), 1.0)

	ok(t, rec.Write("name", "A"))
	// second write is not a change
	ok(t, rec.Write("name", "A"))
	deepEqual(t, testutilCount(metrics.DirtyMarks, "Post"), 1.0)
	deepEqual(t, testutilCount(metrics.AttributeOps, "Post", "write"), 2.0)

	if n := must(testutil.GatherAndCount(reg)); n == 0 {
		t.Errorf("GatherAndCount = 0, wanted metrics")
	}
}

func TestMetrics_nil(t *testing.T) {
	var metrics *Metrics
	metrics.attributeOp("Post", "read")
	metrics.dirtyMarked("Post")
}
