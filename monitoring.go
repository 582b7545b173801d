package hashcol

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus collectors for attribute traffic. A nil *Metrics
// records nothing.
type Metrics struct {
	AttributeOps      *prometheus.CounterVec
	CodecApplications *prometheus.CounterVec
	DirtyMarks        *prometheus.CounterVec
	Materializations  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg, if non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AttributeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hashcol_attribute_ops_total",
				Help: "Attribute operations routed through records",
			},
			[]string{"model", "op"},
		),
		CodecApplications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hashcol_codec_applications_total",
				Help: "Values converted by a codec",
			},
			[]string{"codec", "direction"},
		),
		DirtyMarks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hashcol_dirty_marks_total",
				Help: "Effective changes of the hash column",
			},
			[]string{"model"},
		),
		Materializations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hashcol_accessor_materializations_total",
				Help: "Virtual attribute accessors bound on first use",
			},
			[]string{"model"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.AttributeOps, m.CodecApplications, m.DirtyMarks, m.Materializations)
	}
	return m
}

func (m *Metrics) attributeOp(model, op string) {
	if m == nil {
		return
	}
	m.AttributeOps.WithLabelValues(model, op).Inc()
}

func (m *Metrics) codecApplied(codec string, dir direction) {
	if m == nil {
		return
	}
	m.CodecApplications.WithLabelValues(codec, dir.String()).Inc()
}

func (m *Metrics) dirtyMarked(model string) {
	if m == nil {
		return
	}
	m.DirtyMarks.WithLabelValues(model).Inc()
}

func (m *Metrics) materialized(model string) {
	if m == nil {
		return
	}
	m.Materializations.WithLabelValues(model).Inc()
}
