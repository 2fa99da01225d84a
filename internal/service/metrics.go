package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts tilesheet mutations. A nil *Metrics records nothing.
type Metrics struct {
	tilesInserted *prometheus.CounterVec
	saves         *prometheus.CounterVec
}

// NewMetrics registers the tilesheet counters on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		tilesInserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tilesheet_tiles_inserted_total",
				Help: "Total number of tile images written into tilesheets.",
			},
			[]string{"sheet"},
		),
		saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tilesheet_saves_total",
				Help: "Total number of tilesheet save attempts by result.",
			},
			[]string{"sheet", "result"},
		),
	}
	for _, c := range []prometheus.Collector{m.tilesInserted, m.saves} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) tileInserted(sheet string) {
	if m == nil {
		return
	}
	m.tilesInserted.WithLabelValues(sheet).Inc()
}

func (m *Metrics) saved(sheet string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.saves.WithLabelValues(sheet, result).Inc()
}
