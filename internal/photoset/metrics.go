package photoset

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Sync result label values.
const (
	resultOK       = "ok"
	resultUpToDate = "up_to_date"
	resultFailed   = "failed"
)

// Metrics holds the Prometheus collectors updated by a Cache.
type Metrics struct {
	// Syncs counts sync attempts by result: ok, up_to_date or failed
	Syncs *prometheus.CounterVec

	// Downloads counts images fetched by warm passes
	Downloads prometheus.Counter

	// DownloadBytes sums the size of fetched images
	DownloadBytes prometheus.Counter

	// SnapshotPhotos is the photo count of the current snapshot, per photoset
	SnapshotPhotos *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Syncs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnier_syncs_total",
				Help: "Total number of photoset sync attempts",
			},
			[]string{"result"},
		),
		Downloads: f.NewCounter(prometheus.CounterOpts{
			Name: "funnier_downloads_total",
			Help: "Total number of images downloaded into the blob cache",
		}),
		DownloadBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "funnier_download_bytes_total",
			Help: "Total bytes of images downloaded into the blob cache",
		}),
		SnapshotPhotos: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "funnier_snapshot_photos",
				Help: "Number of photos in the cached snapshot",
			},
			[]string{"photoset"},
		),
	}
}

// SyncCount returns the number of syncs recorded with the given result.
func (m *Metrics) SyncCount(result string) int {
	c, err := m.Syncs.GetMetricWithLabelValues(result)
	if err != nil {
		return 0
	}
	return int(counterValue(c))
}

// DownloadCount returns the number of images downloaded.
func (m *Metrics) DownloadCount() int {
	return int(counterValue(m.Downloads))
}

func counterValue(c prometheus.Counter) float64 {
	pb := &dto.Metric{}
	if err := c.Write(pb); err != nil {
		return 0
	}
	return pb.GetCounter().GetValue()
}
