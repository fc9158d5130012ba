package metrics

import "github.com/caseops/opsboard/internal/domain"

// BuildSeries turns newest-first buckets into chronological fixed-length
// arrays. Short histories are left-padded with the current snapshot's values
// so missing data flat-lines backward from "now" rather than showing zeros.
// Every output slice has exactly samples entries.
func BuildSeries(buckets []domain.TimeBucket, samples int, current domain.MetricsSnapshot) domain.MetricSeries {
	if samples < 1 {
		samples = 1
	}
	if len(buckets) > samples {
		buckets = buckets[:samples]
	}
	series := domain.MetricSeries{
		Users:        make([]int, samples),
		Uptime:       make([]float64, samples),
		Alerts:       make([]int, samples),
		Sessions:     make([]int, samples),
		StorageOK:    make([]bool, samples),
		AuthOK:       make([]bool, samples),
		APILatencyMS: make([]float64, samples),
	}
	pad := samples - len(buckets)
	for i := 0; i < pad; i++ {
		setPoint(&series, i, current)
	}
	// buckets arrive newest-first; walk them backwards to restore
	// chronological order.
	for i := 0; i < len(buckets); i++ {
		setPoint(&series, pad+i, buckets[len(buckets)-1-i].Snapshot())
	}
	return series
}

func setPoint(series *domain.MetricSeries, i int, snapshot domain.MetricsSnapshot) {
	series.Users[i] = snapshot.Users
	series.Uptime[i] = snapshot.UptimePct
	series.Alerts[i] = snapshot.AlertCount
	series.Sessions[i] = snapshot.Sessions
	series.StorageOK[i] = snapshot.StorageOK
	series.AuthOK[i] = snapshot.AuthOK
	series.APILatencyMS[i] = snapshot.APILatencyMS
}
