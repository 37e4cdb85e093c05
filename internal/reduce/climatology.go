package reduce

import (
	"go.ngs.io/climate-diag/internal/cftime"
	"go.ngs.io/climate-diag/internal/domain"
)

// Climatology averages the values of ts that fall in the inclusive year range
// tr by calendar month. The result maps month (1..12) to mean; months with no
// data are absent.
func Climatology(ts domain.TimeSeries, tr TimeRange) domain.TimeSeries {
	var sums, counts [13]float64
	for c, v := range ts {
		if !tr.Contains(c) {
			continue
		}
		m := cftime.Month(c)
		sums[m] += v
		counts[m]++
	}
	out := make(domain.TimeSeries, 12)
	for m := 1; m <= 12; m++ {
		if counts[m] > 0 {
			out[float64(m)] = sums[m] / counts[m]
		}
	}
	return out
}
