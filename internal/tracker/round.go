package tracker

import (
	"math"

	"github.com/cockroachdb/apd/v3"
)

var roundCtx = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(34)
	c.Rounding = apd.RoundHalfUp
	return c
}()

// round2 rounds v half-up to two decimal places in decimal arithmetic, so
// 0.125 becomes 0.13 rather than drifting on its binary representation.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	var d, out apd.Decimal
	if _, err := d.SetFloat64(v); err != nil {
		return math.Round(v*100) / 100
	}
	if _, err := roundCtx.Quantize(&out, &d, -2); err != nil {
		return math.Round(v*100) / 100
	}
	f, err := out.Float64()
	if err != nil {
		return math.Round(v*100) / 100
	}
	return f
}
