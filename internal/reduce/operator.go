package reduce

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"go.ngs.io/climate-diag/internal/domain"
	"go.ngs.io/climate-diag/internal/ensemble"
)

// Operator names the statistic used to collapse a dimension.
type Operator string

// Supported collapse operators.
const (
	OpMean   Operator = "mean"
	OpMedian Operator = "median"
	OpMin    Operator = "min"
	OpMax    Operator = "max"
	OpStdDev Operator = "std_dev"
	OpSum    Operator = "sum"
)

// ParseOperator validates an operator name. An empty name selects the mean.
func ParseOperator(name string) (Operator, error) {
	op := Operator(strings.ToLower(strings.TrimSpace(name)))
	switch op {
	case "":
		return OpMean, nil
	case OpMean, OpMedian, OpMin, OpMax, OpStdDev, OpSum:
		return op, nil
	default:
		return "", &domain.ConfigError{
			Setting: "operator",
			Value:   name,
			Reason:  "expected one of mean, median, min, max, std_dev, sum",
		}
	}
}

// Apply reduces values (with optional weights) to one scalar. An empty
// input yields NaN.
func (op Operator) Apply(values, weights []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	if len(weights) != len(values) {
		weights = nil
	}
	switch op {
	case OpMedian:
		return ensemble.Percentile(values, 50)
	case OpMin:
		return floats.Min(values)
	case OpMax:
		return floats.Max(values)
	case OpStdDev:
		if len(values) < 2 {
			return 0
		}
		return stat.StdDev(values, weights)
	case OpSum:
		return floats.Sum(values)
	default:
		return stat.Mean(values, weights)
	}
}
