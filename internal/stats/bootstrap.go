package stats

import (
	"math/rand/v2"
)

// ConfidenceInterval is the result of a bootstrap confidence interval
// computation over per-run scores, used in multi-run variance mode to
// quantify evaluation noise.
type ConfidenceInterval struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Mean            float64 `json:"mean"`
	ConfidenceLevel float64 `json:"confidence_level"`
	Resamples       int     `json:"resamples"`
}

// defaultResamples is the number of bootstrap resamples.
const defaultResamples = 10000

// BootstrapCI computes a percentile-method bootstrap confidence interval
// over the given scores. confidenceLevel should be in (0, 1), e.g. 0.95.
// With fewer than 2 data points the interval collapses to the mean.
func BootstrapCI(scores []float64, confidenceLevel float64) ConfidenceInterval {
	return BootstrapCIWithSeed(scores, confidenceLevel, -1)
}

// BootstrapCIWithSeed is like BootstrapCI but accepts a seed for
// reproducibility. A negative seed uses a non-deterministic source.
func BootstrapCIWithSeed(scores []float64, confidenceLevel float64, seed int64) ConfidenceInterval {
	m := Mean(scores)
	if len(scores) < 2 {
		return ConfidenceInterval{
			Lower:           m,
			Upper:           m,
			Mean:            m,
			ConfidenceLevel: confidenceLevel,
		}
	}

	means := resampleMeans(scores, defaultResamples, seed)
	tail := (1.0 - confidenceLevel) / 2.0 * 100.0

	return ConfidenceInterval{
		Lower:           Percentile(means, tail),
		Upper:           Percentile(means, 100.0-tail),
		Mean:            m,
		ConfidenceLevel: confidenceLevel,
		Resamples:       defaultResamples,
	}
}

// resampleMeans draws count resamples of scores with replacement and
// returns the mean of each.
func resampleMeans(scores []float64, count int, seed int64) []float64 {
	var rng *rand.Rand
	if seed >= 0 {
		rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	n := len(scores)
	means := make([]float64, count)
	for i := range means {
		sum := 0.0
		for j := 0; j < n; j++ {
			sum += scores[rng.IntN(n)]
		}
		means[i] = sum / float64(n)
	}
	return means
}
