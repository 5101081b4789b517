// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"fmt"
	"io"
	"log"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Params is one direction's background model: a log-variance scale
// model for aggregate exceedance profiles, the standard deviation of
// single-marker aggregate jumps under the null, and the retained
// per-permutation maxima used for percentile lookups. The two
// directions are estimated independently and must never be mixed.
type Params struct {
	Direction int     // +1 amplification, -1 deletion
	Threshold float64 // log-ratio threshold the model was built at
	Intercept float64 // log-variance of windowed aggregate means at scale 1
	Slope     float64 // d log-variance / d log-scale
	Sigma     float64 // std dev of adjacent-marker aggregate jumps under the null
	NullMax   []float64
	Samples   int
	Markers   int
}

// Estimator fits the background null model. One invocation populates
// both directions.
type Estimator interface {
	Estimate(m *mat.Dense, agg *MarkerAgg, gainThreshold, lossThreshold float64) (gain, loss *Params, err error)
}

// permEstimator is the default Estimator: a cyclic-shift permutation
// null. Each permutation rotates every sample's exceedance profile by
// an independent offset within each chromosome, preserving the serial
// correlation of the profile while breaking cross-sample alignment.
// The variance of windowed aggregate means across a ladder of window
// widths is fitted log-log with a Gaussian GLM.
type permEstimator struct {
	Permutations int
	Seed         uint64
	Workers      int
}

var scaleFitConfig = &glm.Config{
	Family:         glm.NewFamily(glm.GaussianFamily),
	FitMethod:      "IRLS",
	ConcurrentIRLS: 1000,
	Log:            log.New(io.Discard, "", 0),
}

func (e *permEstimator) Estimate(m *mat.Dense, agg *MarkerAgg, gainThreshold, lossThreshold float64) (*Params, *Params, error) {
	if e.Permutations < 1 {
		return nil, nil, fmt.Errorf("permutation count %d must be >= 1", e.Permutations)
	}
	gain, err := e.estimateDirection(m, agg, gainThreshold, 1)
	if err != nil {
		return nil, nil, err
	}
	loss, err := e.estimateDirection(m, agg, lossThreshold, -1)
	if err != nil {
		return nil, nil, err
	}
	return gain, loss, nil
}

func (e *permEstimator) estimateDirection(m *mat.Dense, agg *MarkerAgg, threshold float64, direction int) (*Params, error) {
	nrow, ncol := m.Dims()
	profiles := make([][]float64, ncol)
	for j := range profiles {
		profiles[j] = exceedance(m, j, threshold, direction)
	}
	scales := scaleLadder(agg)

	workers := e.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	var (
		mtx      sync.Mutex
		jumpSS   float64
		jumpN    int
		scaleVar = make([]float64, len(scales)) // sum over permutations of windowed-mean variance
		scaleN   = make([]int, len(scales))
		nullMax  = make([]float64, 0, e.Permutations)
	)
	wk := throttle{Max: workers}
	for p := 0; p < e.Permutations; p++ {
		p := p
		wk.Go(func() error {
			rng := rand.New(rand.NewSource(e.Seed + uint64(p)*0x9e3779b97f4a7c15))
			ap := permutedAggregate(profiles, agg, rng)
			ss, n := jumpStats(ap, agg)
			localVar := make([]float64, len(scales))
			localOK := make([]bool, len(scales))
			for si, w := range scales {
				if v, ok := windowedVariance(ap, agg, w); ok {
					localVar[si] = v
					localOK[si] = true
				}
			}
			maxdev := maxDeviation(ap)

			mtx.Lock()
			jumpSS += ss
			jumpN += n
			for si := range scales {
				if localOK[si] {
					scaleVar[si] += localVar[si]
					scaleN[si]++
				}
			}
			nullMax = append(nullMax, maxdev)
			mtx.Unlock()
			return nil
		})
	}
	if err := wk.Wait(); err != nil {
		return nil, err
	}

	sigma := 0.0
	if jumpN > 0 {
		sigma = math.Sqrt(jumpSS / float64(jumpN))
	}
	var logScale, logVar []float64
	for si, w := range scales {
		if scaleN[si] == 0 {
			continue
		}
		v := scaleVar[si] / float64(scaleN[si])
		if v <= 0 {
			continue
		}
		logScale = append(logScale, math.Log(float64(w)))
		logVar = append(logVar, math.Log(v))
	}
	intercept, slope := math.Log(math.Max(sigma*sigma, 1e-12)), 0.0
	if len(logVar) >= 2 {
		var err error
		intercept, slope, err = fitScaleModel(logScale, logVar)
		if err != nil {
			return nil, err
		}
	}
	sort.Float64s(nullMax)
	return &Params{
		Direction: direction,
		Threshold: threshold,
		Intercept: intercept,
		Slope:     slope,
		Sigma:     sigma,
		NullMax:   nullMax,
		Samples:   ncol,
		Markers:   nrow,
	}, nil
}

// exceedance returns sample col's 0/1 profile of cells beyond the
// direction threshold. NaN cells (markers not covered by the sample)
// never exceed.
func exceedance(m *mat.Dense, col int, threshold float64, direction int) []float64 {
	nrow, _ := m.Dims()
	prof := make([]float64, nrow)
	for i := 0; i < nrow; i++ {
		v := m.At(i, col)
		if math.IsNaN(v) {
			continue
		}
		if direction > 0 && v >= threshold {
			prof[i] = 1
		} else if direction < 0 && v <= threshold {
			prof[i] = 1
		}
	}
	return prof
}

// scaleLadder returns the window widths used for the variance fit:
// powers of two up to half the longest chromosome, capped at 256.
func scaleLadder(agg *MarkerAgg) []int {
	maxLen := 0
	for ord := range agg.chromRow {
		lo, hi := agg.ChromRows(ord)
		if hi-lo > maxLen {
			maxLen = hi - lo
		}
	}
	var scales []int
	for w := 1; w <= maxLen/2 && w <= 256; w *= 2 {
		scales = append(scales, w)
	}
	if len(scales) == 0 {
		scales = []int{1}
	}
	return scales
}

// permutedAggregate rotates every sample's profile by an independent
// uniform offset within each chromosome and returns the per-marker
// fraction of exceeding samples.
func permutedAggregate(profiles [][]float64, agg *MarkerAgg, rng *rand.Rand) []float64 {
	nrow := agg.Len()
	ap := make([]float64, nrow)
	for _, prof := range profiles {
		for ord := range agg.chromRow {
			lo, hi := agg.ChromRows(ord)
			n := hi - lo
			if n <= 0 {
				continue
			}
			off := rng.Intn(n)
			for i := 0; i < n; i++ {
				ap[lo+i] += prof[lo+(i+off)%n]
			}
		}
	}
	if len(profiles) > 0 {
		inv := 1 / float64(len(profiles))
		for i := range ap {
			ap[i] *= inv
		}
	}
	return ap
}

// jumpStats accumulates the squared differences between adjacent
// markers of the same chromosome.
func jumpStats(ap []float64, agg *MarkerAgg) (ss float64, n int) {
	for ord := range agg.chromRow {
		lo, hi := agg.ChromRows(ord)
		for i := lo + 1; i < hi; i++ {
			d := ap[i] - ap[i-1]
			ss += d * d
			n++
		}
	}
	return ss, n
}

// windowedVariance returns the variance of all within-chromosome
// window means of width w, false when no chromosome fits a window.
func windowedVariance(ap []float64, agg *MarkerAgg, w int) (float64, bool) {
	count := 0
	mean := 0.0
	m2 := 0.0
	for ord := range agg.chromRow {
		lo, hi := agg.ChromRows(ord)
		if hi-lo < w {
			continue
		}
		sum := 0.0
		for i := lo; i < lo+w; i++ {
			sum += ap[i]
		}
		for i := lo; ; i++ {
			x := sum / float64(w)
			count++
			delta := x - mean
			mean += delta / float64(count)
			m2 += delta * (x - mean)
			if i+w >= hi {
				break
			}
			sum += ap[i+w] - ap[i]
		}
	}
	if count < 2 {
		return 0, false
	}
	return m2 / float64(count-1), true
}

func maxDeviation(ap []float64) float64 {
	if len(ap) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range ap {
		mean += x
	}
	mean /= float64(len(ap))
	max := math.Inf(-1)
	for _, x := range ap {
		if x-mean > max {
			max = x - mean
		}
	}
	return max
}

// fitScaleModel fits log-variance against log-scale with an intercept
// using a Gaussian GLM.
func fitScaleModel(logScale, logVar []float64) (intercept, slope float64, err error) {
	defer func() {
		if recover() != nil {
			// typically "matrix singular or near-singular with condition number +Inf"
			err = fmt.Errorf("background scale model fit failed")
		}
	}()
	response := make([]statmodel.Dtype, len(logVar))
	constants := make([]statmodel.Dtype, len(logVar))
	covariate := make([]statmodel.Dtype, len(logVar))
	for i := range logVar {
		response[i] = logVar[i]
		constants[i] = 1
		covariate[i] = logScale[i]
	}
	data := [][]statmodel.Dtype{response, constants, covariate}
	names := []string{"logvar", "constants", "logscale"}
	dataset := statmodel.NewDataset(data, names)
	model, err := glm.NewGLM(dataset, "logvar", names[1:], scaleFitConfig)
	if err != nil {
		return 0, 0, err
	}
	result := model.Fit()
	params := result.Params()
	return params[0], params[1], nil
}
