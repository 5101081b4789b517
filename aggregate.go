// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// RecSegment is one candidate recurrent region: a maximal run of
// markers whose aggregate exceedance sits above the null envelope for
// its width, with the aggregate jumps across its two boundaries.
type RecSegment struct {
	Chrom     int
	Start     int64
	End       int64
	FirstRow  int
	LastRow   int
	Amplitude float64 // peak centered aggregate within the run
	LeftJump  float64 // aggregate change entering the run
	RightJump float64 // aggregate change leaving the run
}

// SegmentSet is one direction's candidate segments plus the
// normalization constant for break jump statistics.
type SegmentSet struct {
	Direction int
	Norm      float64
	Segments  []RecSegment
}

// Aggregator reduces the copy-number matrix to candidate recurrent
// segments for one direction.
type Aggregator interface {
	Aggregate(m *mat.Dense, agg *MarkerAgg, threshold float64, params *Params, direction int) (*SegmentSet, error)
}

// sumAggregator is the default Aggregator. It computes the fraction
// of samples exceeding the threshold per marker, then scans each
// chromosome for runs where the centered aggregate clears the fitted
// null envelope at single-marker scale.
type sumAggregator struct {
	// CandidateZ loosens or tightens the envelope gate. The gate only
	// shapes the candidate pool; calling is done downstream at the
	// requested FDR.
	CandidateZ float64
}

func (g *sumAggregator) Aggregate(m *mat.Dense, agg *MarkerAgg, threshold float64, params *Params, direction int) (*SegmentSet, error) {
	if params == nil {
		return nil, fmt.Errorf("segment aggregation requires estimated background parameters")
	}
	if params.Direction != direction {
		return nil, fmt.Errorf("background parameters were estimated for direction %+d, not %+d", params.Direction, direction)
	}
	nrow, _ := m.Dims()
	if nrow != agg.Len() {
		return nil, fmt.Errorf("matrix has %d rows, aggregated marker table has %d", nrow, agg.Len())
	}
	z := g.CandidateZ
	if z <= 0 {
		z = 1
	}
	ap := aggregateProfile(m, threshold, direction)
	mean := 0.0
	for _, x := range ap {
		mean += x
	}
	if len(ap) > 0 {
		mean /= float64(len(ap))
	}
	gate := z * math.Sqrt(math.Exp(params.Intercept))

	set := &SegmentSet{Direction: direction, Norm: params.Sigma}
	for ord := range agg.chromRow {
		lo, hi := agg.ChromRows(ord)
		for i := lo; i < hi; {
			if ap[i]-mean <= gate {
				i++
				continue
			}
			first := i
			peak := ap[i] - mean
			for i < hi && ap[i]-mean > gate {
				if ap[i]-mean > peak {
					peak = ap[i] - mean
				}
				i++
			}
			last := i - 1
			left := ap[first] - mean
			if first > lo {
				left = ap[first] - ap[first-1]
			}
			right := ap[last] - mean
			if last < hi-1 {
				right = ap[last] - ap[last+1]
			}
			set.Segments = append(set.Segments, RecSegment{
				Chrom:     agg.Chrom[first],
				Start:     agg.Pos[first],
				End:       agg.Pos[last],
				FirstRow:  first,
				LastRow:   last,
				Amplitude: peak,
				LeftJump:  left,
				RightJump: right,
			})
		}
	}
	return set, nil
}

// aggregateProfile returns the per-marker fraction of samples whose
// value exceeds the threshold in the given direction. NaN cells never
// exceed.
func aggregateProfile(m *mat.Dense, threshold float64, direction int) []float64 {
	nrow, ncol := m.Dims()
	ap := make([]float64, nrow)
	if ncol == 0 {
		return ap
	}
	for i := 0; i < nrow; i++ {
		hits := 0
		for j := 0; j < ncol; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			if direction > 0 && v >= threshold {
				hits++
			} else if direction < 0 && v <= threshold {
				hits++
			}
		}
		ap[i] = float64(hits) / float64(ncol)
	}
	return ap
}
