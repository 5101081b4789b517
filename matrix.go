// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// MarkerAgg is the aggregated marker table: one row per marker covered
// by at least one sample, in genomic order. It is a cached reduction
// of the mapped location table, rebuilt on demand and never persisted.
type MarkerAgg struct {
	Marker []int   // index into the analysis marker slice
	Chrom  []int   // chromosome ordinal
	Pos    []int64 // position within chromosome
	AbsPos []int64 // cumulative genomic position across chromosomes

	row      []int    // marker index -> row, -1 if uncovered
	chromRow [][2]int // chromosome ordinal -> half-open row range
}

func (agg *MarkerAgg) Len() int { return len(agg.Marker) }

// RowOf maps a marker index to its row, or -1 if no sample covers it.
func (agg *MarkerAgg) RowOf(marker int) int { return agg.row[marker] }

// ChromRows returns the half-open row range of one chromosome
// ordinal, empty when no marker of the chromosome is covered.
func (agg *MarkerAgg) ChromRows(ord int) (int, int) {
	if ord >= len(agg.chromRow) || agg.chromRow[ord][0] < 0 {
		return 0, 0
	}
	r := agg.chromRow[ord]
	return r[0], r[1]
}

// buildAgg reduces the mapped location table to the aggregated marker
// table. Absolute positions accumulate chromosome extents (the highest
// marker position per chromosome) so that positions are comparable
// genome-wide.
func buildAgg(spans map[string][]SegSpan, markers []Marker, nchroms int) *MarkerAgg {
	covered := make([]bool, len(markers))
	for _, sampleSpans := range spans {
		for _, sp := range sampleSpans {
			for i := sp.First; i <= sp.Last; i++ {
				covered[i] = true
			}
		}
	}
	extent := make([]int64, nchroms)
	for _, m := range markers {
		if m.Pos > extent[m.Chrom] {
			extent[m.Chrom] = m.Pos
		}
	}
	offset := make([]int64, nchroms)
	var cum int64
	for ord := 0; ord < nchroms; ord++ {
		offset[ord] = cum
		cum += extent[ord]
	}

	agg := &MarkerAgg{
		row:      make([]int, len(markers)),
		chromRow: make([][2]int, nchroms),
	}
	for ord := range agg.chromRow {
		agg.chromRow[ord] = [2]int{-1, -1}
	}
	for i, m := range markers {
		if !covered[i] {
			agg.row[i] = -1
			continue
		}
		r := len(agg.Marker)
		agg.row[i] = r
		agg.Marker = append(agg.Marker, i)
		agg.Chrom = append(agg.Chrom, m.Chrom)
		agg.Pos = append(agg.Pos, m.Pos)
		agg.AbsPos = append(agg.AbsPos, offset[m.Chrom]+m.Pos)
		if agg.chromRow[m.Chrom][0] < 0 {
			agg.chromRow[m.Chrom][0] = r
		}
		agg.chromRow[m.Chrom][1] = r + 1
	}
	return agg
}

// buildMatrix materializes the copy-number matrix (aggregated marker
// rows × samples) from the mapped location table. Cells not covered by
// a sample's segments are NaN.
func buildMatrix(spans map[string][]SegSpan, agg *MarkerAgg, samples []string) *mat.Dense {
	nrow, ncol := agg.Len(), len(samples)
	data := make([]float64, nrow*ncol)
	for i := range data {
		data[i] = math.NaN()
	}
	m := mat.NewDense(nrow, ncol, data)
	for j, id := range samples {
		for _, sp := range spans[id] {
			for i := sp.First; i <= sp.Last; i++ {
				if r := agg.row[i]; r >= 0 {
					m.Set(r, j, sp.Mean)
				}
			}
		}
	}
	return m
}
