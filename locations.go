// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"math"
	"sort"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// SegSpan is one run of the mapped location table: a contiguous range
// of marker indexes owned by one (possibly merged) segment of one
// sample, with the marker-weighted mean log-ratio of the segments that
// were merged into it.
type SegSpan struct {
	First int // marker index, inclusive
	Last  int // marker index, inclusive
	Mean  float64
}

func (sp SegSpan) markers() int { return sp.Last - sp.First + 1 }

// chromRanges returns, per chromosome ordinal, the half-open marker
// index range [first, last) of that chromosome in the sorted marker
// slice. Ordinals with no markers get [-1, -1).
func chromRanges(markers []Marker, nchroms int) [][2]int {
	ranges := make([][2]int, nchroms)
	for i := range ranges {
		ranges[i] = [2]int{-1, -1}
	}
	for i, m := range markers {
		if ranges[m.Chrom][0] < 0 {
			ranges[m.Chrom][0] = i
		}
		ranges[m.Chrom][1] = i + 1
	}
	return ranges
}

// mapLocations joins segments onto markers per sample: each marker is
// assigned to the segment covering its position, segments owning fewer
// than minSegMarkers markers are merged into an adjacent segment
// (forward unless at a chromosome boundary, then backward) with the
// merged mean recomputed as the marker-weighted mean, and merged
// segments whose mean falls outside [minMean, maxMean] are dropped
// (NaN bound = unbounded on that side). Markers outside all segments
// of a sample are excluded for that sample.
func mapLocations(segs []Segment, markers []Marker, samples []string, minSegMarkers int, minMean, maxMean float64) map[string][]SegSpan {
	nchroms := 0
	for _, m := range markers {
		if m.Chrom >= nchroms {
			nchroms = m.Chrom + 1
		}
	}
	for _, seg := range segs {
		if seg.Chrom >= nchroms {
			nchroms = seg.Chrom + 1
		}
	}
	ranges := chromRanges(markers, nchroms)
	wanted := make(map[string]bool, len(samples))
	for _, id := range samples {
		wanted[id] = true
	}

	bySample := map[string][][]SegSpan{} // sample -> per-chromosome span groups
	for _, seg := range segs {
		if !wanted[seg.Sample] {
			continue
		}
		r := ranges[seg.Chrom]
		if r[0] < 0 {
			continue
		}
		chromMarkers := markers[r[0]:r[1]]
		lo := r[0] + sort.Search(len(chromMarkers), func(i int) bool { return chromMarkers[i].Pos >= seg.Start })
		hi := r[0] + sort.Search(len(chromMarkers), func(i int) bool { return chromMarkers[i].Pos > seg.End })
		if lo >= hi {
			log.Debugf("sample %s: segment %d-%d on %d owns no markers", seg.Sample, seg.Start, seg.End, seg.Chrom)
			continue
		}
		groups := bySample[seg.Sample]
		if len(groups) == 0 || markers[groups[len(groups)-1][0].First].Chrom != seg.Chrom {
			groups = append(groups, nil)
		}
		gi := len(groups) - 1
		groups[gi] = append(groups[gi], SegSpan{First: lo, Last: hi - 1, Mean: seg.LogRatio})
		bySample[seg.Sample] = groups
	}

	out := make(map[string][]SegSpan, len(samples))
	for _, id := range samples {
		var spans []SegSpan
		for _, group := range bySample[id] {
			group = mergeSpans(group, minSegMarkers)
			for _, sp := range group {
				if !math.IsNaN(minMean) && sp.Mean < minMean {
					continue
				}
				if !math.IsNaN(maxMean) && sp.Mean > maxMean {
					continue
				}
				spans = append(spans, sp)
			}
		}
		out[id] = spans
	}
	return out
}

// mergeSpans repeatedly merges the first under-sized span of one
// chromosome into its forward neighbor (backward when it is the last
// span of the chromosome) until every span owns at least min markers
// or only one span remains.
func mergeSpans(spans []SegSpan, min int) []SegSpan {
	for len(spans) > 1 {
		under := -1
		for i, sp := range spans {
			if sp.markers() < min {
				under = i
				break
			}
		}
		if under < 0 {
			break
		}
		if under == len(spans)-1 {
			under--
		}
		a, b := spans[under], spans[under+1]
		merged := SegSpan{
			First: a.First,
			Last:  b.Last,
			Mean: stat.Mean(
				[]float64{a.Mean, b.Mean},
				[]float64{float64(a.markers()), float64(b.markers())},
			),
		}
		spans[under] = merged
		spans = append(spans[:under+1], spans[under+2:]...)
	}
	return spans
}

// ensureMinProbes is the data-quality gate run after mapping: it fails
// if fewer than min distinct markers are covered by at least one
// sample.
func ensureMinProbes(spans map[string][]SegSpan, nMarkers, min int) error {
	covered := make([]bool, nMarkers)
	total := 0
	for _, sampleSpans := range spans {
		for _, sp := range sampleSpans {
			for i := sp.First; i <= sp.Last; i++ {
				if !covered[i] {
					covered[i] = true
					total++
				}
			}
		}
	}
	if total < min {
		return &InsufficientCoverageError{Markers: total, Min: min}
	}
	return nil
}
