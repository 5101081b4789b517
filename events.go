// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"fmt"
	"math"
)

// Event is one recurrent copy-number event that passed the FDR gate.
// LeftP/RightP are the break significance levels of the two
// boundaries, LeftQ/RightQ their within-direction Benjamini-Hochberg
// adjustments. Percentile is the permutation percentile of the event
// amplitude against the retained null maxima, NaN when the null was
// empty.
type Event struct {
	Chrom      int
	Start      int64
	End        int64
	Markers    int
	Amplitude  float64
	LeftP      float64
	RightP     float64
	LeftQ      float64
	RightQ     float64
	Percentile float64
}

// EventSet is one direction's called events.
type EventSet struct {
	Direction int
	Events    []Event
}

// EventCaller turns candidate segments into called events at a given
// false discovery rate.
type EventCaller interface {
	Call(set *SegmentSet, params *Params, fdr float64, direction int) (*EventSet, error)
}

// fdrCaller is the default EventCaller: Gaussian tail p-values for
// each boundary jump normalized by the null jump deviation, adjusted
// with Benjamini-Hochberg across all boundaries of the direction. A
// segment becomes an event when both of its adjusted boundaries clear
// the FDR.
type fdrCaller struct{}

func (fdrCaller) Call(set *SegmentSet, params *Params, fdr float64, direction int) (*EventSet, error) {
	if set == nil || params == nil {
		return nil, fmt.Errorf("event calling requires aggregated segments and background parameters")
	}
	if set.Direction != direction || params.Direction != direction {
		return nil, fmt.Errorf("segments (%+d) and parameters (%+d) must match the requested direction %+d", set.Direction, params.Direction, direction)
	}
	norm := set.Norm
	if !(norm > 0) {
		norm = 1e-12
	}
	ps := make([]float64, 0, 2*len(set.Segments))
	for _, seg := range set.Segments {
		ps = append(ps, normalTailP(math.Abs(seg.LeftJump)/norm), normalTailP(math.Abs(seg.RightJump)/norm))
	}
	qs := benjaminiHochberg(ps)

	out := &EventSet{Direction: direction}
	for i, seg := range set.Segments {
		ql, qr := qs[2*i], qs[2*i+1]
		if ql > fdr || qr > fdr {
			continue
		}
		out.Events = append(out.Events, Event{
			Chrom:      seg.Chrom,
			Start:      seg.Start,
			End:        seg.End,
			Markers:    seg.LastRow - seg.FirstRow + 1,
			Amplitude:  seg.Amplitude,
			LeftP:      ps[2*i],
			RightP:     ps[2*i+1],
			LeftQ:      ql,
			RightQ:     qr,
			Percentile: permutationP(params.NullMax, seg.Amplitude),
		})
	}
	return out, nil
}
