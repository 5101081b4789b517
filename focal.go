// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"sort"
)

// FocalEvent is a called event whose genomic footprint is below the
// focal size threshold, annotated with the genes it overlaps. Its
// LeftQ/RightQ are rewritten from the joint adjustment across both
// directions, so they are comparable between gains and losses.
type FocalEvent struct {
	Event
	GeneSymbols []string
	GeneIDs     []string
}

// FocalSet is one direction's focal events, sorted by genomic
// position.
type FocalSet struct {
	Direction int
	Events    []FocalEvent
}

// callFocal restricts both directions' events to footprints below
// focalThreshold bases, attaches overlapping genes, and adjusts the
// boundary p-values of all retained events jointly with
// Benjamini-Hochberg. The shared adjusted vector is returned alongside
// the two collections; the per-direction event sets keep their own
// within-direction q-values.
func callFocal(gains, losses *EventSet, genes []Gene, focalThreshold int64) (*FocalSet, *FocalSet, []float64) {
	idx := geneIndex{}
	for gi, g := range genes {
		idx.Add(g.Chrom, g.Start, g.End, gi)
	}
	idx.Freeze()

	fg := focalSubset(gains, genes, &idx, focalThreshold)
	fl := focalSubset(losses, genes, &idx, focalThreshold)

	ps := make([]float64, 0, 2*(len(fg.Events)+len(fl.Events)))
	for _, ev := range fg.Events {
		ps = append(ps, ev.LeftP, ev.RightP)
	}
	for _, ev := range fl.Events {
		ps = append(ps, ev.LeftP, ev.RightP)
	}
	qall := benjaminiHochberg(ps)
	qi := 0
	for i := range fg.Events {
		fg.Events[i].LeftQ = qall[qi]
		fg.Events[i].RightQ = qall[qi+1]
		qi += 2
	}
	for i := range fl.Events {
		fl.Events[i].LeftQ = qall[qi]
		fl.Events[i].RightQ = qall[qi+1]
		qi += 2
	}
	return fg, fl, qall
}

func focalSubset(set *EventSet, genes []Gene, idx *geneIndex, focalThreshold int64) *FocalSet {
	out := &FocalSet{}
	if set == nil {
		return out
	}
	out.Direction = set.Direction
	for _, ev := range set.Events {
		if ev.End-ev.Start+1 >= focalThreshold {
			continue
		}
		fev := FocalEvent{Event: ev}
		for _, gi := range idx.Overlapping(ev.Chrom, ev.Start, ev.End) {
			fev.GeneSymbols = append(fev.GeneSymbols, genes[gi].Name)
			fev.GeneIDs = append(fev.GeneIDs, genes[gi].ID)
		}
		out.Events = append(out.Events, fev)
	}
	sort.SliceStable(out.Events, func(i, j int) bool {
		a, b := out.Events[i], out.Events[j]
		if a.Chrom != b.Chrom {
			return a.Chrom < b.Chrom
		}
		return a.Start < b.Start
	})
	return out
}
