// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"fmt"
	"sort"

	"github.com/cruzpazv/RUBIC/annotation"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// GeneSource supplies a gene annotation set scoped to the given
// chromosome labels. It is consulted when focal events are called and
// no gene table has been provided.
type GeneSource interface {
	Genes(chromosomes []string) ([]annotation.Gene, error)
}

// Analysis is the staged recurrence pipeline over one cohort: inputs
// are normalized and mapped once, at construction, and the four
// analysis stages fill in their output fields one by one. Each stage
// runs the stages it depends on first if their outputs are missing,
// and recomputes (with a warning) if its own output is already
// present.
//
// Exported fields are the persistent state; Save and LoadAnalysis
// round-trip them. The copy-number matrix and the aggregated marker
// table are derived caches, rebuilt on demand and never persisted.
//
// An Analysis is not safe for concurrent use. All methods mutate
// state in place; callers sharing one instance across goroutines must
// serialize access themselves.
type Analysis struct {
	Config  Config
	Chroms  *ChromSet
	Samples []string
	Markers []Marker
	Spans   map[string][]SegSpan
	Genes   []Gene // nil until a gene table is set or fetched

	GainParams  *Params
	LossParams  *Params
	GainSegs    *SegmentSet
	LossSegs    *SegmentSet
	GainEvents  *EventSet
	LossEvents  *EventSet
	FocalGains  *FocalSet
	FocalLosses *FocalSet
	QAll        []float64

	matrix *mat.Dense
	agg    *MarkerAgg

	estimator  Estimator
	aggregator Aggregator
	caller     EventCaller
	geneSource GeneSource
}

// NewAnalysis validates the configuration, normalizes the segment and
// marker tables, resolves the sample list, and maps segment values
// onto markers. The returned Analysis has no stage outputs yet.
func NewAnalysis(cfg Config, segments, markers Input, samples SampleInput) (*Analysis, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	segTable, err := loadTable(segments, segmentSpec)
	if err != nil {
		return nil, err
	}
	mkTable, err := loadTable(markers, markerSpec)
	if err != nil {
		return nil, err
	}
	cs := newChromSet(columnValues(segTable, "Chromosome"), columnValues(mkTable, "Chromosome"))
	segs, err := parseSegments(segTable, cs)
	if err != nil {
		return nil, err
	}
	segs = tidySegments(segs)
	mks, err := parseMarkers(mkTable, cs)
	if err != nil {
		return nil, err
	}
	mks = tidyMarkers(mks)
	ids, err := resolveSamples(samples, observedSamples(segs))
	if err != nil {
		return nil, err
	}
	if len(ids) < 2 {
		return nil, &InsufficientSamplesError{Count: len(ids)}
	}
	spans := mapLocations(segs, mks, ids, cfg.MinSegMarkers, cfg.MinMean, cfg.MaxMean)
	if err := ensureMinProbes(spans, len(mks), cfg.MinProbes); err != nil {
		return nil, err
	}
	a := &Analysis{
		Config:  cfg,
		Chroms:  cs,
		Samples: ids,
		Markers: mks,
		Spans:   spans,
	}
	a.setDefaultCollaborators()
	return a, nil
}

func (a *Analysis) setDefaultCollaborators() {
	if a.estimator == nil {
		a.estimator = &permEstimator{Permutations: 100, Seed: 1}
	}
	if a.aggregator == nil {
		a.aggregator = &sumAggregator{}
	}
	if a.caller == nil {
		a.caller = fdrCaller{}
	}
}

// SetEstimator replaces the background estimator.
func (a *Analysis) SetEstimator(e Estimator) { a.estimator = e }

// SetAggregator replaces the segment aggregator.
func (a *Analysis) SetAggregator(g Aggregator) { a.aggregator = g }

// SetEventCaller replaces the event caller.
func (a *Analysis) SetEventCaller(ec EventCaller) { a.caller = ec }

// SetGeneSource installs the annotation fallback used when focal
// events are called without a gene table.
func (a *Analysis) SetGeneSource(src GeneSource) { a.geneSource = src }

// SetGenes loads and validates a gene table, replacing any stored
// gene set.
func (a *Analysis) SetGenes(genes Input) error {
	t, err := loadTable(genes, geneSpec)
	if err != nil {
		return err
	}
	gs, err := parseGenes(t, a.Chroms)
	if err != nil {
		return err
	}
	a.Genes = gs
	return nil
}

// caches rebuilds the derived matrix and aggregated marker table if
// needed.
func (a *Analysis) caches() (*mat.Dense, *MarkerAgg) {
	if a.agg == nil {
		a.agg = buildAgg(a.Spans, a.Markers, a.Chroms.Len())
	}
	if a.matrix == nil {
		a.matrix = buildMatrix(a.Spans, a.agg, a.Samples)
	}
	return a.matrix, a.agg
}

// coveredChroms lists the chromosomes with at least one covered
// marker, in ordinal order. The annotation fallback is scoped to
// these rather than to the full ordinal set.
func (a *Analysis) coveredChroms() []string {
	_, agg := a.caches()
	var names []string
	for ord := 0; ord < a.Chroms.Len(); ord++ {
		if lo, hi := agg.ChromRows(ord); hi > lo {
			names = append(names, a.Chroms.Name(ord))
		}
	}
	return names
}

type stage int

const (
	stageEstimate stage = iota
	stageSegment
	stageEvents
	stageFocal
)

var stageNames = [...]string{
	stageEstimate: "parameter estimation",
	stageSegment:  "segmentation",
	stageEvents:   "event calling",
	stageFocal:    "focal event calling",
}

func (a *Analysis) done(s stage) bool {
	switch s {
	case stageEstimate:
		return a.GainParams != nil && a.LossParams != nil
	case stageSegment:
		return a.GainSegs != nil && a.LossSegs != nil
	case stageEvents:
		return a.GainEvents != nil && a.LossEvents != nil
	case stageFocal:
		return a.FocalGains != nil && a.FocalLosses != nil
	}
	return false
}

// invoke runs the target stage, first running the contiguous prefix
// of earlier stages whose outputs are missing. The returned flag
// reports whether the target's own output was already present and has
// been recomputed.
func (a *Analysis) invoke(target stage, genes *Input) (bool, error) {
	start := target
	for s := target - 1; s >= 0; s-- {
		if a.done(s) {
			break
		}
		start = s
	}
	for s := start; s < target; s++ {
		log.Infof("%s required by %s; running it now", stageNames[s], stageNames[target])
		if err := a.runStage(s, nil); err != nil {
			return false, err
		}
	}
	recomputed := a.done(target)
	if recomputed {
		log.Warnf("%s output already present; recomputing", stageNames[target])
	}
	if err := a.runStage(target, genes); err != nil {
		return false, err
	}
	return recomputed, nil
}

func (a *Analysis) runStage(s stage, genes *Input) error {
	switch s {
	case stageEstimate:
		return a.runEstimate()
	case stageSegment:
		return a.runSegment()
	case stageEvents:
		return a.runEvents()
	case stageFocal:
		return a.runFocal(genes)
	}
	panic(fmt.Sprintf("invalid stage %d", s))
}

func (a *Analysis) runEstimate() error {
	m, agg := a.caches()
	gain, loss, err := a.estimator.Estimate(m, agg, a.Config.GainThreshold, a.Config.LossThreshold)
	if err != nil {
		return err
	}
	a.GainParams, a.LossParams = gain, loss
	return nil
}

func (a *Analysis) runSegment() error {
	m, agg := a.caches()
	gain, err := a.aggregator.Aggregate(m, agg, a.Config.GainThreshold, a.GainParams, 1)
	if err != nil {
		return err
	}
	loss, err := a.aggregator.Aggregate(m, agg, a.Config.LossThreshold, a.LossParams, -1)
	if err != nil {
		return err
	}
	a.GainSegs, a.LossSegs = gain, loss
	return nil
}

func (a *Analysis) runEvents() error {
	gain, err := a.caller.Call(a.GainSegs, a.GainParams, a.Config.FDR, 1)
	if err != nil {
		return err
	}
	loss, err := a.caller.Call(a.LossSegs, a.LossParams, a.Config.FDR, -1)
	if err != nil {
		return err
	}
	a.GainEvents, a.LossEvents = gain, loss
	return nil
}

func (a *Analysis) runFocal(genes *Input) error {
	if genes != nil {
		if err := a.SetGenes(*genes); err != nil {
			return err
		}
	}
	if a.Genes == nil {
		if a.geneSource == nil {
			return &ConfigurationError{Violations: []string{"focal event calling needs a gene table or a configured annotation source"}}
		}
		raw, err := a.geneSource.Genes(a.coveredChroms())
		if err != nil {
			return err
		}
		a.Genes = convertGenes(raw, a.Chroms)
	}
	fg, fl, qall := callFocal(a.GainEvents, a.LossEvents, a.Genes, a.Config.FocalThreshold)
	a.FocalGains, a.FocalLosses, a.QAll = fg, fl, qall
	return nil
}

// EstimateParameters runs the background estimation stage.
func (a *Analysis) EstimateParameters() (bool, error) { return a.invoke(stageEstimate, nil) }

// Segment runs the segment aggregation stage.
func (a *Analysis) Segment() (bool, error) { return a.invoke(stageSegment, nil) }

// CallEvents runs the event calling stage.
func (a *Analysis) CallEvents() (bool, error) { return a.invoke(stageEvents, nil) }

// CallFocalEvents runs the focal stage. A non-nil genes input
// replaces any stored gene table first; with neither a stored table
// nor an annotation source the stage fails.
func (a *Analysis) CallFocalEvents(genes *Input) (bool, error) { return a.invoke(stageFocal, genes) }

// convertGenes maps fetched annotation records onto the analysis
// chromosome set, dropping genes on chromosomes absent from the data.
func convertGenes(raw []annotation.Gene, cs *ChromSet) []Gene {
	genes := make([]Gene, 0, len(raw))
	skipped := 0
	for _, g := range raw {
		ord, ok := cs.Ordinal(g.Chrom)
		if !ok {
			skipped++
			continue
		}
		genes = append(genes, Gene{ID: g.EnsemblID, Name: g.Symbol, Chrom: ord, Start: g.Start, End: g.End})
	}
	if skipped > 0 {
		log.Warnf("dropped %d fetched gene(s) on chromosomes absent from the data", skipped)
	}
	sort.Slice(genes, func(i, j int) bool {
		if genes[i].Chrom != genes[j].Chrom {
			return genes[i].Chrom < genes[j].Chrom
		}
		if genes[i].Start != genes[j].Start {
			return genes[i].Start < genes[j].Start
		}
		return genes[i].End < genes[j].End
	})
	return genes
}
