// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"flag"
	"fmt"
	"math"
)

// Config holds the analysis parameters shared by every command.
// Bounds left NaN are unbounded. Validation happens once, at
// construction of an Analysis, and reports every violated constraint
// in one ConfigurationError.
type Config struct {
	FDR            float64 // target false discovery rate, in [0,1]
	GainThreshold  float64 // log-ratio at or above which a cell counts as amplified, > 0
	LossThreshold  float64 // log-ratio at or below which a cell counts as deleted, < 0
	MinSegMarkers  int     // merge segments owning fewer markers than this, > 0
	MinProbes      int     // minimum mapped marker count, > 0
	FocalThreshold int64   // maximum focal event footprint in bases, >= 1
	MinMean        float64 // drop segments with mean log-ratio below this (NaN = unbounded)
	MaxMean        float64 // drop segments with mean log-ratio above this (NaN = unbounded)
}

// DefaultConfig returns the parameter defaults for SNP-array scale
// cohorts.
func DefaultConfig() Config {
	return Config{
		FDR:            0.25,
		GainThreshold:  0.1,
		LossThreshold:  -0.1,
		MinSegMarkers:  1,
		MinProbes:      260000,
		FocalThreshold: 10000000,
		MinMean:        math.NaN(),
		MaxMean:        math.NaN(),
	}
}

// Flags binds the shared analysis parameters to the given FlagSet so
// every command exposes the same knobs.
func (c *Config) Flags(flags *flag.FlagSet) {
	flags.Float64Var(&c.FDR, "fdr", c.FDR, "target false discovery `rate` for event calling")
	flags.Float64Var(&c.GainThreshold, "amp-level", c.GainThreshold, "minimum log-ratio counted as amplification")
	flags.Float64Var(&c.LossThreshold, "del-level", c.LossThreshold, "maximum log-ratio counted as deletion")
	flags.IntVar(&c.MinSegMarkers, "min-seg-markers", c.MinSegMarkers, "merge segments owning fewer than `N` markers")
	flags.IntVar(&c.MinProbes, "min-probes", c.MinProbes, "fail unless at least `N` markers are mapped")
	flags.Int64Var(&c.FocalThreshold, "focal-threshold", c.FocalThreshold, "maximum focal event footprint in `bases`")
	flags.Float64Var(&c.MinMean, "min-mean", c.MinMean, "drop segments with mean log-ratio below `bound` (NaN = unbounded)")
	flags.Float64Var(&c.MaxMean, "max-mean", c.MaxMean, "drop segments with mean log-ratio above `bound` (NaN = unbounded)")
}

func (c Config) validate() error {
	var violations []string
	if !(c.FDR >= 0 && c.FDR <= 1) {
		violations = append(violations, fmt.Sprintf("fdr %v outside [0, 1]", c.FDR))
	}
	if !(c.GainThreshold > 0) {
		violations = append(violations, fmt.Sprintf("amplification threshold %v must be > 0", c.GainThreshold))
	}
	if !(c.LossThreshold < 0) {
		violations = append(violations, fmt.Sprintf("deletion threshold %v must be < 0", c.LossThreshold))
	}
	if c.MinSegMarkers <= 0 {
		violations = append(violations, fmt.Sprintf("minimum markers per segment %d must be > 0", c.MinSegMarkers))
	}
	if c.MinProbes <= 0 {
		violations = append(violations, fmt.Sprintf("minimum total marker count %d must be > 0", c.MinProbes))
	}
	if c.FocalThreshold < 1 {
		violations = append(violations, fmt.Sprintf("focal threshold %d must be >= 1", c.FocalThreshold))
	}
	if !math.IsNaN(c.MinMean) && !math.IsNaN(c.MaxMean) && c.MinMean > c.MaxMean {
		violations = append(violations, fmt.Sprintf("min mean %v exceeds max mean %v", c.MinMean, c.MaxMean))
	}
	if len(violations) > 0 {
		return &ConfigurationError{Violations: violations}
	}
	return nil
}
