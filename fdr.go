// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// benjaminiHochberg returns the FDR-adjusted q-value for each p-value:
// p*n/rank with the cumulative minimum enforced from the largest p
// down, capped at 1. Output order matches input order.
func benjaminiHochberg(p []float64) []float64 {
	n := len(p)
	if n == 0 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })
	q := make([]float64, n)
	running := math.Inf(1)
	for i := n - 1; i >= 0; i-- {
		v := p[idx[i]] * float64(n) / float64(i+1)
		if v < running {
			running = v
		}
		if running > 1 {
			q[idx[i]] = 1
		} else {
			q[idx[i]] = running
		}
	}
	return q
}

// normalTailP returns P(Z >= z) for standard normal Z.
func normalTailP(z float64) float64 {
	return distuv.UnitNormal.Survival(z)
}

// permutationP returns the permutation p-value of x against a sorted
// null sample: (1 + #{null >= x}) / (1 + len(null)). NaN when the
// null sample is empty.
func permutationP(sortedNull []float64, x float64) float64 {
	if len(sortedNull) == 0 {
		return math.NaN()
	}
	ge := len(sortedNull) - sort.SearchFloat64s(sortedNull, x)
	return float64(ge+1) / float64(len(sortedNull)+1)
}
