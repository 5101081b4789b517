// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"math"
	"sort"
)

type geneInterval struct {
	start int64
	end   int64
	gene  int // index into the analysis gene slice
}

type geneTreeNode struct {
	iv     geneInterval
	maxend int64
}

// geneTree is a complete binary interval tree in array layout.
type geneTree []geneTreeNode

// geneIndex answers "which genes overlap this region" per chromosome
// ordinal. Add everything, Freeze once, then query.
type geneIndex struct {
	intervals map[int][]geneInterval
	trees     map[int]geneTree
	frozen    bool
}

func (ix *geneIndex) Add(ord int, start, end int64, gene int) {
	if ix.intervals == nil {
		ix.intervals = map[int][]geneInterval{}
	}
	ix.intervals[ord] = append(ix.intervals[ord], geneInterval{start, end, gene})
}

func (ix *geneIndex) Freeze() {
	ix.trees = map[int]geneTree{}
	for ord, intervals := range ix.intervals {
		ix.trees[ord] = freezeGeneTree(intervals)
	}
	ix.frozen = true
}

// Overlapping returns the indexes of all genes overlapping [start,
// end] on the given chromosome ordinal, in the order the genes were
// added.
func (ix *geneIndex) Overlapping(ord int, start, end int64) []int {
	if !ix.frozen {
		panic("bug: (*geneIndex)Overlapping() called before Freeze()")
	}
	var out []int
	ix.trees[ord].collect(0, geneInterval{start: start, end: end}, &out)
	sort.Ints(out)
	return out
}

func freezeGeneTree(in []geneInterval) geneTree {
	if len(in) == 0 {
		return nil
	}
	sort.Slice(in, func(i, j int) bool {
		if in[i].start != in[j].start {
			return in[i].start < in[j].start
		}
		return in[i].end < in[j].end
	})
	size := 1
	for size < len(in) {
		size = size * 2
	}
	tree := make(geneTree, size)
	tree.importSlice(0, in)
	for i := len(in); i < size; i++ {
		tree[i].maxend = math.MinInt64
	}
	return tree
}

func (tree geneTree) collect(root int, q geneInterval, out *[]int) {
	if root >= len(tree) || tree[root].maxend < q.start {
		return
	}
	node := tree[root]
	tree.collect(root*2+1, q, out)
	if node.iv.start <= q.end && node.iv.end >= q.start {
		*out = append(*out, node.iv.gene)
	}
	if node.iv.start <= q.end {
		tree.collect(root*2+2, q, out)
	}
}

func (tree geneTree) importSlice(root int, in []geneInterval) int64 {
	mid := len(in) / 2
	node := geneTreeNode{iv: in[mid], maxend: in[mid].end}
	if mid > 0 {
		end := tree.importSlice(root*2+1, in[0:mid])
		if end > node.maxend {
			node.maxend = end
		}
	}
	if mid+1 < len(in) {
		end := tree.importSlice(root*2+2, in[mid+1:])
		if end > node.maxend {
			node.maxend = end
		}
	}
	tree[root] = node
	return node.maxend
}
