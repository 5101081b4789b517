// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"sort"
	"strconv"
	"strings"
)

// ChromSet is the fixed set of chromosome labels for one genome,
// ordered on a stable genomic ordinal: numeric labels ascending, then
// X, Y, MT, then anything else lexically. It is derived once from the
// union of labels observed across the input tables and reused for
// every table sharing that genome, so cross-table joins agree on
// ordering.
type ChromSet struct {
	Names []string // ordinal order

	index map[string]int
}

// normalizeChrom maps a raw chromosome label to its canonical form:
// upper case, "CHR" prefix stripped.
func normalizeChrom(label string) string {
	label = strings.ToUpper(strings.TrimSpace(label))
	return strings.TrimPrefix(label, "CHR")
}

func chromSortKey(name string) (class int, num int64) {
	if n, err := strconv.ParseInt(name, 10, 64); err == nil {
		return 0, n
	}
	switch name {
	case "X":
		return 1, 0
	case "Y":
		return 2, 0
	case "MT":
		return 3, 0
	}
	return 4, 0
}

// newChromSet builds the ordinal set from the union of the given label
// slices. Labels are case-normalized before de-duplication.
func newChromSet(labelSets ...[]string) *ChromSet {
	seen := map[string]bool{}
	var names []string
	for _, labels := range labelSets {
		for _, label := range labels {
			name := normalizeChrom(label)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		ci, ni := chromSortKey(names[i])
		cj, nj := chromSortKey(names[j])
		if ci != cj {
			return ci < cj
		}
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})
	cs := &ChromSet{Names: names}
	cs.buildIndex()
	return cs
}

func (cs *ChromSet) buildIndex() {
	cs.index = make(map[string]int, len(cs.Names))
	for i, name := range cs.Names {
		cs.index[name] = i
	}
}

// Ordinal returns the position of the given label in genomic order.
// The second return is false if the label is not part of the set.
func (cs *ChromSet) Ordinal(label string) (int, bool) {
	if cs.index == nil {
		// rebuilt lazily after gob decode
		cs.buildIndex()
	}
	ord, ok := cs.index[normalizeChrom(label)]
	return ord, ok
}

// Name returns the canonical label for an ordinal.
func (cs *ChromSet) Name(ord int) string {
	return cs.Names[ord]
}

func (cs *ChromSet) Len() int { return len(cs.Names) }
