// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Table is a generic in-memory table: named columns plus string cells.
// Callers can hand one to FromTable instead of a file path.
type Table struct {
	Columns []string
	Rows    [][]string
}

// TableOptions configure file parsing: the field delimiter (0 means
// autodetect tab vs comma on the first line), header presence, and
// explicit 0-based column positions used instead of header lookup.
// Columns are given in the order of the required schema for the table
// kind being read.
type TableOptions struct {
	Comma    rune
	NoHeader bool
	Columns  []int
}

// Input selects the source of one tabular input: a file path or an
// in-memory table. Exactly one of the two is set; the variant is
// dispatched once, during normalization, never re-checked by later
// stages.
type Input struct {
	Path    string
	Table   *Table
	Options *TableOptions
}

// FromPath makes an Input reading from the named file (gzip
// transparent).
func FromPath(path string) Input { return Input{Path: path} }

// FromTable makes an Input backed by an in-memory table.
func FromTable(t *Table) Input { return Input{Table: t} }

// SampleInput selects the source of the sample list: a file path, an
// explicit ID list, or (zero value) all samples observed in the
// segment table.
type SampleInput struct {
	Path     string
	List     []string
	explicit bool
}

// SamplesFromPath makes a SampleInput reading one ID per line from the
// named file.
func SamplesFromPath(path string) SampleInput { return SampleInput{Path: path, explicit: true} }

// SamplesFromList makes a SampleInput from an explicit ID list.
func SamplesFromList(ids []string) SampleInput { return SampleInput{List: ids, explicit: true} }

// Segment is one normalized segment record. Chrom is an ordinal into
// the analysis ChromSet.
type Segment struct {
	Sample   string
	Chrom    int
	Start    int64
	End      int64
	LogRatio float64
}

// Marker is one normalized marker record, unique on (Chrom, Pos).
type Marker struct {
	Name  string
	Chrom int
	Pos   int64
}

// Gene is one normalized gene record.
type Gene struct {
	ID    string
	Name  string
	Chrom int
	Start int64
	End   int64
}

type tableSpec struct {
	name    string
	columns []string
}

var (
	segmentSpec = tableSpec{name: "segments", columns: []string{"Sample", "Chromosome", "Start", "End", "LogRatio"}}
	markerSpec  = tableSpec{name: "markers", columns: []string{"Name", "Chromosome", "Position"}}
	geneSpec    = tableSpec{name: "genes", columns: []string{"ID", "Name", "Chromosome", "Start", "End"}}
)

// loadTable resolves an Input to a canonical table holding exactly the
// required columns of the given spec, in spec order.
func loadTable(in Input, spec tableSpec) (*Table, error) {
	switch {
	case in.Table != nil:
		return projectTable(in.Table, spec)
	case in.Path != "":
		return parseTableFile(in.Path, spec, in.Options)
	default:
		return nil, fmt.Errorf("no %s input provided", spec.name)
	}
}

// projectTable projects an in-memory table onto the required column
// set, dropping extras. Column names match case-insensitively.
func projectTable(t *Table, spec tableSpec) (*Table, error) {
	pos := make(map[string]int, len(t.Columns))
	for i, name := range t.Columns {
		pos[strings.ToLower(name)] = i
	}
	var missing []string
	idx := make([]int, len(spec.columns))
	for i, name := range spec.columns {
		j, ok := pos[strings.ToLower(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		idx[i] = j
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Table: spec.name, Missing: missing}
	}
	if len(t.Rows) == 0 {
		return nil, &EmptyInputError{Table: spec.name}
	}
	out := &Table{Columns: append([]string(nil), spec.columns...)}
	for n, src := range t.Rows {
		row := make([]string, len(idx))
		for i, j := range idx {
			if j >= len(src) {
				return nil, &MalformedInputError{Path: spec.name, Err: fmt.Errorf("row %d has %d fields, need %d", n+1, len(src), j+1)}
			}
			row[i] = strings.TrimSpace(src[j])
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func parseTableFile(path string, spec tableSpec, opts *TableOptions) (*Table, error) {
	f, err := zopen(path)
	if err != nil {
		return nil, &MalformedInputError{Path: path, Err: err}
	}
	defer f.Close()
	t, err := parseTable(f, spec, opts)
	if err != nil {
		switch err.(type) {
		case *SchemaError, *EmptyInputError:
			return nil, err
		}
		return nil, &MalformedInputError{Path: path, Err: err}
	}
	return t, nil
}

func parseTable(rdr io.Reader, spec tableSpec, opts *TableOptions) (*Table, error) {
	if opts == nil {
		opts = &TableOptions{}
	}
	comma := opts.Comma
	sc := bufio.NewScanner(rdr)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	out := &Table{Columns: append([]string(nil), spec.columns...)}
	var idx []int
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		if comma == 0 {
			if strings.ContainsRune(line, '\t') {
				comma = '\t'
			} else {
				comma = ','
			}
		}
		fields := strings.Split(line, string(comma))
		if idx == nil {
			if opts.NoHeader {
				idx = opts.Columns
				if idx == nil {
					idx = make([]int, len(spec.columns))
					for i := range idx {
						idx[i] = i
					}
				}
				// first line is data, fall through
			} else {
				pos := make(map[string]int, len(fields))
				for i, name := range fields {
					pos[strings.ToLower(strings.TrimSpace(name))] = i
				}
				var missing []string
				idx = make([]int, len(spec.columns))
				for i, name := range spec.columns {
					j, ok := pos[strings.ToLower(name)]
					if !ok {
						missing = append(missing, name)
						continue
					}
					idx[i] = j
				}
				if len(missing) > 0 {
					return nil, &SchemaError{Table: spec.name, Missing: missing}
				}
				continue
			}
		}
		row := make([]string, len(idx))
		for i, j := range idx {
			if j >= len(fields) {
				return nil, fmt.Errorf("line %d has %d fields, need %d", lineno, len(fields), j+1)
			}
			row[i] = strings.TrimSpace(fields[j])
		}
		out.Rows = append(out.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out.Rows) == 0 {
		return nil, &EmptyInputError{Table: spec.name}
	}
	return out, nil
}

// parseCoord parses a genomic coordinate, accepting integer or
// integral scientific notation (as written by some R exporters).
func parseCoord(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("coordinate %q is not an integer", s)
	}
	return int64(f), nil
}

func columnValues(t *Table, col string) []string {
	ci := -1
	for i, name := range t.Columns {
		if name == col {
			ci = i
		}
	}
	if ci < 0 {
		return nil
	}
	vals := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		vals = append(vals, row[ci])
	}
	return vals
}

func parseSegments(t *Table, cs *ChromSet) ([]Segment, error) {
	segs := make([]Segment, 0, len(t.Rows))
	for n, row := range t.Rows {
		ord, ok := cs.Ordinal(row[1])
		if !ok {
			return nil, &MalformedInputError{Path: segmentSpec.name, Err: fmt.Errorf("row %d: unknown chromosome %q", n+1, row[1])}
		}
		start, err := parseCoord(row[2])
		if err != nil {
			return nil, &MalformedInputError{Path: segmentSpec.name, Err: fmt.Errorf("row %d: bad start: %v", n+1, err)}
		}
		end, err := parseCoord(row[3])
		if err != nil {
			return nil, &MalformedInputError{Path: segmentSpec.name, Err: fmt.Errorf("row %d: bad end: %v", n+1, err)}
		}
		if start > end {
			return nil, &MalformedInputError{Path: segmentSpec.name, Err: fmt.Errorf("row %d: start %d > end %d", n+1, start, end)}
		}
		lr, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, &MalformedInputError{Path: segmentSpec.name, Err: fmt.Errorf("row %d: bad log-ratio: %v", n+1, err)}
		}
		segs = append(segs, Segment{Sample: row[0], Chrom: ord, Start: start, End: end, LogRatio: lr})
	}
	return segs, nil
}

func parseMarkers(t *Table, cs *ChromSet) ([]Marker, error) {
	mks := make([]Marker, 0, len(t.Rows))
	for n, row := range t.Rows {
		ord, ok := cs.Ordinal(row[1])
		if !ok {
			return nil, &MalformedInputError{Path: markerSpec.name, Err: fmt.Errorf("row %d: unknown chromosome %q", n+1, row[1])}
		}
		pos, err := parseCoord(row[2])
		if err != nil {
			return nil, &MalformedInputError{Path: markerSpec.name, Err: fmt.Errorf("row %d: bad position: %v", n+1, err)}
		}
		mks = append(mks, Marker{Name: row[0], Chrom: ord, Pos: pos})
	}
	return mks, nil
}

// parseGenes converts a projected gene table. Rows on chromosomes
// outside the analysis ChromSet cannot overlap any data and are
// dropped with one summary warning.
func parseGenes(t *Table, cs *ChromSet) ([]Gene, error) {
	genes := make([]Gene, 0, len(t.Rows))
	skipped := 0
	for n, row := range t.Rows {
		ord, ok := cs.Ordinal(row[2])
		if !ok {
			skipped++
			continue
		}
		start, err := parseCoord(row[3])
		if err != nil {
			return nil, &MalformedInputError{Path: geneSpec.name, Err: fmt.Errorf("row %d: bad start: %v", n+1, err)}
		}
		end, err := parseCoord(row[4])
		if err != nil {
			return nil, &MalformedInputError{Path: geneSpec.name, Err: fmt.Errorf("row %d: bad end: %v", n+1, err)}
		}
		if start > end {
			start, end = end, start
		}
		genes = append(genes, Gene{ID: row[0], Name: row[1], Chrom: ord, Start: start, End: end})
	}
	if skipped > 0 {
		log.Warnf("dropped %d gene(s) on chromosomes absent from the data", skipped)
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
	return genes, nil
}

// tidySegments sorts segments into genomic order per sample and
// resolves coordinate anomalies: within one sample and chromosome,
// rows whose extents are mutually inconsistent (contained or
// reordered) are reduced to the longest increasing subsequence by
// segment end, and residual partial overlaps are clipped forward.
func tidySegments(segs []Segment) []Segment {
	sort.SliceStable(segs, func(i, j int) bool {
		a, b := segs[i], segs[j]
		if a.Sample != b.Sample {
			return a.Sample < b.Sample
		}
		if a.Chrom != b.Chrom {
			return a.Chrom < b.Chrom
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End < b.End
	})
	out := segs[:0]
	for lo := 0; lo < len(segs); {
		hi := lo
		for hi < len(segs) && segs[hi].Sample == segs[lo].Sample && segs[hi].Chrom == segs[lo].Chrom {
			hi++
		}
		group := segs[lo:hi]
		keep := longestIncreasingSubsequence(len(group), func(i int) int64 { return group[i].End })
		dropped := len(group) - len(keep)
		clipped := 0
		prevEnd := int64(math.MinInt64)
		for _, gi := range keep {
			seg := group[gi]
			if seg.Start <= prevEnd {
				seg.Start = prevEnd + 1
				clipped++
				if seg.Start > seg.End {
					dropped++
					clipped--
					continue
				}
			}
			prevEnd = seg.End
			out = append(out, seg)
		}
		if dropped > 0 || clipped > 0 {
			log.Warnf("sample %s chromosome ordinal %d: dropped %d overlapping segment(s), clipped %d", group[0].Sample, group[0].Chrom, dropped, clipped)
		}
		lo = hi
	}
	return out
}

// tidyMarkers sorts markers by chromosome ordinal then position and
// de-duplicates on (chromosome, position), keeping the first
// occurrence.
func tidyMarkers(mks []Marker) []Marker {
	sort.SliceStable(mks, func(i, j int) bool {
		a, b := mks[i], mks[j]
		if a.Chrom != b.Chrom {
			return a.Chrom < b.Chrom
		}
		return a.Pos < b.Pos
	})
	out := mks[:0]
	dropped := 0
	for i, m := range mks {
		if i > 0 && m.Chrom == out[len(out)-1].Chrom && m.Pos == out[len(out)-1].Pos {
			dropped++
			continue
		}
		out = append(out, m)
	}
	if dropped > 0 {
		log.Warnf("dropped %d duplicate marker position(s)", dropped)
	}
	return out
}

func observedSamples(segs []Segment) []string {
	seen := map[string]bool{}
	var ids []string
	for _, seg := range segs {
		if !seen[seg.Sample] {
			seen[seg.Sample] = true
			ids = append(ids, seg.Sample)
		}
	}
	sort.Strings(ids)
	return ids
}

// resolveSamples applies the sample-list rules: more than one column
// in a file is a warning (first column used), fewer than two distinct
// IDs is fatal, zero IDs falls back to every sample observed in the
// segment table with a warning. IDs absent from the segment table are
// dropped with a warning.
func resolveSamples(in SampleInput, observed []string) ([]string, error) {
	var raw []string
	switch {
	case in.Path != "":
		var err error
		raw, err = readSampleFile(in.Path)
		if err != nil {
			return nil, err
		}
	case in.explicit:
		raw = in.List
	default:
		return observed, nil
	}
	seen := map[string]bool{}
	var ids []string
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		log.Warn("sample list has no usable IDs; using all samples observed in the segment table")
		return observed, nil
	}
	if len(ids) == 1 {
		return nil, &InsufficientSamplesError{Count: 1}
	}
	inObserved := map[string]bool{}
	for _, id := range observed {
		inObserved[id] = true
	}
	kept := ids[:0]
	for _, id := range ids {
		if inObserved[id] {
			kept = append(kept, id)
		}
	}
	if n := len(ids) - len(kept); n > 0 {
		log.Warnf("ignoring %d sample ID(s) with no segments", n)
	}
	if len(kept) < 2 {
		return nil, &InsufficientSamplesError{Count: len(kept)}
	}
	return kept, nil
}

func readSampleFile(path string) ([]string, error) {
	f, err := zopen(path)
	if err != nil {
		return nil, &MalformedInputError{Path: path, Err: err}
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	var ids []string
	maxCols := 1
	first := true
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		var fields []string
		if strings.ContainsRune(line, '\t') {
			fields = strings.Split(line, "\t")
		} else {
			fields = strings.Split(line, ",")
		}
		if len(fields) > maxCols {
			maxCols = len(fields)
		}
		id := strings.TrimSpace(fields[0])
		if first {
			first = false
			if strings.EqualFold(id, "sample") {
				// header row
				continue
			}
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &MalformedInputError{Path: path, Err: err}
	}
	if maxCols > 1 {
		log.Warnf("sample list %s has %d columns; using the first", path, maxCols)
	}
	return ids, nil
}
