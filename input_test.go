// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"os"
	"strings"

	"gopkg.in/check.v1"
)

type inputSuite struct{}

var _ = check.Suite(&inputSuite{})

func (s *inputSuite) TestChromOrdinalOrder(c *check.C) {
	cs := newChromSet([]string{"chr10", "chr2", "chr1", "X", "MT", "chr22", "Y", "GL000009"})
	c.Check(cs.Names, check.DeepEquals, []string{"1", "2", "10", "22", "X", "Y", "MT", "GL000009"})
	ord, ok := cs.Ordinal("ChR2")
	c.Check(ok, check.Equals, true)
	c.Check(ord, check.Equals, 1)
	ord, ok = cs.Ordinal("x")
	c.Check(ok, check.Equals, true)
	c.Check(ord, check.Equals, 4)
	_, ok = cs.Ordinal("17")
	c.Check(ok, check.Equals, false)
}

func (s *inputSuite) TestChromSetSharedAcrossTables(c *check.C) {
	// marker table says "1", segment table says "chr1"; both name the
	// same chromosome in the family's shared ordinal set
	a := testAnalysis(c)
	c.Check(a.Chroms.Names, check.DeepEquals, []string{"1", "2", "X"})
	ord, ok := a.Chroms.Ordinal("chr2")
	c.Check(ok, check.Equals, true)
	c.Check(ord, check.Equals, 1)
}

func (s *inputSuite) TestLoadTableVariants(c *check.C) {
	fromTable, err := loadTable(FromTable(testSegmentTable()), segmentSpec)
	c.Assert(err, check.IsNil)

	fnm := c.MkDir() + "/segments.tsv"
	c.Assert(os.WriteFile(fnm, []byte(tableTSV(testSegmentTable())), 0644), check.IsNil)
	fromPath, err := loadTable(FromPath(fnm), segmentSpec)
	c.Assert(err, check.IsNil)
	c.Check(fromPath, check.DeepEquals, fromTable)
}

func (s *inputSuite) TestLoadTableCommaDelimited(c *check.C) {
	fnm := c.MkDir() + "/segments.csv"
	csv := strings.ReplaceAll(tableTSV(testSegmentTable()), "\t", ",")
	c.Assert(os.WriteFile(fnm, []byte(csv), 0644), check.IsNil)
	got, err := loadTable(FromPath(fnm), segmentSpec)
	c.Assert(err, check.IsNil)
	want, _ := loadTable(FromTable(testSegmentTable()), segmentSpec)
	c.Check(got, check.DeepEquals, want)
}

func (s *inputSuite) TestHeaderlessTableWithColumnPositions(c *check.C) {
	fnm := c.MkDir() + "/markers.txt"
	c.Assert(os.WriteFile(fnm, []byte("chr\tm1\t1\t100\nchr\tm2\t1\t200\n"), 0644), check.IsNil)
	in := FromPath(fnm)
	in.Options = &TableOptions{NoHeader: true, Columns: []int{1, 2, 3}}
	t, err := loadTable(in, markerSpec)
	c.Assert(err, check.IsNil)
	c.Check(t.Columns, check.DeepEquals, []string{"Name", "Chromosome", "Position"})
	c.Check(t.Rows, check.DeepEquals, [][]string{{"m1", "1", "100"}, {"m2", "1", "200"}})
}

func (s *inputSuite) TestSchemaErrorAccumulates(c *check.C) {
	t := &Table{
		Columns: []string{"Sample", "Chromosome", "End"},
		Rows:    [][]string{{"s1", "1", "100"}},
	}
	_, err := loadTable(FromTable(t), segmentSpec)
	serr, ok := err.(*SchemaError)
	c.Assert(ok, check.Equals, true, check.Commentf("got %T: %v", err, err))
	c.Check(serr.Missing, check.DeepEquals, []string{"Start", "LogRatio"})
}

func (s *inputSuite) TestEmptyTable(c *check.C) {
	t := &Table{Columns: []string{"Sample", "Chromosome", "Start", "End", "LogRatio"}}
	_, err := loadTable(FromTable(t), segmentSpec)
	c.Check(err, check.FitsTypeOf, &EmptyInputError{})

	fnm := c.MkDir() + "/empty.tsv"
	c.Assert(os.WriteFile(fnm, []byte("Sample\tChromosome\tStart\tEnd\tLogRatio\n"), 0644), check.IsNil)
	_, err = loadTable(FromPath(fnm), segmentSpec)
	c.Check(err, check.FitsTypeOf, &EmptyInputError{})
}

func (s *inputSuite) TestMalformedRows(c *check.C) {
	cs := newChromSet([]string{"1"})
	for _, trial := range []struct {
		row    []string
		expect string
	}{
		{[]string{"s1", "2", "100", "200", "0.5"}, "unknown chromosome"},
		{[]string{"s1", "1", "abc", "200", "0.5"}, "bad start"},
		{[]string{"s1", "1", "100", "1e3.5", "0.5"}, "bad end"},
		{[]string{"s1", "1", "300", "200", "0.5"}, "start 300 > end 200"},
		{[]string{"s1", "1", "100", "200", "zz"}, "bad log-ratio"},
	} {
		t := &Table{Columns: segmentSpec.columns, Rows: [][]string{trial.row}}
		projected, err := loadTable(FromTable(t), segmentSpec)
		c.Assert(err, check.IsNil)
		_, err = parseSegments(projected, cs)
		c.Assert(err, check.FitsTypeOf, &MalformedInputError{}, check.Commentf("row %v", trial.row))
		c.Check(err, check.ErrorMatches, ".*"+trial.expect+".*", check.Commentf("row %v", trial.row))
	}
}

func (s *inputSuite) TestIntegralFloatCoords(c *check.C) {
	// "2.5e3" style coordinates appear in exported tables; accept them
	// as long as they are integral
	pos, err := parseCoord("2.5e3")
	c.Check(err, check.IsNil)
	c.Check(pos, check.Equals, int64(2500))
	_, err = parseCoord("2.5")
	c.Check(err, check.NotNil)
}

func (s *inputSuite) TestShortRowRejected(c *check.C) {
	t := &Table{
		Columns: []string{"Sample", "Chromosome", "Start", "End", "LogRatio"},
		Rows:    [][]string{{"s1", "1", "100"}},
	}
	_, err := loadTable(FromTable(t), segmentSpec)
	c.Check(err, check.FitsTypeOf, &MalformedInputError{})
}

func (s *inputSuite) TestSampleListRules(c *check.C) {
	observed := []string{"s1", "s2", "s3", "s4"}

	// exactly one distinct ID is fatal, even when repeated
	_, err := resolveSamples(SamplesFromList([]string{"s1", "s1", " s1 "}), observed)
	c.Check(err, check.FitsTypeOf, &InsufficientSamplesError{})

	// zero usable IDs falls back to everything observed
	ids, err := resolveSamples(SamplesFromList([]string{"", "  "}), observed)
	c.Check(err, check.IsNil)
	c.Check(ids, check.DeepEquals, observed)

	// unknown IDs are dropped; the survivors are kept in list order
	ids, err = resolveSamples(SamplesFromList([]string{"s3", "nope", "s1"}), observed)
	c.Check(err, check.IsNil)
	c.Check(ids, check.DeepEquals, []string{"s3", "s1"})

	// dropping unknowns below two is fatal
	_, err = resolveSamples(SamplesFromList([]string{"s3", "nope"}), observed)
	c.Check(err, check.FitsTypeOf, &InsufficientSamplesError{})

	// zero value means all observed samples, silently
	ids, err = resolveSamples(SampleInput{}, observed)
	c.Check(err, check.IsNil)
	c.Check(ids, check.DeepEquals, observed)
}

func (s *inputSuite) TestSampleListFile(c *check.C) {
	fnm := c.MkDir() + "/samples.tsv"
	c.Assert(os.WriteFile(fnm, []byte("Sample\tBatch\ns2\tb1\ns4\tb2\n"), 0644), check.IsNil)
	ids, err := resolveSamples(SamplesFromPath(fnm), []string{"s1", "s2", "s3", "s4"})
	c.Assert(err, check.IsNil)
	c.Check(ids, check.DeepEquals, []string{"s2", "s4"})
}

func (s *inputSuite) TestTidySegmentsClipsOverlap(c *check.C) {
	segs := []Segment{
		{Sample: "s1", Chrom: 0, Start: 300, End: 700, LogRatio: 0.2},
		{Sample: "s1", Chrom: 0, Start: 100, End: 500, LogRatio: 0.5},
	}
	tidied := tidySegments(segs)
	c.Assert(tidied, check.HasLen, 2)
	c.Check(tidied[0].Start, check.Equals, int64(100))
	c.Check(tidied[0].End, check.Equals, int64(500))
	c.Check(tidied[1].Start, check.Equals, int64(501))
	c.Check(tidied[1].End, check.Equals, int64(700))
}

func (s *inputSuite) TestTidySegmentsDropsContained(c *check.C) {
	segs := []Segment{
		{Sample: "s1", Chrom: 0, Start: 100, End: 900, LogRatio: 0.1},
		{Sample: "s1", Chrom: 0, Start: 200, End: 300, LogRatio: 0.9},
		{Sample: "s1", Chrom: 0, Start: 950, End: 990, LogRatio: 0.3},
	}
	tidied := tidySegments(segs)
	// one of the two inconsistent rows goes away; the disjoint row
	// survives untouched
	c.Assert(tidied, check.HasLen, 2)
	c.Check(tidied[1].Start, check.Equals, int64(950))
	c.Check(tidied[1].End, check.Equals, int64(990))
}

func (s *inputSuite) TestTidyMarkers(c *check.C) {
	mks := []Marker{
		{Name: "b", Chrom: 0, Pos: 200},
		{Name: "a", Chrom: 0, Pos: 100},
		{Name: "dup", Chrom: 0, Pos: 100},
		{Name: "c", Chrom: 1, Pos: 50},
	}
	tidied := tidyMarkers(mks)
	c.Assert(tidied, check.HasLen, 3)
	c.Check(tidied[0].Name, check.Equals, "a")
	c.Check(tidied[1].Name, check.Equals, "b")
	c.Check(tidied[2].Name, check.Equals, "c")
}

func (s *inputSuite) TestGenesOutsideChromSetDropped(c *check.C) {
	cs := newChromSet([]string{"1"})
	t, err := loadTable(FromTable(&Table{
		Columns: geneSpec.columns,
		Rows: [][]string{
			{"ENSG1", "A", "1", "100", "200"},
			{"ENSG2", "B", "7", "100", "200"},
		},
	}), geneSpec)
	c.Assert(err, check.IsNil)
	genes, err := parseGenes(t, cs)
	c.Assert(err, check.IsNil)
	c.Assert(genes, check.HasLen, 1)
	c.Check(genes[0].ID, check.Equals, "ENSG1")
}
