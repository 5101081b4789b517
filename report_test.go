// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/check.v1"
)

type reportSuite struct{}

var _ = check.Suite(&reportSuite{})

func reportFixture() (*FocalSet, *ChromSet) {
	cs := newChromSet([]string{"1", "2"}, nil)
	set := &FocalSet{
		Direction: 1,
		Events: []FocalEvent{{
			Event: Event{
				Chrom:      0,
				Start:      300,
				End:        500,
				Markers:    3,
				LeftP:      0.001,
				RightP:     0.002,
				LeftQ:      0.004,
				RightQ:     0.008,
				Percentile: 0.25,
			},
			GeneSymbols: []string{"GENEA", "GENEC"},
			GeneIDs:     []string{"ENSG0001", "ENSG0003"},
		}, {
			Event: Event{
				Chrom:      1,
				Start:      200,
				End:        300,
				Markers:    2,
				LeftP:      0.5,
				RightP:     0.5,
				LeftQ:      1,
				RightQ:     1,
				Percentile: math.NaN(),
			},
		}},
	}
	return set, cs
}

func (s *reportSuite) TestHeaderAndRows(c *check.C) {
	set, cs := reportFixture()
	var buf bytes.Buffer
	c.Assert(writeReport(&buf, set, cs), check.IsNil)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	c.Assert(lines, check.HasLen, 3)
	c.Check(lines[0], check.Equals, "Chromosome\tStart\tEnd\tPercentile_pValue\tLeft_break_-log10pValue\tRight_break_-log10pValue\tLeft_break_-log10qValue\tRight_break_-log10qValue\tGene_symb\tEnsembl_id")

	fields := strings.Split(lines[1], "\t")
	c.Assert(fields, check.HasLen, 10)
	c.Check(fields[0], check.Equals, "1")
	c.Check(fields[1], check.Equals, "300")
	c.Check(fields[2], check.Equals, "500")
	c.Check(fields[3], check.Equals, "2.50000e-01")
	c.Check(fields[4], check.Equals, "3.00000e+00") // -log10(0.001)
	c.Check(fields[8], check.Equals, "GENEA,GENEC")
	c.Check(fields[9], check.Equals, "ENSG0001,ENSG0003")

	fields = strings.Split(lines[2], "\t")
	c.Check(fields[0], check.Equals, "2")
	c.Check(fields[3], check.Equals, "not available")
	c.Check(fields[8], check.Equals, "")
	c.Check(fields[9], check.Equals, "")
}

func (s *reportSuite) TestEmptyCollection(c *check.C) {
	set := &FocalSet{Direction: -1}
	cs := newChromSet([]string{"1"}, nil)
	var buf bytes.Buffer
	c.Assert(writeReport(&buf, set, cs), check.IsNil)
	c.Check(buf.String(), check.Equals, reportHeader+"\n")
}

func (s *reportSuite) TestStatFormatting(c *check.C) {
	c.Check(formatStat(0.25), check.Equals, "2.50000e-01")
	c.Check(formatStat(123.456), check.Equals, "1.23456e+02")
	// p-values at or below the floor clamp instead of overflowing
	c.Check(formatStat(neglog10(0)), check.Equals, "3.00000e+02")
	c.Check(formatStat(neglog10(1e-310)), check.Equals, "3.00000e+02")
	c.Check(formatPercentile(math.NaN()), check.Equals, "not available")
}

func (s *reportSuite) TestRoundTrip(c *check.C) {
	// parsing the report back recovers positions, genes, and the
	// missing-percentile sentinel
	set, cs := reportFixture()
	var buf bytes.Buffer
	c.Assert(writeReport(&buf, set, cs), check.IsNil)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")[1:]
	c.Assert(lines, check.HasLen, len(set.Events))
	for i, line := range lines {
		fields := strings.Split(line, "\t")
		c.Assert(fields, check.HasLen, 10)
		c.Check(fields[0], check.Equals, cs.Name(set.Events[i].Chrom))
		start, err := strconv.ParseInt(fields[1], 10, 64)
		c.Assert(err, check.IsNil)
		c.Check(start, check.Equals, set.Events[i].Start)
		end, err := strconv.ParseInt(fields[2], 10, 64)
		c.Assert(err, check.IsNil)
		c.Check(end, check.Equals, set.Events[i].End)
		if math.IsNaN(set.Events[i].Percentile) {
			c.Check(fields[3], check.Equals, notAvailable)
		} else {
			p, err := strconv.ParseFloat(fields[3], 64)
			c.Assert(err, check.IsNil)
			c.Check(almostEqual(p, set.Events[i].Percentile), check.Equals, true)
		}
		var symbols []string
		if fields[8] != "" {
			symbols = strings.Split(fields[8], ",")
		}
		c.Check(symbols, check.DeepEquals, set.Events[i].GeneSymbols)
	}
}

func (s *reportSuite) TestFileAndGzipDestinations(c *check.C) {
	a, _ := stubbedAnalysis(c)
	_, err := a.CallFocalEvents(genesInput())
	c.Assert(err, check.IsNil)

	dir := c.MkDir()
	plain := filepath.Join(dir, "gains.tsv")
	c.Assert(a.WriteReport(a.FocalGains, plain), check.IsNil)
	buf, err := os.ReadFile(plain)
	c.Assert(err, check.IsNil)
	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	c.Assert(lines, check.HasLen, 2)
	c.Check(lines[0], check.Equals, reportHeader)
	c.Check(strings.HasPrefix(lines[1], "1\t300\t500\t"), check.Equals, true, check.Commentf("row %q", lines[1]))

	zipped := filepath.Join(dir, "losses.tsv.gz")
	c.Assert(a.WriteReport(a.FocalLosses, zipped), check.IsNil)
	rdr, err := zopen(zipped)
	c.Assert(err, check.IsNil)
	defer rdr.Close()
	buf, err = io.ReadAll(rdr)
	c.Assert(err, check.IsNil)
	c.Check(strings.HasPrefix(string(buf), reportHeader+"\n2\t200\t300\t"), check.Equals, true, check.Commentf("content %q", string(buf)))
}
