// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/check.v1"
)

type pipelineSuite struct{}

var _ = check.Suite(&pipelineSuite{})

// writeInputs renders the fixture tables into files the commands can
// read.
func writeInputs(c *check.C) (segfile, mkfile, genesfile string) {
	tmpdir := c.MkDir()
	segfile = filepath.Join(tmpdir, "segments.tsv")
	mkfile = filepath.Join(tmpdir, "markers.tsv")
	genesfile = filepath.Join(tmpdir, "genes.tsv")
	c.Assert(os.WriteFile(segfile, []byte(tableTSV(testSegmentTable())), 0644), check.IsNil)
	c.Assert(os.WriteFile(mkfile, []byte(tableTSV(testMarkerTable())), 0644), check.IsNil)
	c.Assert(os.WriteFile(genesfile, []byte(tableTSV(testGeneTable())), 0644), check.IsNil)
	return
}

func (s *pipelineSuite) TestStagedPipeline(c *check.C) {
	segfile, mkfile, genesfile := writeInputs(c)
	tmpdir := c.MkDir()

	state := make([]string, 5)
	for i := range state {
		state[i] = filepath.Join(tmpdir, "state"+string(rune('0'+i))+".gob")
	}

	code := (&stagecmd{target: stageEstimate}).RunCommand("rubic estimate", []string{
		"-segments", segfile, "-markers", mkfile,
		"-min-probes=1", "-permutations=5", "-seed=7",
		"-o", state[1],
	}, bytes.NewReader(nil), &bytes.Buffer{}, os.Stderr)
	c.Assert(code, check.Equals, 0)

	code = (&stagecmd{target: stageSegment}).RunCommand("rubic segment", []string{
		"-i", state[1], "-o", state[2],
	}, bytes.NewReader(nil), &bytes.Buffer{}, os.Stderr)
	c.Assert(code, check.Equals, 0)

	code = (&stagecmd{target: stageEvents}).RunCommand("rubic call-events", []string{
		"-i", state[2], "-o", state[3],
	}, bytes.NewReader(nil), &bytes.Buffer{}, os.Stderr)
	c.Assert(code, check.Equals, 0)

	code = (&stagecmd{target: stageFocal}).RunCommand("rubic call-focal", []string{
		"-i", state[3], "-genes", genesfile, "-o", state[4],
	}, bytes.NewReader(nil), &bytes.Buffer{}, os.Stderr)
	c.Assert(code, check.Equals, 0)

	gainsfile := filepath.Join(tmpdir, "gains.tsv")
	lossesfile := filepath.Join(tmpdir, "losses.tsv")
	code = (&reportcmd{}).RunCommand("rubic report", []string{
		"-i", state[4], "-out-gains", gainsfile, "-out-losses", lossesfile,
	}, bytes.NewReader(nil), &bytes.Buffer{}, os.Stderr)
	c.Assert(code, check.Equals, 0)

	buf, err := os.ReadFile(gainsfile)
	c.Assert(err, check.IsNil)
	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	c.Assert(lines, check.HasLen, 2)
	c.Check(lines[0], check.Equals, reportHeader)
	fields := strings.Split(lines[1], "\t")
	c.Assert(fields, check.HasLen, 10)
	c.Check(fields[0:3], check.DeepEquals, []string{"1", "300", "500"})
	c.Check(fields[8], check.Equals, "GENEA")

	buf, err = os.ReadFile(lossesfile)
	c.Assert(err, check.IsNil)
	lines = strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	c.Assert(lines, check.HasLen, 2)
	fields = strings.Split(lines[1], "\t")
	c.Check(fields[0:3], check.DeepEquals, []string{"2", "200", "300"})
	c.Check(fields[8], check.Equals, "GENEB")

	statsout := &bytes.Buffer{}
	code = (&statscmd{}).RunCommand("rubic stats", []string{"-i", state[4]}, bytes.NewReader(nil), statsout, os.Stderr)
	c.Assert(code, check.Equals, 0)
	c.Logf("%s", statsout.String())
	var st struct {
		Samples       int
		Markers       int
		MappedMarkers int
		Chromosomes   []string
		Stages        struct {
			Estimated    bool
			Segmented    bool
			EventsCalled bool
			FocalCalled  bool
		}
		GainEvents  int
		LossEvents  int
		FocalGains  int
		FocalLosses int
		QValues     int
	}
	c.Assert(json.Unmarshal(statsout.Bytes(), &st), check.IsNil)
	c.Check(st.Samples, check.Equals, 4)
	c.Check(st.Markers, check.Equals, 18)
	c.Check(st.MappedMarkers, check.Equals, 18)
	c.Check(st.Chromosomes, check.DeepEquals, []string{"1", "2", "X"})
	c.Check(st.Stages.Estimated, check.Equals, true)
	c.Check(st.Stages.FocalCalled, check.Equals, true)
	c.Check(st.GainEvents, check.Equals, 1)
	c.Check(st.LossEvents, check.Equals, 1)
	c.Check(st.FocalGains, check.Equals, 1)
	c.Check(st.FocalLosses, check.Equals, 1)
	c.Check(st.QValues, check.Equals, 4)

	dumpout := &bytes.Buffer{}
	code = (&dumpcmd{}).RunCommand("rubic dump", []string{"-i", state[4]}, bytes.NewReader(nil), dumpout, os.Stderr)
	c.Assert(code, check.Equals, 0)
	c.Check(strings.Contains(dumpout.String(), "GENEA"), check.Equals, true)
}

func (s *pipelineSuite) TestRunCommand(c *check.C) {
	segfile, mkfile, genesfile := writeInputs(c)
	tmpdir := c.MkDir()
	gainsfile := filepath.Join(tmpdir, "focal_gains.tsv")
	lossesfile := filepath.Join(tmpdir, "focal_losses.tsv")
	statefile := filepath.Join(tmpdir, "state.gob")

	code := (&runcmd{}).RunCommand("rubic run", []string{
		"-segments", segfile, "-markers", mkfile, "-genes", genesfile,
		"-min-probes=1", "-permutations=5", "-seed=7",
		"-out-gains", gainsfile, "-out-losses", lossesfile,
		"-o", statefile,
	}, bytes.NewReader(nil), &bytes.Buffer{}, os.Stderr)
	c.Assert(code, check.Equals, 0)

	for _, fnm := range []string{gainsfile, lossesfile, statefile} {
		fi, err := os.Stat(fnm)
		c.Assert(err, check.IsNil)
		c.Check(fi.Size() > 0, check.Equals, true, check.Commentf("%s is empty", fnm))
	}
	buf, err := os.ReadFile(gainsfile)
	c.Assert(err, check.IsNil)
	c.Check(strings.HasPrefix(string(buf), reportHeader+"\n1\t300\t500\t"), check.Equals, true, check.Commentf("gains: %q", string(buf)))

	a, err := LoadFile(statefile)
	c.Assert(err, check.IsNil)
	c.Check(a.done(stageFocal), check.Equals, true)
}

func (s *pipelineSuite) TestReportTriggersMissingStages(c *check.C) {
	segfile, mkfile, genesfile := writeInputs(c)
	tmpdir := c.MkDir()
	statefile := filepath.Join(tmpdir, "estimated.gob")

	code := (&stagecmd{target: stageEstimate}).RunCommand("rubic estimate", []string{
		"-segments", segfile, "-markers", mkfile,
		"-min-probes=1", "-permutations=5", "-seed=7",
		"-o", statefile,
	}, bytes.NewReader(nil), &bytes.Buffer{}, os.Stderr)
	c.Assert(code, check.Equals, 0)

	gainsfile := filepath.Join(tmpdir, "gains.tsv")
	lossesfile := filepath.Join(tmpdir, "losses.tsv")
	finalstate := filepath.Join(tmpdir, "final.gob")
	code = (&reportcmd{}).RunCommand("rubic report", []string{
		"-i", statefile, "-genes", genesfile,
		"-out-gains", gainsfile, "-out-losses", lossesfile,
		"-o", finalstate,
	}, bytes.NewReader(nil), &bytes.Buffer{}, os.Stderr)
	c.Assert(code, check.Equals, 0)

	buf, err := os.ReadFile(gainsfile)
	c.Assert(err, check.IsNil)
	c.Check(strings.HasPrefix(string(buf), reportHeader+"\n1\t300\t500\t"), check.Equals, true)

	a, err := LoadFile(finalstate)
	c.Assert(err, check.IsNil)
	c.Check(a.done(stageFocal), check.Equals, true)
}

func (s *pipelineSuite) TestStateThroughPipes(c *check.C) {
	segfile, mkfile, _ := writeInputs(c)

	estout := &bytes.Buffer{}
	code := (&stagecmd{target: stageEstimate}).RunCommand("rubic estimate", []string{
		"-segments", segfile, "-markers", mkfile,
		"-min-probes=1", "-permutations=5", "-seed=7",
		"-o", "-",
	}, bytes.NewReader(nil), estout, os.Stderr)
	c.Assert(code, check.Equals, 0)
	c.Assert(estout.Len() > 0, check.Equals, true)

	segout := &bytes.Buffer{}
	code = (&stagecmd{target: stageSegment}).RunCommand("rubic segment", []string{
		"-i", "-", "-o", "-",
	}, bytes.NewReader(estout.Bytes()), segout, os.Stderr)
	c.Assert(code, check.Equals, 0)

	a, err := LoadAnalysis(bytes.NewReader(segout.Bytes()))
	c.Assert(err, check.IsNil)
	c.Check(a.done(stageSegment), check.Equals, true)
	c.Check(a.done(stageEvents), check.Equals, false)
}

func (s *pipelineSuite) TestExportNumpy(c *check.C) {
	segfile, mkfile, _ := writeInputs(c)
	tmpdir := c.MkDir()
	statefile := filepath.Join(tmpdir, "state.gob")

	code := (&stagecmd{target: stageEstimate}).RunCommand("rubic estimate", []string{
		"-segments", segfile, "-markers", mkfile,
		"-min-probes=1", "-permutations=2", "-seed=1",
		"-o", statefile,
	}, bytes.NewReader(nil), &bytes.Buffer{}, os.Stderr)
	c.Assert(code, check.Equals, 0)

	outdir := c.MkDir()
	code = (&exportNumpy{}).RunCommand("rubic export-numpy", []string{
		"-i", statefile, "-output-dir", outdir,
	}, bytes.NewReader(nil), &bytes.Buffer{}, os.Stderr)
	c.Assert(code, check.Equals, 0)
	for _, fnm := range []string{"matrix.npy", "markers.csv", "samples.csv"} {
		fi, err := os.Stat(filepath.Join(outdir, fnm))
		c.Assert(err, check.IsNil, check.Commentf("%s missing", fnm))
		c.Check(fi.Size() > 0, check.Equals, true)
	}
	buf, err := os.ReadFile(filepath.Join(outdir, "samples.csv"))
	c.Assert(err, check.IsNil)
	c.Check(strings.HasPrefix(string(buf), "Sample\ns1\n"), check.Equals, true, check.Commentf("%q", string(buf)))
}

func (s *pipelineSuite) TestVersion(c *check.C) {
	stdout := &bytes.Buffer{}
	code := handler.RunCommand("rubic", []string{"version"}, bytes.NewReader(nil), stdout, os.Stderr)
	c.Check(code, check.Equals, 0)
	c.Check(stdout.Len() > 0, check.Equals, true)
}

func (s *pipelineSuite) TestBadInvocations(c *check.C) {
	stderr := &bytes.Buffer{}
	code := (&stagecmd{target: stageEstimate}).RunCommand("rubic estimate", []string{"-markers", "x.tsv"}, bytes.NewReader(nil), &bytes.Buffer{}, stderr)
	c.Check(code, check.Equals, 1)
	c.Check(strings.Contains(stderr.String(), "-segments file not specified"), check.Equals, true)

	stderr.Reset()
	code = (&statscmd{}).RunCommand("rubic stats", []string{"-i", "nonexistent.gob", "extra"}, bytes.NewReader(nil), &bytes.Buffer{}, stderr)
	c.Check(code, check.Equals, 1)
	c.Check(strings.Contains(stderr.String(), "errant command line arguments"), check.Equals, true)

	stderr.Reset()
	code = (&reportcmd{}).RunCommand("rubic report", []string{"-i", "nonexistent.gob"}, bytes.NewReader(nil), &bytes.Buffer{}, stderr)
	c.Check(code, check.Equals, 1)
}
