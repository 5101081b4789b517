// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// statscmd summarizes a saved analysis as JSON: cohort size, marker
// coverage, and per-stage output counts.
type statscmd struct{}

func (scmd *statscmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := scmd.run(prog, args, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

func (scmd *statscmd) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputState := flags.String("i", "-", "input state `file` (\"-\" = stdin)")
	outputFilename := flags.String("o", "-", "output `file`")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warning, error, fatal, or panic)")
	err := flags.Parse(args)
	if err == flag.ErrHelp {
		return nil
	} else if err != nil {
		return err
	} else if flags.NArg() > 0 {
		return fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())
	}
	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)

	a, err := loadState(*inputState, stdin)
	if err != nil {
		return err
	}
	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = zcreate(*outputFilename)
		if err != nil {
			return err
		}
	}
	bufw := bufio.NewWriter(output)
	err = scmd.doStats(a, bufw)
	if err != nil {
		return err
	}
	err = bufw.Flush()
	if err != nil {
		return err
	}
	return output.Close()
}

func (scmd *statscmd) doStats(a *Analysis, output io.Writer) error {
	var ret struct {
		Samples       int
		Markers       int
		MappedMarkers int
		Chromosomes   []string
		Genes         int
		Stages        struct {
			Estimated    bool
			Segmented    bool
			EventsCalled bool
			FocalCalled  bool
		}
		GainSegments int
		LossSegments int
		GainEvents   int
		LossEvents   int
		FocalGains   int
		FocalLosses  int
		QValues      int
	}
	ret.Samples = len(a.Samples)
	ret.Markers = len(a.Markers)
	ret.MappedMarkers = buildAgg(a.Spans, a.Markers, a.Chroms.Len()).Len()
	ret.Chromosomes = a.Chroms.Names
	ret.Genes = len(a.Genes)
	ret.Stages.Estimated = a.done(stageEstimate)
	ret.Stages.Segmented = a.done(stageSegment)
	ret.Stages.EventsCalled = a.done(stageEvents)
	ret.Stages.FocalCalled = a.done(stageFocal)
	if a.GainSegs != nil {
		ret.GainSegments = len(a.GainSegs.Segments)
	}
	if a.LossSegs != nil {
		ret.LossSegments = len(a.LossSegs.Segments)
	}
	if a.GainEvents != nil {
		ret.GainEvents = len(a.GainEvents.Events)
	}
	if a.LossEvents != nil {
		ret.LossEvents = len(a.LossEvents.Events)
	}
	if a.FocalGains != nil {
		ret.FocalGains = len(a.FocalGains.Events)
	}
	if a.FocalLosses != nil {
		ret.FocalLosses = len(a.FocalLosses.Events)
	}
	ret.QValues = len(a.QAll)
	return json.NewEncoder(output).Encode(ret)
}
