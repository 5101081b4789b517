// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"bufio"
	"flag"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// dumpcmd prints a human-readable rendering of a saved analysis:
// configuration, chromosome set, sample coverage, and whatever stage
// outputs are present.
type dumpcmd struct{}

func (dcmd *dumpcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := dcmd.run(prog, args, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

func (dcmd *dumpcmd) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
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
	bufw := bufio.NewWriterSize(output, 1<<20)
	dcmd.dump(a, bufw)
	err = bufw.Flush()
	if err != nil {
		return err
	}
	return output.Close()
}

func (dcmd *dumpcmd) dump(a *Analysis, bufw io.Writer) {
	fmt.Fprintf(bufw, "config: fdr %v, amp level %v, del level %v, min seg markers %d, min probes %d, focal threshold %d, mean bounds [%v, %v]\n",
		a.Config.FDR, a.Config.GainThreshold, a.Config.LossThreshold,
		a.Config.MinSegMarkers, a.Config.MinProbes, a.Config.FocalThreshold,
		a.Config.MinMean, a.Config.MaxMean)
	fmt.Fprintf(bufw, "chromosomes: %v\n", a.Chroms.Names)
	fmt.Fprintf(bufw, "samples: %d\n", len(a.Samples))
	fmt.Fprintf(bufw, "markers: %d\n", len(a.Markers))
	for _, id := range a.Samples {
		fmt.Fprintf(bufw, "sample %q: %d spans\n", id, len(a.Spans[id]))
	}
	if a.Genes != nil {
		fmt.Fprintf(bufw, "genes: %d\n", len(a.Genes))
	}
	for _, p := range []*Params{a.GainParams, a.LossParams} {
		if p == nil {
			continue
		}
		fmt.Fprintf(bufw, "params %+d: threshold %v, intercept %v, slope %v, sigma %v, null maxima %d\n",
			p.Direction, p.Threshold, p.Intercept, p.Slope, p.Sigma, len(p.NullMax))
	}
	for _, set := range []*SegmentSet{a.GainSegs, a.LossSegs} {
		if set == nil {
			continue
		}
		fmt.Fprintf(bufw, "segments %+d: %d candidates, norm %v\n", set.Direction, len(set.Segments), set.Norm)
	}
	for _, set := range []*EventSet{a.GainEvents, a.LossEvents} {
		if set == nil {
			continue
		}
		fmt.Fprintf(bufw, "events %+d: %d\n", set.Direction, len(set.Events))
		for _, ev := range set.Events {
			fmt.Fprintf(bufw, "event %+d: %s:%d-%d, markers %d, amplitude %v, p %v/%v, q %v/%v\n",
				set.Direction, a.Chroms.Name(ev.Chrom), ev.Start, ev.End, ev.Markers, ev.Amplitude,
				ev.LeftP, ev.RightP, ev.LeftQ, ev.RightQ)
		}
	}
	for _, set := range []*FocalSet{a.FocalGains, a.FocalLosses} {
		if set == nil {
			continue
		}
		fmt.Fprintf(bufw, "focal %+d: %d\n", set.Direction, len(set.Events))
		for _, ev := range set.Events {
			fmt.Fprintf(bufw, "focal %+d: %s:%d-%d, genes %v\n",
				set.Direction, a.Chroms.Name(ev.Chrom), ev.Start, ev.End, ev.GeneSymbols)
		}
	}
	if a.QAll != nil {
		fmt.Fprintf(bufw, "q.all: %d values\n", len(a.QAll))
	}
}
