// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"

	log "github.com/sirupsen/logrus"
)

// runcmd runs the whole pipeline in one shot: normalize inputs,
// estimate the background, aggregate segments, call events, call
// focal events, and write the two focal reports.
type runcmd struct{}

func (rcmd *runcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := rcmd.run(prog, args, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

func (rcmd *runcmd) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	outGains := flags.String("out-gains", "focal_gains.tsv", "write focal gains TSV to `file`")
	outLosses := flags.String("out-losses", "focal_losses.tsv", "write focal losses TSV to `file`")
	outputState := flags.String("o", "", "also write final state to `file` (\"-\" = stdout)")
	permutations := flags.Int("permutations", 100, "background null permutation `count`")
	seed := flags.Uint64("seed", 1, "PRNG `seed` for the permutation null")
	threads := flags.Int("threads", 0, "worker goroutines for the permutation null (default: all CPUs)")
	cfg := DefaultConfig()
	cfg.Flags(flags)
	var inputs inputFlags
	inputs.Flags(flags)
	var genes geneFlags
	genes.Flags(flags)
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
	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	a, err := inputs.newAnalysis(cfg)
	if err != nil {
		return err
	}
	a.SetEstimator(&permEstimator{Permutations: *permutations, Seed: *seed, Workers: *threads})
	genesInput, err := genes.apply(a)
	if err != nil {
		return err
	}
	if _, err := a.CallFocalEvents(genesInput); err != nil {
		return err
	}
	if err := writeState(a, *outputState, stdout); err != nil {
		return err
	}
	if err := writeReportTo(a, a.FocalGains, *outGains, stdout); err != nil {
		return err
	}
	return writeReportTo(a, a.FocalLosses, *outLosses, stdout)
}
