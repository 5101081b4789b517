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

// stagecmd runs one pipeline stage: estimate, segment, call-events,
// or call-focal. The analysis comes either from raw input tables or
// from a saved state file; the updated state is written out again.
// Stages whose prerequisites are missing run them first.
type stagecmd struct {
	target stage
}

func (scmd *stagecmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := scmd.run(prog, args, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

func (scmd *stagecmd) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	inputState := flags.String("i", "", "resume from state `file` (\"-\" = stdin) instead of raw input tables")
	outputState := flags.String("o", "-", "write updated state to `file` (\"-\" = stdout)")
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

	var a *Analysis
	if *inputState != "" {
		// the saved state carries its own Config
		a, err = loadState(*inputState, stdin)
	} else {
		a, err = inputs.newAnalysis(cfg)
	}
	if err != nil {
		return err
	}
	a.SetEstimator(&permEstimator{Permutations: *permutations, Seed: *seed, Workers: *threads})
	genesInput, err := genes.apply(a)
	if err != nil {
		return err
	}
	switch scmd.target {
	case stageEstimate:
		_, err = a.EstimateParameters()
	case stageSegment:
		_, err = a.Segment()
	case stageEvents:
		_, err = a.CallEvents()
	case stageFocal:
		_, err = a.CallFocalEvents(genesInput)
	}
	if err != nil {
		return err
	}
	return writeState(a, *outputState, stdout)
}
