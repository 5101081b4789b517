// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"flag"
	"fmt"
	"io"
	"os"

	"git.arvados.org/arvados.git/lib/cmd"
	"github.com/cruzpazv/RUBIC/annotation"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	handler = cmd.Multi(map[string]cmd.Handler{
		"version":   cmd.Version,
		"-version":  cmd.Version,
		"--version": cmd.Version,

		"run":          &runcmd{},
		"estimate":     &stagecmd{target: stageEstimate},
		"segment":      &stagecmd{target: stageSegment},
		"call-events":  &stagecmd{target: stageEvents},
		"call-focal":   &stagecmd{target: stageFocal},
		"report":       &reportcmd{},
		"stats":        &statscmd{},
		"dump":         &dumpcmd{},
		"export-numpy": &exportNumpy{},
		"pca":          &goPCA{},
	})
)

func Main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		logrus.StandardLogger().Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	}
	os.Exit(handler.RunCommand(os.Args[0], os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// inputFlags bind the raw input tables for commands that build an
// analysis from scratch.
type inputFlags struct {
	segmentsFile string
	markersFile  string
	samplesFile  string
}

func (f *inputFlags) Flags(flags *flag.FlagSet) {
	flags.StringVar(&f.segmentsFile, "segments", "", "segment table `file` with columns Sample, Chromosome, Start, End, LogRatio (gzip ok)")
	flags.StringVar(&f.markersFile, "markers", "", "marker table `file` with columns Name, Chromosome, Position (gzip ok)")
	flags.StringVar(&f.samplesFile, "samples", "", "sample list `file`, one ID per line (default: all samples in the segment table)")
}

func (f *inputFlags) newAnalysis(cfg Config) (*Analysis, error) {
	if f.segmentsFile == "" {
		return nil, fmt.Errorf("-segments file not specified")
	}
	if f.markersFile == "" {
		return nil, fmt.Errorf("-markers file not specified")
	}
	var samples SampleInput
	if f.samplesFile != "" {
		samples = SamplesFromPath(f.samplesFile)
	}
	return NewAnalysis(cfg, FromPath(f.segmentsFile), FromPath(f.markersFile), samples)
}

// geneFlags bind the gene annotation inputs for commands that can
// trigger focal event calling.
type geneFlags struct {
	genesFile      string
	annotationFile string
	annotationURL  string
}

func (f *geneFlags) Flags(flags *flag.FlagSet) {
	flags.StringVar(&f.genesFile, "genes", "", "gene table `file` with columns ID, Name, Chromosome, Start, End (gzip ok)")
	flags.StringVar(&f.annotationFile, "annotation-file", "", "BioMart-style annotation export `file`, used when -genes is not given")
	flags.StringVar(&f.annotationURL, "annotation-url", "", "base `URL` of a BioMart-style annotation service, used when -genes is not given")
}

// apply installs any annotation fallback on the analysis and returns
// the explicit gene table input, if one was given, for the focal
// stage to load.
func (f *geneFlags) apply(a *Analysis) (*Input, error) {
	switch {
	case f.annotationFile != "" && f.annotationURL != "":
		return nil, fmt.Errorf("-annotation-file and -annotation-url are mutually exclusive")
	case f.annotationFile != "":
		a.SetGeneSource(annotation.File{Path: f.annotationFile})
	case f.annotationURL != "":
		a.SetGeneSource(annotation.NewClient(f.annotationURL))
	}
	if f.genesFile == "" {
		return nil, nil
	}
	in := FromPath(f.genesFile)
	return &in, nil
}

// loadState reads an analysis snapshot from the named file, stdin
// when the name is "-".
func loadState(path string, stdin io.Reader) (*Analysis, error) {
	if path == "" {
		return nil, fmt.Errorf("-i state file not specified")
	}
	if path == "-" {
		return LoadAnalysis(stdin)
	}
	return LoadFile(path)
}

// writeState saves the analysis to the named file, stdout when the
// name is "-", nowhere when empty.
func writeState(a *Analysis, path string, stdout io.Writer) error {
	switch path {
	case "":
		return nil
	case "-":
		return a.Save(stdout)
	default:
		return a.SaveFile(path)
	}
}
