// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

// exportNumpy writes the copy-number matrix as a numpy array plus CSV
// label files for its rows (markers) and columns (samples), for
// downstream analysis in python. Cells not covered by a sample hold
// NaN.
type exportNumpy struct{}

func (ecmd *exportNumpy) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := ecmd.run(prog, args, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

func (ecmd *exportNumpy) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputState := flags.String("i", "-", "input state `file` (\"-\" = stdin)")
	outputDir := flags.String("output-dir", ".", "output `directory`")
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
	m, agg := a.caches()
	rows, cols := m.Dims()

	output, err := os.OpenFile(*outputDir+"/matrix.npy", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0777)
	if err != nil {
		return err
	}
	bufw := bufio.NewWriter(output)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return err
	}
	data := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data[i*cols+j] = m.At(i, j)
		}
	}
	npw.Shape = []int{rows, cols}
	err = npw.WriteFloat64(data)
	if err != nil {
		return err
	}
	err = bufw.Flush()
	if err != nil {
		return err
	}
	err = output.Close()
	if err != nil {
		return err
	}
	err = ecmd.writeMarkers(*outputDir+"/markers.csv", a, agg)
	if err != nil {
		return err
	}
	return ecmd.writeSamples(*outputDir+"/samples.csv", a)
}

func (ecmd *exportNumpy) writeMarkers(fnm string, a *Analysis, agg *MarkerAgg) error {
	w, err := zcreate(fnm)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Name,Chromosome,Position,AbsPosition")
	for i := 0; i < agg.Len(); i++ {
		mk := a.Markers[agg.Marker[i]]
		_, err = fmt.Fprintf(w, "%s,%s,%d,%d\n", mk.Name, a.Chroms.Name(mk.Chrom), mk.Pos, agg.AbsPos[i])
		if err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func (ecmd *exportNumpy) writeSamples(fnm string, a *Analysis) error {
	w, err := zcreate(fnm)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Sample")
	for _, id := range a.Samples {
		_, err = fmt.Fprintln(w, id)
		if err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}
