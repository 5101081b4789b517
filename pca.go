// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/james-bowman/nlp"
	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// goPCA projects the samples onto the principal components of the
// copy-number matrix and writes one row per sample as a numpy array.
// Useful for spotting batch effects and outlier samples before
// calling. Cells not covered by a sample are treated as 0.
type goPCA struct{}

func (pcmd *goPCA) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := pcmd.run(prog, args, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

func (pcmd *goPCA) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	inputState := flags.String("i", "-", "input state `file` (\"-\" = stdin)")
	outputFilename := flags.String("o", "-", "output `file`")
	components := flags.Int("components", 4, "number of components")
	err := flags.Parse(args)
	if err == flag.ErrHelp {
		return nil
	} else if err != nil {
		return err
	} else if flags.NArg() > 0 {
		return fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	a, err := loadState(*inputState, stdin)
	if err != nil {
		return err
	}
	log.Print("building matrix")
	m, _ := a.caches()
	rows, cols := m.Dims()
	filled := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := m.At(i, j); !math.IsNaN(v) {
				filled.Set(i, j, v)
			}
		}
	}

	log.Print("fitting")
	transformer := nlp.NewPCA(*components)
	transformer.Fit(filled)
	log.Printf("transforming")
	projected, err := transformer.Transform(filled)
	if err != nil {
		return err
	}
	out := projected.T()

	prows, pcols := out.Dims()
	log.Printf("copying result to numpy output array: %d rows, %d cols", prows, pcols)
	data := make([]float64, prows*pcols)
	for i := 0; i < prows; i++ {
		for j := 0; j < pcols; j++ {
			data[i*pcols+j] = out.At(i, j)
		}
	}

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(*outputFilename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0777)
		if err != nil {
			return err
		}
	}
	bufw := bufio.NewWriter(output)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return err
	}
	npw.Shape = []int{prows, pcols}
	log.Printf("writing numpy: %d rows, %d cols", prows, pcols)
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
	log.Print("done")
	return nil
}
