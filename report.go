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
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const reportHeader = "Chromosome\tStart\tEnd\tPercentile_pValue\tLeft_break_-log10pValue\tRight_break_-log10pValue\tLeft_break_-log10qValue\tRight_break_-log10qValue\tGene_symb\tEnsembl_id"

// notAvailable marks numeric fields with no value, distinct from
// empty string and from zero.
const notAvailable = "not available"

// WriteReport serializes one focal collection as TSV to the named
// destination, or to stdout when the destination is empty. The output
// is flushed and released on every exit path.
func (a *Analysis) WriteReport(set *FocalSet, destination string) (err error) {
	var out io.WriteCloser
	if destination == "" {
		bufw := bufio.NewWriter(os.Stdout)
		out = &flushCloser{Writer: bufw, flush: bufw.Flush}
	} else {
		out, err = zcreate(destination)
		if err != nil {
			return err
		}
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	return writeReport(out, set, a.Chroms)
}

func writeReport(w io.Writer, set *FocalSet, cs *ChromSet) error {
	if _, err := fmt.Fprintln(w, reportHeader); err != nil {
		return err
	}
	for _, ev := range set.Events {
		_, err := fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			cs.Name(ev.Chrom), ev.Start, ev.End,
			formatPercentile(ev.Percentile),
			formatStat(neglog10(ev.LeftP)),
			formatStat(neglog10(ev.RightP)),
			formatStat(neglog10(ev.LeftQ)),
			formatStat(neglog10(ev.RightQ)),
			strings.Join(ev.GeneSymbols, ","),
			strings.Join(ev.GeneIDs, ","))
		if err != nil {
			return err
		}
	}
	return nil
}

func formatStat(x float64) string {
	return strconv.FormatFloat(x, 'e', 5, 64)
}

func formatPercentile(p float64) string {
	if math.IsNaN(p) {
		return notAvailable
	}
	return formatStat(p)
}

func neglog10(p float64) float64 {
	if p < 1e-300 {
		p = 1e-300
	}
	return -math.Log10(p)
}

type reportcmd struct{}

func (rcmd *reportcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := rcmd.run(prog, args, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

func (rcmd *reportcmd) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputState := flags.String("i", "-", "load analysis state from `file` (\"-\" = stdin)")
	outGains := flags.String("out-gains", "", "write focal gains TSV to `file` (default stdout)")
	outLosses := flags.String("out-losses", "", "write focal losses TSV to `file` (default stdout)")
	outputState := flags.String("o", "", "write updated state to `file` after triggering missing stages (default: discard)")
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

	a, err := loadState(*inputState, stdin)
	if err != nil {
		return err
	}
	genesInput, err := genes.apply(a)
	if err != nil {
		return err
	}
	if !a.done(stageFocal) {
		if _, err := a.CallFocalEvents(genesInput); err != nil {
			return err
		}
	}
	if err := writeState(a, *outputState, stdout); err != nil {
		return err
	}
	if err := writeReportTo(a, a.FocalGains, *outGains, stdout); err != nil {
		return err
	}
	return writeReportTo(a, a.FocalLosses, *outLosses, stdout)
}

// writeReportTo writes one focal collection to the named file, or to
// the command's stdout when the name is empty.
func writeReportTo(a *Analysis, set *FocalSet, destination string, stdout io.Writer) (err error) {
	if destination != "" {
		return a.WriteReport(set, destination)
	}
	bufw := bufio.NewWriter(stdout)
	defer func() {
		if ferr := bufw.Flush(); err == nil {
			err = ferr
		}
	}()
	return writeReport(bufw, set, a.Chroms)
}
