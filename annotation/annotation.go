// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Package annotation supplies gene tables for mapping focal
// copy-number events to genes. Both sources read BioMart-style TSV
// exports (gene stable ID, gene symbol, chromosome, start, end): File
// from the local filesystem, Client from an HTTP service.
package annotation

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/pgzip"
)

// Gene is one annotation record. Chrom keeps the source's label; the
// caller maps it onto its own chromosome set.
type Gene struct {
	EnsemblID string
	Symbol    string
	Chrom     string
	Start     int64
	End       int64
}

// normLabel upper-cases a chromosome label and strips any "chr"
// prefix so "chr17", "Chr17", and "17" select the same chromosome.
func normLabel(label string) string {
	s := strings.ToUpper(strings.TrimSpace(label))
	return strings.TrimPrefix(s, "CHR")
}

// File reads genes from a local BioMart-style TSV export, gzip
// transparent.
type File struct {
	Path string
}

// Genes returns the file's records on the given chromosomes.
func (f File) Genes(chromosomes []string) ([]Gene, error) {
	rdr, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()
	var in io.Reader = rdr
	if strings.HasSuffix(f.Path, ".gz") {
		gz, err := pgzip.NewReader(bufio.NewReaderSize(rdr, 1<<22))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Path, err)
		}
		defer gz.Close()
		in = gz
	}
	genes, err := parseGenes(in, chromosomes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return genes, nil
}

// Client fetches genes from an HTTP service serving BioMart-style TSV
// exports. One request per call, no retries.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a Client for the given base URL with a one-minute
// request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: time.Minute},
	}
}

// Genes fetches the records on the given chromosomes. The chromosome
// scope is passed to the service and applied again locally, so a
// service that ignores the parameter still yields a correctly scoped
// result.
func (c *Client) Genes(chromosomes []string) ([]Gene, error) {
	labels := make([]string, 0, len(chromosomes))
	for _, label := range chromosomes {
		labels = append(labels, normLabel(label))
	}
	reqURL := c.BaseURL
	if len(labels) > 0 {
		sep := "?"
		if strings.Contains(reqURL, "?") {
			sep = "&"
		}
		reqURL += sep + "chromosomes=" + url.QueryEscape(strings.Join(labels, ","))
	}
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Get(reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("annotation service: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	genes, err := parseGenes(resp.Body, chromosomes)
	if err != nil {
		return nil, fmt.Errorf("annotation service: %w", err)
	}
	return genes, nil
}

// parseGenes reads TSV rows (ID, symbol, chromosome, start, end),
// skipping a header line if the coordinate columns are not numeric,
// and keeps rows on the requested chromosomes. An empty request keeps
// everything.
func parseGenes(rdr io.Reader, chromosomes []string) ([]Gene, error) {
	want := map[string]bool{}
	for _, label := range chromosomes {
		want[normLabel(label)] = true
	}
	var genes []Gene
	sc := bufio.NewScanner(rdr)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 5 {
			return nil, fmt.Errorf("line %d: %d fields, need 5", lineno, len(fields))
		}
		start, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
		if err != nil {
			if lineno == 1 {
				// header line
				continue
			}
			return nil, fmt.Errorf("line %d: bad start %q", lineno, fields[3])
		}
		end, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad end %q", lineno, fields[4])
		}
		if start > end {
			start, end = end, start
		}
		chrom := strings.TrimSpace(fields[2])
		if len(want) > 0 && !want[normLabel(chrom)] {
			continue
		}
		genes = append(genes, Gene{
			EnsemblID: strings.TrimSpace(fields[0]),
			Symbol:    strings.TrimSpace(fields[1]),
			Chrom:     chrom,
			Start:     start,
			End:       end,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return genes, nil
}
