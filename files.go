// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
)

// zopen returns a reader for the given file, transparently
// decompressing the input if fnm ends with ".gz".
func zopen(fnm string) (io.ReadCloser, error) {
	f, err := os.Open(fnm)
	if err != nil || !strings.HasSuffix(fnm, ".gz") {
		return f, err
	}
	rdr, err := pgzip.NewReader(bufio.NewReaderSize(f, 4*1024*1024))
	if err != nil {
		f.Close()
		return nil, err
	}
	return gzipr{rdr, f}, nil
}

// gzipr wraps a ReadCloser and a Closer, presenting a single Close()
// method that closes both wrapped objects.
type gzipr struct {
	io.ReadCloser
	io.Closer
}

func (gr gzipr) Close() error {
	e1 := gr.ReadCloser.Close()
	e2 := gr.Closer.Close()
	if e1 != nil {
		return e1
	}
	return e2
}

// zcreate returns a writer for the given file, transparently
// compressing the output if fnm ends with ".gz". Close flushes every
// layer before releasing the file handle.
func zcreate(fnm string) (io.WriteCloser, error) {
	f, err := os.Create(fnm)
	if err != nil {
		return nil, err
	}
	bufw := bufio.NewWriterSize(f, 1<<20)
	if !strings.HasSuffix(fnm, ".gz") {
		return &flushCloser{Writer: bufw, flush: bufw.Flush, file: f}, nil
	}
	gzw := pgzip.NewWriter(bufw)
	return &flushCloser{Writer: gzw, flush: func() error {
		if err := gzw.Close(); err != nil {
			return err
		}
		return bufw.Flush()
	}, file: f}, nil
}

type flushCloser struct {
	io.Writer
	flush func() error
	file  *os.File
}

func (fc *flushCloser) Close() error {
	e1 := fc.flush()
	var e2 error
	if fc.file != nil {
		e2 = fc.file.Close()
	}
	if e1 != nil {
		return e1
	}
	return e2
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
