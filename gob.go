// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

const snapshotVersion = 1

// Snapshot is the on-disk envelope around a saved Analysis: a layout
// version, the BLAKE2b-256 digest of the encoded state, and the state
// itself. Snapshots are opaque; only this package reads and writes
// them.
type Snapshot struct {
	Version int
	Digest  []byte
	State   []byte
}

// Save writes the analysis as a snapshot. The derived caches (the
// copy-number matrix and the aggregated marker table) are cleared
// first; they are rebuilt on demand after load.
func (a *Analysis) Save(w io.Writer) error {
	a.matrix, a.agg = nil, nil
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return err
	}
	digest := blake2b.Sum256(buf.Bytes())
	return gob.NewEncoder(w).Encode(Snapshot{
		Version: snapshotVersion,
		Digest:  digest[:],
		State:   buf.Bytes(),
	})
}

// SaveFile writes a snapshot to the named file, gzip-compressed when
// the name ends in .gz.
func (a *Analysis) SaveFile(path string) error {
	w, err := zcreate(path)
	if err != nil {
		return err
	}
	if err := a.Save(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// LoadAnalysis reads a snapshot written by Save, verifies its digest,
// and returns the analysis with default collaborators attached.
func LoadAnalysis(rdr io.Reader) (*Analysis, error) {
	var snap Snapshot
	if err := gob.NewDecoder(rdr).Decode(&snap); err != nil {
		return nil, &MalformedInputError{Path: "snapshot", Err: err}
	}
	if snap.Version != snapshotVersion {
		return nil, &MalformedInputError{Path: "snapshot", Err: fmt.Errorf("unsupported snapshot version %d", snap.Version)}
	}
	digest := blake2b.Sum256(snap.State)
	if !bytes.Equal(digest[:], snap.Digest) {
		return nil, &MalformedInputError{Path: "snapshot", Err: fmt.Errorf("digest mismatch")}
	}
	var a Analysis
	if err := gob.NewDecoder(bytes.NewReader(snap.State)).Decode(&a); err != nil {
		return nil, &MalformedInputError{Path: "snapshot", Err: err}
	}
	a.setDefaultCollaborators()
	return &a, nil
}

// LoadFile reads a snapshot from the named file (gzip transparent).
func LoadFile(path string) (*Analysis, error) {
	f, err := zopen(path)
	if err != nil {
		return nil, &MalformedInputError{Path: path, Err: err}
	}
	defer f.Close()
	return LoadAnalysis(f)
}
