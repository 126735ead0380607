// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Bitbot25/unpak/project"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. The same ledger record always
// produces identical bytes.
var encMode cbor.EncMode

// decMode accepts standard CBOR and ignores unknown fields for
// forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

// LedgerEntry is one append-only record of a recorded output tree.
type LedgerEntry struct {
	// Project that produced the outputs.
	Project project.ProjectID `cbor:"project"`

	// Stage at which the build ran (bootstrap, stage1, stage2).
	Stage string `cbor:"stage"`

	// Digest is the hex keyed-BLAKE3 digest of the uncompressed
	// output archive. Also the blob's filename stem.
	Digest string `cbor:"digest"`

	// Size of the uncompressed archive in bytes.
	Size int64 `cbor:"size"`

	// Compression of the stored blob.
	Compression string `cbor:"compression"`

	// CreatedAt is when the record was made.
	CreatedAt time.Time `cbor:"created_at"`
}

func (s *Store) ledgerPath() string {
	return filepath.Join(s.root, "ledger.cbor")
}

// appendLedger appends one CBOR-encoded entry to the ledger file.
func (s *Store) appendLedger(entry *LedgerEntry) error {
	f, err := os.OpenFile(s.ledgerPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	data, err := encMode.Marshal(entry)
	if err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Ledger reads every recorded entry, oldest first. A store that has
// never recorded anything returns an empty ledger.
func (s *Store) Ledger() ([]LedgerEntry, error) {
	f, err := os.Open(s.ledgerPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []LedgerEntry
	decoder := decMode.NewDecoder(f)
	for {
		var entry LedgerEntry
		if err := decoder.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return nil, fmt.Errorf("reading ledger: %w", err)
		}
		entries = append(entries, entry)
	}
}
