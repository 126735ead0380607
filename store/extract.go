// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Extract reproduces a recorded output tree from its blob into
// destDir. The inverse of the archiving half of [Store.Record].
func (s *Store) Extract(entry *LedgerEntry, destDir string) error {
	tag, err := ParseCompressionTag(entry.Compression)
	if err != nil {
		return err
	}

	blob, err := os.Open(filepath.Join(s.root, "blobs", entry.Digest+tag.extension()))
	if err != nil {
		return fmt.Errorf("opening blob for %s: %w", entry.Project, err)
	}
	defer blob.Close()

	decompressor, err := newDecompressor(tag, blob)
	if err != nil {
		return err
	}
	defer decompressor.Close()

	tr := tar.NewReader(decompressor)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading blob archive: %w", err)
		}

		name := filepath.FromSlash(hdr.Name)
		if strings.Contains(name, "..") {
			return fmt.Errorf("blob archive entry escapes destination: %q", hdr.Name)
		}
		path := filepath.Join(destDir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.Symlink(hdr.Linkname, path); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}
			f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported entry type in blob archive: %q", hdr.Name)
		}
	}
}
