// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the compression algorithm of a blob. The
// tag is recorded in the ledger and in the blob filename extension.
type CompressionTag uint8

const (
	// CompressionNone stores the archive uncompressed. For output
	// trees that are already compressed.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 is fast block compression for large binary
	// toolchain outputs where decode speed matters more than ratio.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd is the default: better ratios on the mixed
	// binaries, headers, and text a toolchain stage produces.
	CompressionZstd CompressionTag = 2
)

// String returns the ledger spelling of the tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseCompressionTag parses a tag from its ledger spelling.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

// extension returns the blob filename extension for the tag.
func (tag CompressionTag) extension() string {
	switch tag {
	case CompressionLZ4:
		return ".tar.lz4"
	case CompressionZstd:
		return ".tar.zst"
	default:
		return ".tar"
	}
}

// newCompressor wraps w with the tag's compressor. The returned writer
// must be closed to flush.
func newCompressor(tag CompressionTag, w io.Writer) (io.WriteCloser, error) {
	switch tag {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZstd:
		return zstd.NewWriter(w)
	default:
		return nil, fmt.Errorf("unknown compression tag: %d", tag)
	}
}

// newDecompressor wraps r with the tag's decompressor.
func newDecompressor(tag CompressionTag, r io.Reader) (io.ReadCloser, error) {
	switch tag {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unknown compression tag: %d", tag)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
