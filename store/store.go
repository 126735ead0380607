// Copyright 2026 The Unpak Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"archive/tar"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/Bitbot25/unpak/project"
	"github.com/Bitbot25/unpak/sandbox"
)

// outputDomainKey is the BLAKE3 key for output-tree digests. Domain
// separation keeps store digests from colliding with any other hashing
// done over the same bytes. The value is the ASCII domain name,
// zero-padded to 32 bytes; changing it invalidates every recorded
// digest.
var outputDomainKey = [32]byte{
	'u', 'n', 'p', 'a', 'k', '.', 's', 't', 'o', 'r', 'e', '.',
	'o', 'u', 't', 'p', 'u', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Role subdirectories of a project's artifact tree.
var roleDirs = []struct {
	name string
	role sandbox.PathRole
}{
	{"bin", sandbox.RoleExecutable},
	{"lib", sandbox.RoleSharedLibrary},
}

// Store is the on-disk artifact store. Safe for use by one process at
// a time; unpak runs a single build in flight.
type Store struct {
	root         string
	resolvedRoot string
	compression  CompressionTag
}

// Open opens (creating if needed) a store rooted at root.
func Open(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving store root: %w", err)
	}
	for _, dir := range []string{abs, filepath.Join(abs, "blobs"), filepath.Join(abs, "projects")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving store root: %w", err)
	}
	return &Store{root: abs, resolvedRoot: resolved, compression: CompressionZstd}, nil
}

// Root returns the store root path.
func (s *Store) Root() string {
	return s.root
}

// SetCompression selects the blob compression for subsequent Record
// calls. The default is zstd.
func (s *Store) SetCompression(tag CompressionTag) {
	s.compression = tag
}

// Contains reports whether host resolves, symlinks followed, to a
// location inside the store. A path that cannot be resolved is not
// contained.
func (s *Store) Contains(host sandbox.HostPath) bool {
	resolved, err := filepath.EvalSymlinks(string(host))
	if err != nil {
		return false
	}
	resolved = filepath.Clean(resolved)
	return resolved == s.resolvedRoot ||
		strings.HasPrefix(resolved, s.resolvedRoot+string(filepath.Separator))
}

// Resolve maps a project identifier to the role-tagged artifacts its
// store tree provides. It implements the project package's Resolver.
func (s *Store) Resolve(id project.ProjectID) ([]sandbox.Artifact, error) {
	dir := s.projectDir(id)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("project %s is not installed in the store: %w", id, err)
	}

	var artifacts []sandbox.Artifact
	for _, rd := range roleDirs {
		entries, err := os.ReadDir(filepath.Join(dir, rd.name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading artifacts of %s: %w", id, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			artifacts = append(artifacts, sandbox.Artifact{
				Role: rd.role,
				Host: sandbox.HostPath(filepath.Join(dir, rd.name, entry.Name())),
			})
		}
	}
	return artifacts, nil
}

// Record imports a build's output tree: archive and digest the whole
// tree, write the compressed blob, install the bin/ and lib/ subtrees
// as the project's artifacts, and append a ledger entry. Identical
// trees produce identical digests.
func (s *Store) Record(id project.ProjectID, stage string, outputDir string) (*LedgerEntry, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	digest, size, err := s.writeBlob(outputDir)
	if err != nil {
		return nil, fmt.Errorf("archiving outputs of %s: %w", id, err)
	}

	if err := s.installArtifacts(id, outputDir); err != nil {
		return nil, fmt.Errorf("installing artifacts of %s: %w", id, err)
	}

	entry := &LedgerEntry{
		Project:     id,
		Stage:       stage,
		Digest:      digest,
		Size:        size,
		Compression: s.compression.String(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.appendLedger(entry); err != nil {
		return nil, fmt.Errorf("recording %s in ledger: %w", id, err)
	}
	return entry, nil
}

func (s *Store) projectDir(id project.ProjectID) string {
	return filepath.Join(s.root, "projects", string(id))
}

// writeBlob archives outputDir deterministically, digests the
// uncompressed archive, and stores the compressed blob under the
// digest. Returns the hex digest and the uncompressed archive size.
func (s *Store) writeBlob(outputDir string) (string, int64, error) {
	hasher, err := blake3.NewKeyed(outputDomainKey[:])
	if err != nil {
		return "", 0, fmt.Errorf("initializing digest: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, "blobs"), "incoming-*")
	if err != nil {
		return "", 0, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	compressor, err := newCompressor(s.compression, tmp)
	if err != nil {
		return "", 0, err
	}

	counter := &countingWriter{w: io.MultiWriter(hasher, compressor)}
	if err := writeTar(counter, outputDir); err != nil {
		return "", 0, err
	}
	if err := compressor.Close(); err != nil {
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, err
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	blobPath := filepath.Join(s.root, "blobs", digest+s.compression.extension())
	if err := os.Rename(tmp.Name(), blobPath); err != nil {
		return "", 0, err
	}
	return digest, counter.n, nil
}

// writeTar archives dir with sorted entries, zeroed timestamps, and
// numeric ownership cleared, so equal trees produce equal bytes.
func writeTar(w io.Writer, dir string) error {
	tw := tar.NewWriter(w)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		hdr := &tar.Header{
			Name:    filepath.ToSlash(rel),
			Mode:    int64(info.Mode().Perm()),
			ModTime: time.Unix(0, 0),
		}
		switch {
		case d.IsDir():
			hdr.Typeflag = tar.TypeDir
			hdr.Name += "/"
		case info.Mode()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = target
		case info.Mode().IsRegular():
			hdr.Typeflag = tar.TypeReg
			hdr.Size = info.Size()
		default:
			return fmt.Errorf("unsupported file type in output tree: %s", path)
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if hdr.Typeflag == tar.TypeReg {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := io.Copy(tw, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return tw.Close()
}

// installArtifacts copies the bin/ and lib/ subtrees of outputDir into
// the project's artifact directory, preserving permission bits. The
// previous install is replaced wholesale: a recorded tree is the full
// artifact set, so stale files from an earlier record must not stay
// resolvable.
func (s *Store) installArtifacts(id project.ProjectID, outputDir string) error {
	for _, rd := range roleDirs {
		dst := filepath.Join(s.projectDir(id), rd.name)
		if err := os.RemoveAll(dst); err != nil {
			return err
		}

		src := filepath.Join(outputDir, rd.name)
		entries, err := os.ReadDir(src)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}

		if err := os.MkdirAll(dst, 0755); err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
