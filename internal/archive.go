package internal

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/sensiblebit/revcheck/internal/crlstore"
)

// ArchiveLimits controls zip bomb protection thresholds.
type ArchiveLimits struct {
	// MaxDecompressionRatio is the maximum allowed ratio of uncompressed to
	// compressed size for a single ZIP entry. TAR entries are not ratio-checked
	// because TAR stores uncompressed data.
	MaxDecompressionRatio int64

	// MaxTotalSize is the maximum total bytes that may be extracted from a
	// single archive across all entries.
	MaxTotalSize int64

	// MaxEntryCount is the maximum number of entries processed from a single
	// archive.
	MaxEntryCount int

	// MaxEntrySize is the maximum allowed size of a single decompressed entry.
	// Full CRLs from large CAs run to tens of megabytes.
	MaxEntrySize int64
}

// DefaultArchiveLimits returns conservative defaults for archive extraction.
func DefaultArchiveLimits() ArchiveLimits {
	return ArchiveLimits{
		MaxDecompressionRatio: 100,
		MaxTotalSize:          512 * 1024 * 1024, // 512 MB
		MaxEntryCount:         10_000,
		MaxEntrySize:          64 * 1024 * 1024, // 64 MB
	}
}

// ProcessArchiveInput holds the parameters for archive processing.
type ProcessArchiveInput struct {
	ArchivePath string
	Data        []byte
	Format      string
	Limits      ArchiveLimits
	Store       *crlstore.MemStore
	Passwords   []string
}

// archiveExtensions maps file extensions to archive format identifiers.
// The ".tar.gz" compound extension is handled separately in ArchiveFormat.
var archiveExtensions = map[string]string{
	".zip": "zip",
	".tar": "tar",
	".tgz": "tar.gz",
}

// ArchiveFormat returns the archive format for the given path based on its
// extension, or "" if the path is not a recognized archive.
func ArchiveFormat(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tar.gz") {
		return "tar.gz"
	}
	return archiveExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsArchive reports whether the given path has a recognized archive extension.
func IsArchive(path string) bool {
	return ArchiveFormat(path) != ""
}

// archiveWalk tracks the limits shared by every archive format while entries
// are extracted.
type archiveWalk struct {
	input     ProcessArchiveInput
	totalSize int64
	processed int
}

// admit decides whether an entry with the claimed size may be read. stop is
// true when the whole archive walk should end.
func (w *archiveWalk) admit(name string, claimed int64) (ok, stop bool) {
	limits := w.input.Limits
	if w.processed >= limits.MaxEntryCount {
		slog.Warn("archive entry count limit reached, stopping",
			"archive", w.input.ArchivePath, "limit", limits.MaxEntryCount)
		return false, true
	}
	if IsArchive(name) {
		slog.Debug("skipping nested archive", "archive", w.input.ArchivePath, "entry", name)
		return false, false
	}
	if claimed > limits.MaxEntrySize {
		slog.Debug("skipping oversized archive entry",
			"archive", w.input.ArchivePath, "entry", name,
			"size", claimed, "limit", limits.MaxEntrySize)
		return false, false
	}
	if w.totalSize+claimed > limits.MaxTotalSize {
		slog.Warn("archive total size limit reached, stopping",
			"archive", w.input.ArchivePath, "limit", limits.MaxTotalSize)
		return false, true
	}
	return true, false
}

// ingest reads at most MaxEntrySize bytes from r and hands them to
// ProcessData under a virtual "archive:entry" path.
func (w *archiveWalk) ingest(name string, r io.Reader) {
	data, err := io.ReadAll(io.LimitReader(r, safeLimitSize(w.input.Limits.MaxEntrySize)))
	if err != nil {
		slog.Debug("reading archive entry", "archive", w.input.ArchivePath, "entry", name, "error", err)
		return
	}
	if int64(len(data)) > w.input.Limits.MaxEntrySize {
		slog.Warn("archive entry exceeded max size despite header claim",
			"archive", w.input.ArchivePath, "entry", name)
		return
	}

	w.totalSize += int64(len(data))
	virtualPath := w.input.ArchivePath + ":" + name
	if err := ProcessData(data, virtualPath, w.input.Store, w.input.Passwords); err != nil {
		slog.Debug("processing archive entry", "path", virtualPath, "error", err)
	}
	w.processed++
}

// ProcessArchive extracts entries from an archive and ingests the
// certificates and CRLs in each one. Returns the number of entries processed.
// Archives inside archives are not recursed into.
func ProcessArchive(input ProcessArchiveInput) (int, error) {
	w := &archiveWalk{input: input}
	var err error
	switch input.Format {
	case "zip":
		err = w.walkZip()
	case "tar":
		err = w.walkTar(false)
	case "tar.gz":
		err = w.walkTar(true)
	default:
		return 0, fmt.Errorf("unsupported archive format: %q", input.Format)
	}
	if err != nil {
		return 0, err
	}
	slog.Info("processed archive", "archive", input.ArchivePath, "format", input.Format, "entries", w.processed)
	return w.processed, nil
}

func (w *archiveWalk) walkZip() error {
	reader, err := zip.NewReader(bytes.NewReader(w.input.Data), int64(len(w.input.Data)))
	if err != nil {
		return fmt.Errorf("opening ZIP archive %s: %w", w.input.ArchivePath, err)
	}

	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if f.CompressedSize64 > 0 {
			ratio := int64(f.UncompressedSize64) / int64(f.CompressedSize64)
			if ratio > w.input.Limits.MaxDecompressionRatio {
				slog.Warn("skipping suspicious ZIP entry: decompression ratio too high",
					"archive", w.input.ArchivePath, "entry", f.Name,
					"ratio", ratio, "limit", w.input.Limits.MaxDecompressionRatio)
				continue
			}
		}

		ok, stop := w.admit(f.Name, int64(f.UncompressedSize64))
		if stop {
			break
		}
		if !ok {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			slog.Debug("opening ZIP entry", "archive", w.input.ArchivePath, "entry", f.Name, "error", err)
			continue
		}
		w.ingest(f.Name, rc)
		if closeErr := rc.Close(); closeErr != nil {
			slog.Warn("closing ZIP entry", "entry", f.Name, "error", closeErr)
		}
	}
	return nil
}

func (w *archiveWalk) walkTar(gzipped bool) error {
	var reader io.Reader = bytes.NewReader(w.input.Data)
	if gzipped {
		gr, err := gzip.NewReader(reader)
		if err != nil {
			return fmt.Errorf("opening gzip layer for %s: %w", w.input.ArchivePath, err)
		}
		defer func() {
			if closeErr := gr.Close(); closeErr != nil {
				slog.Warn("closing gzip reader", "archive", w.input.ArchivePath, "error", closeErr)
			}
		}()
		reader = gr
	}

	tr := tar.NewReader(reader)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			// Corrupted tar: keep what was already ingested.
			if w.processed > 0 {
				slog.Warn("tar read error after processing entries",
					"archive", w.input.ArchivePath, "processed", w.processed, "error", err)
				return nil
			}
			return fmt.Errorf("reading TAR archive %s: %w", w.input.ArchivePath, err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		ok, stop := w.admit(header.Name, header.Size)
		if stop {
			return nil
		}
		if ok {
			w.ingest(header.Name, tr)
		}
	}
}

// safeLimitSize returns maxSize+1 for overflow detection in io.LimitReader,
// clamped to math.MaxInt64 to prevent int64 wraparound.
func safeLimitSize(maxSize int64) int64 {
	if maxSize == math.MaxInt64 {
		return math.MaxInt64
	}
	return maxSize + 1
}
