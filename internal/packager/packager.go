package packager

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
)

// Fetcher retrieves an artifact by logical ref. The storage gateway satisfies
// this; it presigns freshly per attempt, so long-running streams never trip
// over expired signatures.
type Fetcher interface {
	Download(ctx context.Context, ref string) ([]byte, error)
}

// Entry is one deliverable to include in the archive.
type Entry struct {
	Ref      string
	RowIndex int
	Format   string
}

// Packager streams a batch's deliverables as a ZIP archive.
type Packager struct {
	fetch Fetcher
}

func New(fetch Fetcher) *Packager {
	return &Packager{fetch: fetch}
}

// Stream writes a ZIP of the given entries to w, fetching each artifact as it
// goes. Entries that fail to fetch are skipped with a log line; the archive is
// always finalized so the client receives a valid ZIP of whatever succeeded.
// Returns the number of entries written.
func (p *Packager) Stream(ctx context.Context, w io.Writer, batchName string, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, fmt.Errorf("no deliverables to package")
	}

	zw := zip.NewWriter(w)
	dir := sanitizeName(batchName)
	written := 0

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			// Close what we have; a truncated-but-valid archive beats a
			// corrupt one
			if err := zw.Close(); err != nil {
				return written, err
			}
			return written, ctx.Err()
		default:
		}

		data, err := p.fetch.Download(ctx, entry.Ref)
		if err != nil {
			log.Printf("[Packager] Skipping row %d format %s: %v", entry.RowIndex, entry.Format, err)
			continue
		}

		name := fmt.Sprintf("%s/row_%d_%s.mp4", dir, entry.RowIndex, sanitizeName(entry.Format))
		f, err := zw.Create(name)
		if err != nil {
			return written, fmt.Errorf("failed to add archive entry: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			return written, fmt.Errorf("failed to write archive entry: %w", err)
		}
		written++
	}

	if err := zw.Close(); err != nil {
		return written, fmt.Errorf("failed to finalize archive: %w", err)
	}

	log.Printf("[Packager] Archived %d of %d deliverables for %q", written, len(entries), batchName)
	return written, nil
}

// sanitizeName strips characters that break archive paths or extractors.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "batch"
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		default:
			// dropped
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "batch"
	}
	return out
}
