package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nationalarchives/wa-frontend/internal/model"
)

// SnapshotSource resolves a snapshot URL to the transport for its scheme and
// decodes the body as a JSON array of entries.
type SnapshotSource struct {
	http    Fetcher
	ftp     Fetcher
	file    Fetcher
	tempDir string
}

// NewSnapshotSource creates a SnapshotSource. tempDir holds downloaded .zip
// snapshots; empty means the OS default.
func NewSnapshotSource(httpF, ftpF Fetcher, tempDir string) *SnapshotSource {
	return &SnapshotSource{
		http:    httpF,
		ftp:     ftpF,
		file:    FileFetcher{},
		tempDir: tempDir,
	}
}

func (s *SnapshotSource) fetcherFor(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: parse url %q", rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return s.http, nil
	case "ftp":
		return s.ftp, nil
	case "file", "":
		return s.file, nil
	default:
		return nil, eris.Errorf("snapshot: unsupported scheme %q", u.Scheme)
	}
}

// isZIP reports whether the URL path names a .zip archive.
func isZIP(rawURL string) bool {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return strings.EqualFold(path.Ext(u.Path), ".zip")
	}
	return strings.EqualFold(path.Ext(rawURL), ".zip")
}

// Open returns a reader over the JSON document at rawURL. For a .zip URL the
// archive is downloaded to a temp dir and its single file is opened; the temp
// dir is removed when the reader is closed.
func (s *SnapshotSource) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f, err := s.fetcherFor(rawURL)
	if err != nil {
		return nil, err
	}
	if !isZIP(rawURL) {
		return f.Download(ctx, rawURL)
	}

	dir, err := os.MkdirTemp(s.tempDir, "wa-snapshot-")
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: create temp dir")
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	zipPath := filepath.Join(dir, "snapshot.zip")
	n, err := f.DownloadToFile(ctx, rawURL, zipPath)
	if err != nil {
		cleanup()
		return nil, err
	}
	zap.L().Debug("snapshot: downloaded archive", zap.String("url", rawURL), zap.Int64("bytes", n))

	jsonPath, err := ExtractZIPSingle(zipPath, filepath.Join(dir, "extracted"))
	if err != nil {
		cleanup()
		return nil, err
	}
	file, err := os.Open(jsonPath)
	if err != nil {
		cleanup()
		return nil, eris.Wrap(err, "snapshot: open extracted file")
	}
	return &cleanupReader{ReadCloser: file, cleanup: cleanup}, nil
}

type cleanupReader struct {
	io.ReadCloser
	cleanup func()
}

func (r *cleanupReader) Close() error {
	err := r.ReadCloser.Close()
	r.cleanup()
	return err
}

// FetchSnapshot downloads and decodes the whole snapshot. Transport errors,
// non-2xx responses, malformed JSON, a non-array document and non-object
// elements are all errors.
func (s *SnapshotSource) FetchSnapshot(ctx context.Context, rawURL string) ([]model.RawEntry, error) {
	rc, err := s.Open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	entries, err := CollectJSONArray[model.RawEntry](ctx, rc)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: decode")
	}
	return entries, nil
}
