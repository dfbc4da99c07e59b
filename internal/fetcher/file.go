package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"

	"github.com/rotisserie/eris"
)

// FileFetcher reads snapshots from the local filesystem. It accepts plain
// paths and file:// URLs.
type FileFetcher struct{}

// localPath resolves a file:// URL or plain path.
func localPath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw, nil //nolint:nilerr // not a URL, treat as a path
	}
	if u.Scheme != "file" {
		return "", eris.Errorf("file: unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" {
		return "", eris.New("file: empty path in file url")
	}
	return u.Path, nil
}

// Download opens the file for reading.
func (FileFetcher) Download(_ context.Context, raw string) (io.ReadCloser, error) {
	path, err := localPath(raw)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "file: open")
	}
	return f, nil
}

// DownloadToFile copies the file to path.
func (ff FileFetcher) DownloadToFile(ctx context.Context, raw string, path string) (int64, error) {
	rc, err := ff.Download(ctx, raw)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck
	return writeFile(path, rc)
}

// writeFile drains r into a new file at path.
func writeFile(path string, r io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, r)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}
	return n, nil
}
