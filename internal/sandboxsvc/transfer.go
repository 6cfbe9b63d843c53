package sandboxsvc

import (
	"archive/tar"
	"context"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"sandboxd/internal/runtime"
)

// Upload packs the local file as a single-entry tar and copies it into
// the sandbox's results directory.
func (m *Manager) Upload(ctx context.Context, sandboxID, localPath, destDir string) error {
	if destDir == "" {
		destDir = resultsWorkDir
	}
	r, err := m.resolveRunning(ctx, sandboxID)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return ErrLocalFileNotFound
	}
	tarBytes, err := runtime.SingleFileTar(filepath.Base(localPath), data, 0o644)
	if err != nil {
		return err
	}
	return m.rt.PutArchive(ctx, r.record.ContainerID, destDir, tarBytes)
}

// DownloadedFile is what Download returns: the extracted member plus
// enough metadata for an inline HTTP response.
type DownloadedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Download streams absPath out of the container as a tar archive and
// extracts the member matching the path (stripped of its leading slash),
// falling back to a basename match.
func (m *Manager) Download(ctx context.Context, sandboxID, absPath string) (DownloadedFile, error) {
	r, err := m.resolve(ctx, sandboxID)
	if err != nil {
		return DownloadedFile{}, err
	}
	stream, err := m.rt.GetArchive(ctx, r.record.ContainerID, absPath)
	if err != nil {
		if runtime.IsNotFound(err) {
			return DownloadedFile{}, ErrDownloadNotFound
		}
		return DownloadedFile{}, err
	}
	defer stream.Close()

	want := strings.TrimPrefix(absPath, "/")
	base := filepath.Base(absPath)

	tr := tar.NewReader(stream)
	var fallback *DownloadedFile
	any := false
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return DownloadedFile{}, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		any = true
		data, err := io.ReadAll(tr)
		if err != nil {
			return DownloadedFile{}, err
		}
		name := strings.TrimPrefix(hdr.Name, "./")
		if name == want || strings.HasSuffix(name, "/"+want) {
			return DownloadedFile{Name: base, ContentType: guessContentType(base), Data: data}, nil
		}
		if fallback == nil && strings.HasSuffix(name, base) {
			fb := DownloadedFile{Name: base, ContentType: guessContentType(base), Data: data}
			fallback = &fb
		}
	}
	if !any {
		return DownloadedFile{}, ErrDownloadNotFound
	}
	if fallback != nil {
		return *fallback, nil
	}
	return DownloadedFile{}, ErrDownloadNotFound
}

func guessContentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
