package workflows

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/PolarWolf314/casevault/internal/audit"
	"github.com/PolarWolf314/casevault/internal/session"
	"github.com/PolarWolf314/casevault/internal/vault"

	"github.com/klauspost/compress/gzip"
)

// ExportOptions configures the export workflow. Exactly one of OutputDir
// and ArchivePath must be set.
type ExportOptions struct {
	// Vault is the case to export.
	Vault *vault.Manager

	// Password unlocks the vault. If empty, the live session is used.
	Password string

	// OutputDir receives a decrypted copy of the case tree.
	OutputDir string

	// ArchivePath receives a decrypted copy of the case as a .tar.gz archive.
	ArchivePath string

	// Progress is called once per file.
	Progress ProgressFunc
}

// ExportResult contains the outcome of an export operation.
type ExportResult struct {
	// FilesDecrypted is the number of artifacts written as plaintext.
	FilesDecrypted int

	// BytesDecrypted is the total plaintext size of the decrypted artifacts.
	BytesDecrypted int64

	// FilesCopied is the number of unencrypted files copied as they are.
	FilesCopied int

	// Errors lists the files that could not be exported.
	Errors []FileError

	// OutputPath is the directory or archive written.
	OutputPath string
}

// exportSink receives the files of an export.
type exportSink interface {
	// add writes size bytes from r as rel.
	add(rel string, mode fs.FileMode, size int64, r io.Reader) error
	close() error
}

// Export writes a fully decrypted copy of an encrypted case. Artifacts are
// decrypted under their original names, other files are copied, and the
// vault's own bookkeeping files are left out. The case itself is not
// modified.
//
// Returns ErrVaultNotFound if the case is not encrypted.
// Returns ErrInvalidPassword if password is wrong.
// Returns ErrVaultLocked if no password is given and the vault is locked.
func Export(ctx context.Context, opts ExportOptions) (*ExportResult, error) {
	v := opts.Vault
	if v == nil {
		return nil, errNoVault
	}

	output, err := exportOutputPath(v, opts)
	if err != nil {
		return nil, err
	}

	s, err := openSession(v, opts.Password)
	if err != nil {
		return nil, err
	}

	files, err := exportFiles(v)
	if err != nil {
		return nil, err
	}

	var sink exportSink
	if opts.ArchivePath != "" {
		sink, err = newArchiveSink(output)
	} else {
		sink, err = newDirSink(output)
	}
	if err != nil {
		return nil, err
	}

	result := &ExportResult{OutputPath: output}

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			sink.close()
			return nil, err
		}

		rel := relPath(v, path)
		if v.Policy().IsArtifact(path) {
			opts.Progress.report("Decrypting "+rel, i+1, len(files))
			n, err := exportArtifact(v, s, sink, path)
			if err != nil {
				result.Errors = append(result.Errors, FileError{Path: rel, Err: err})
				continue
			}
			result.FilesDecrypted++
			result.BytesDecrypted += n
		} else {
			opts.Progress.report("Copying "+rel, i+1, len(files))
			if err := exportPlain(sink, rel, path); err != nil {
				result.Errors = append(result.Errors, FileError{Path: rel, Err: err})
				continue
			}
			result.FilesCopied++
		}
	}

	if err := sink.close(); err != nil {
		return nil, fmt.Errorf("failed to finish export %s: %w", output, err)
	}

	v.Logger().Infof("Exported %d decrypted and %d copied files to %s", result.FilesDecrypted, result.FilesCopied, output)

	entry := audit.NewEntry("export")
	entry.SessionID = s.ID
	entry.FilesCount = result.FilesDecrypted + result.FilesCopied
	entry.FailedCount = len(result.Errors)
	entry.Bytes = result.BytesDecrypted
	entry.OutputPath = output
	audit.Log(v.AuditPath(), entry)

	return result, nil
}

func exportOutputPath(v *vault.Manager, opts ExportOptions) (string, error) {
	if (opts.OutputDir == "") == (opts.ArchivePath == "") {
		return "", fmt.Errorf("exactly one of an output directory or an archive path is required")
	}

	output := opts.OutputDir
	if output == "" {
		output = opts.ArchivePath
	}

	abs, err := filepath.Abs(output)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", output, err)
	}
	if resolved, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(resolved, filepath.Base(abs))
	}

	if rel, err := filepath.Rel(v.CaseDir(), abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("export destination %s must be outside the case directory", output)
	}
	return abs, nil
}

// exportFiles lists every file of the case except the vault's bookkeeping.
func exportFiles(v *vault.Manager) ([]string, error) {
	var files []string

	err := filepath.WalkDir(v.CaseDir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel := relPath(v, path)
		if v.Policy().IsVaultFile(rel) && !v.Policy().IsArtifact(rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", v.CaseDir(), err)
	}
	return files, nil
}

func exportArtifact(v *vault.Manager, s *session.Session, sink exportSink, path string) (int64, error) {
	plain, err := v.DecryptedPath(path)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	chunks, err := v.OpenChunksWithSession(s, path)
	if err != nil {
		return 0, err
	}
	defer chunks.Close()

	size := chunks.Size()
	err = sink.add(relPath(v, plain), info.Mode().Perm(), size, &chunksReader{chunks: chunks})
	if err != nil {
		return 0, err
	}
	return size, nil
}

func exportPlain(sink exportSink, rel, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return sink.add(rel, info.Mode().Perm(), info.Size(), f)
}

// chunksReader reads a chunk sequence as a byte stream.
type chunksReader struct {
	chunks vault.Chunks
	buf    []byte
}

func (r *chunksReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		chunk, err := r.chunks.Next()
		if err != nil {
			return 0, err
		}
		r.buf = chunk
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

type dirSink struct {
	root string
}

func newDirSink(root string) (*dirSink, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", root, err)
	}
	return &dirSink{root: root}, nil
}

func (d *dirSink) add(rel string, mode fs.FileMode, size int64, r io.Reader) error {
	dst := filepath.Join(d.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n != size {
		err = fmt.Errorf("wrote %d bytes, expected %d", n, size)
	}
	if err != nil {
		os.Remove(dst)
	}
	return err
}

func (d *dirSink) close() error { return nil }

type archiveSink struct {
	path string
	file *os.File
	gz   *gzip.Writer
	tw   *tar.Writer

	// broken is set once a partial entry has been written.
	broken error
}

func newArchiveSink(path string) (*archiveSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive %s: %w", path, err)
	}

	gz := gzip.NewWriter(f)
	return &archiveSink{
		path: path,
		file: f,
		gz:   gz,
		tw:   tar.NewWriter(gz),
	}, nil
}

func (a *archiveSink) add(rel string, mode fs.FileMode, size int64, r io.Reader) error {
	if a.broken != nil {
		return a.broken
	}

	header := &tar.Header{
		Name:     rel,
		Mode:     int64(mode),
		Size:     size,
		Typeflag: tar.TypeReg,
	}
	if err := a.tw.WriteHeader(header); err != nil {
		a.broken = fmt.Errorf("writing tar header: %w", err)
		return a.broken
	}

	if _, err := io.Copy(a.tw, r); err != nil {
		// The entry is already half written, so the archive cannot be finished.
		a.broken = fmt.Errorf("archive is incomplete after %s: %w", rel, err)
		return a.broken
	}
	return nil
}

func (a *archiveSink) close() error {
	err := errors.Join(a.broken, a.tw.Close(), a.gz.Close(), a.file.Close())
	if err != nil {
		os.Remove(a.path)
	}
	return err
}
