// Package archive cold-stores processed session audio as zstd-compressed
// files so work directories can be reclaimed without losing the source
// signal for re-analysis.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Store compresses session artifacts into a single archive directory.
type Store struct {
	dir string
}

// NewStore returns a store writing archives under dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Archive compresses srcPath into {dir}/{session}.wav.zst and returns the
// archive path. The session name is derived from the work directory the
// sensing pipeline created for the upload.
func (s *Store) Archive(srcPath string) (string, error) {
	session := sessionName(srcPath)
	if session == "" {
		return "", fmt.Errorf("cannot derive session name from %s", srcPath)
	}

	destPath := s.Path(session)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer dest.Close()

	encoder, err := zstd.NewWriter(dest)
	if err != nil {
		return "", fmt.Errorf("create zstd encoder: %w", err)
	}

	if _, err := io.Copy(encoder, src); err != nil {
		encoder.Close()
		return "", fmt.Errorf("compress: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("finalize compression: %w", err)
	}

	return destPath, nil
}

// Decompress restores an archive to a temp file. Returns the temp path
// and a cleanup function the caller must defer.
func (s *Store) Decompress(archivePath string) (string, func(), error) {
	src, err := os.Open(archivePath)
	if err != nil {
		return "", nil, fmt.Errorf("open archive: %w", err)
	}
	defer src.Close()

	decoder, err := zstd.NewReader(src)
	if err != nil {
		return "", nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer decoder.Close()

	tmp, err := os.CreateTemp("", "lumina-audio-*.wav")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, decoder); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("decompress: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("close temp: %w", err)
	}

	cleanup := func() { os.Remove(tmp.Name()) }
	return tmp.Name(), cleanup, nil
}

// Restore decompresses a session's archived audio to destPath so it can
// be re-analyzed.
func (s *Store) Restore(session, destPath string) error {
	if !s.IsArchived(session) {
		return fmt.Errorf("no archive for session %s", session)
	}

	tmp, cleanup, err := s.Decompress(s.Path(session))
	if err != nil {
		return err
	}
	defer cleanup()

	data, err := os.ReadFile(tmp)
	if err != nil {
		return fmt.Errorf("read restored audio: %w", err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("write restored audio: %w", err)
	}
	return nil
}

// IsArchived returns true if an archive exists for the session.
func (s *Store) IsArchived(session string) bool {
	_, err := os.Stat(s.Path(session))
	return err == nil
}

// Path returns the deterministic archive path for a session name.
func (s *Store) Path(session string) string {
	return filepath.Join(s.dir, session+".wav.zst")
}

// sessionName derives the session name from a work-dir artifact path:
// uploads/demo.mp4_work/audio.wav → demo.mp4. Falls back to the file's
// own base name for paths outside a work directory.
func sessionName(path string) string {
	parent := filepath.Base(filepath.Dir(path))
	if strings.HasSuffix(parent, "_work") {
		return strings.TrimSuffix(parent, "_work")
	}
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" {
		return strings.TrimSuffix(base, ext)
	}
	return base
}
