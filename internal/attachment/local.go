package attachment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"inkwiki/pkg/apperr"
)

// LocalStore keeps attachment blobs as plain files under a sandboxed root
// directory. Every filename is sanitized before any filesystem access.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating attachment root %s: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Root() string { return s.root }

// Store writes data under the store root and returns the filename it landed
// on. An existing file is never silently overwritten: colliding names get a
// deterministic numeric suffix (name-1.ext, name-2.ext, ...).
func (s *LocalStore) Store(data []byte, filename string) (string, error) {
	name, err := sanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; ; i++ {
		f, err := os.OpenFile(filepath.Join(s.root, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			candidate = fmt.Sprintf("%s-%d%s", base, i, ext)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: storing %s: %v", apperr.ErrBackendUnavailable, candidate, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(filepath.Join(s.root, candidate))
			return "", fmt.Errorf("%w: writing %s: %v", apperr.ErrBackendUnavailable, candidate, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("%w: closing %s: %v", apperr.ErrBackendUnavailable, candidate, err)
		}
		return candidate, nil
	}
}

// Delete removes a stored attachment. A missing file reports found=false
// with a nil error; deleting something already gone is benign.
func (s *LocalStore) Delete(filename string) (bool, error) {
	name, err := sanitizeFilename(filename)
	if err != nil {
		return false, err
	}
	err = os.Remove(filepath.Join(s.root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: removing %s: %v", apperr.ErrBackendUnavailable, name, err)
	}
	return true, nil
}

// sanitizeFilename rejects anything that could escape the store root. It
// runs before any filesystem access.
func sanitizeFilename(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty filename", apperr.ErrValidation)
	}
	if filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: unsafe filename %q", apperr.ErrValidation, name)
	}
	return name, nil
}

// ExtForMIME maps the content types the wiki offloads to a file extension.
func ExtForMIME(mime string) string {
	switch mime {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/svg+xml":
		return "svg"
	case "application/pdf":
		return "pdf"
	default:
		return "bin"
	}
}
