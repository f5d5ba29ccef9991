package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// workspace is a per-request scratch directory. It is created on first use
// and removed with everything inside it by Close.
type workspace struct {
	base string
	dir  string
}

func (w *workspace) ensure() (string, error) {
	if w.dir != "" {
		return w.dir, nil
	}
	dir, err := os.MkdirTemp(w.base, "pageflow-*")
	if err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	w.dir = dir
	return dir, nil
}

// Subdir creates an isolated directory inside the workspace.
func (w *workspace) Subdir(name string) (string, error) {
	root, err := w.ensure()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, sanitizePathToken(name))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create workspace dir: %w", err)
	}
	return dir, nil
}

// WriteFile stores data under dir with a sanitized form of filename.
func (w *workspace) WriteFile(dir, filename string, data []byte) (string, error) {
	path := filepath.Join(dir, sanitizeFilename(filename))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write workspace file: %w", err)
	}
	return path, nil
}

func (w *workspace) Close() error {
	if w.dir == "" {
		return nil
	}
	dir := w.dir
	w.dir = ""
	return os.RemoveAll(dir)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(name))
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return sanitizePathToken(stem) + sanitizeExt(ext)
}

func sanitizeExt(ext string) string {
	token := strings.TrimPrefix(ext, ".")
	if token == "" {
		return ""
	}
	return "." + sanitizePathToken(token)
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" || in == "." || in == ".." {
		return "input"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
