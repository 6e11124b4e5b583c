package file

import (
	"path/filepath"
	"strings"
)

// ReplaceExt swaps the extension of path for ext, adding a leading dot when missing.
func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	dir, filename := filepath.Split(path)
	if lastDot := strings.LastIndex(filename, "."); lastDot > 0 {
		filename = filename[:lastDot]
	}
	return filepath.Join(dir, filename+ext)
}
