package npil

import (
	"fmt"
	"path/filepath"

	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"
)

const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
	Tera = 1 << 40
)

// ConvertToAbsolute returns an absolute path for the given path, treating relative
// paths as relative to baseDir.
func ConvertToAbsolute(path, baseDir string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path cannot be converted to absolute path")
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	return filepath.Abs(filepath.Join(baseDir, path))
}

// ByteSize returns a human readable size like "83 MB".
func ByteSize(numBytes uint64) string {
	return humanize.Bytes(numBytes)
}

// MemSize returns the approximate in-memory size of an object in bytes.
func MemSize(obj interface{}) uint64 {
	n := size.Of(obj)
	if n < 0 {
		return 0
	}
	return uint64(n)
}

// Commas returns a number formatted with thousands separators.
func Commas(n int64) string {
	return humanize.Comma(n)
}
