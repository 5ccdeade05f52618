//go:build !linux

package record

// Lstat stats path without following symlinks.
func Lstat(path string) (Meta, error) {
	return OSLstat(path)
}
