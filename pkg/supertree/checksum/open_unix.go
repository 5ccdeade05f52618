//go:build unix

package checksum

import (
	"fmt"
	"os"
	"syscall"
)

// openRegular opens path without blocking on FIFOs or devices and rejects
// anything that is not a regular file once the descriptor is held.
func openRegular(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w (%s)", ErrNotRegular, info.Mode().Type())
	}
	return f, nil
}
