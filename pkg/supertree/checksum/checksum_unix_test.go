//go:build unix

package checksum

import (
	"context"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Sum_FIFODoesNotBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipe")
	require.NoError(t, syscall.Mkfifo(path, 0o644))

	e := New(algorithms[DefaultAlgorithm])

	done := make(chan error, 1)
	go func() {
		_, err := e.Sum(context.Background(), path)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrUnreadable)
		assert.ErrorIs(t, err, ErrNotRegular)
	case <-time.After(5 * time.Second):
		t.Fatal("Sum blocked on a FIFO")
	}
}
