package listing

import (
	"context"
	"io/fs"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
)

// Count returns the number of entries a listing of roots will contain,
// including the roots. It walks in parallel and in no particular order, so
// it only sizes progress reporting. Unreadable directories are skipped.
func Count(ctx context.Context, roots []string, opts Options) (int64, error) {
	var n atomic.Int64
	conf := fastwalk.Config{Follow: false}

	for _, root := range roots {
		err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				return nil
			}
			if path != root && opts.Excluded(d.Name()) {
				if d.IsDir() {
					return fastwalk.SkipDir
				}
				return nil
			}
			n.Add(1)
			return nil
		})
		if err != nil {
			return n.Load(), err
		}
	}
	return n.Load(), nil
}
