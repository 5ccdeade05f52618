// Package journal records every manifest run in a Badger store so past
// runs can be listed and inspected.
package journal

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// prefixRun keys runs as r:<inverted start time><id>, so a forward
// iteration yields the newest run first.
const prefixRun = "r:"

var (
	// ErrNotFound is returned when no run matches an ID.
	ErrNotFound = errors.New("run not found")

	// ErrAmbiguousID is returned when an ID prefix matches several runs.
	ErrAmbiguousID = errors.New("ambiguous run ID")
)

// Journal is the run history store.
type Journal struct {
	db *badger.DB
}

// Open opens or creates a journal at dir.
func Open(dir string) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("journal directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the journal.
func (j *Journal) Close() error {
	return j.db.Close()
}

// NewRun returns a run with a fresh ID started now.
func NewRun() *Run {
	return &Run{
		ID:      uuid.NewString(),
		Started: time.Now().UTC(),
	}
}

// Record stores run, replacing any earlier version with the same ID and
// start time.
func (j *Journal) Record(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Started.IsZero() {
		run.Started = time.Now().UTC()
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encoding run: %w", err)
	}

	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(run), data)
	})
}

// List returns runs newest first. A limit of 0 or less returns all runs.
func (j *Journal) List(limit int) ([]Run, error) {
	runs := []Run{}

	err := j.scan(func(run Run) bool {
		runs = append(runs, run)
		return limit <= 0 || len(runs) < limit
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// Get returns the run whose ID equals id or, failing that, the single run
// whose ID starts with id.
func (j *Journal) Get(id string) (*Run, error) {
	if id == "" {
		return nil, errors.New("run ID cannot be empty")
	}

	var matches []Run
	var exact *Run
	err := j.scan(func(run Run) bool {
		if run.ID == id {
			exact = &run
			return false
		}
		if strings.HasPrefix(run.ID, id) {
			matches = append(matches, run)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	switch {
	case exact != nil:
		return exact, nil
	case len(matches) == 1:
		return &matches[0], nil
	case len(matches) > 1:
		return nil, fmt.Errorf("%w: %s matches %d runs", ErrAmbiguousID, id, len(matches))
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
}

// Cleanup removes runs started more than retentionDays ago and returns how
// many were removed. A retentionDays of 0 or less keeps everything.
func (j *Journal) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	var stale [][]byte
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRun)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			started, ok := startedFromKey(key)
			if ok && started.Before(cutoff) {
				stale = append(stale, key)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := j.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// scan visits runs newest first until fn returns false. Undecodable
// values are skipped.
func (j *Journal) scan(fn func(Run) bool) error {
	return j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRun)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var run Run
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			})
			if err != nil {
				continue
			}
			if !fn(run) {
				return nil
			}
		}
		return nil
	})
}

func runKey(run *Run) []byte {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(math.MaxInt64-run.Started.UnixNano()))
	return []byte(prefixRun + hex.EncodeToString(ts[:]) + run.ID)
}

func startedFromKey(key []byte) (time.Time, bool) {
	const width = 16
	if len(key) < len(prefixRun)+width {
		return time.Time{}, false
	}
	raw, err := hex.DecodeString(string(key[len(prefixRun) : len(prefixRun)+width]))
	if err != nil {
		return time.Time{}, false
	}
	inverted := int64(binary.BigEndian.Uint64(raw))
	return time.Unix(0, math.MaxInt64-inverted), true
}
