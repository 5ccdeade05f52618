package logging

import "sync"

// DefaultBufferSize is the capacity used for the capture buffer.
const DefaultBufferSize = 64

// LogBuffer is a fixed-size ring of recent records.
type LogBuffer struct {
	mu   sync.RWMutex
	ring []Entry
	next int
	full bool
}

// NewLogBuffer returns a buffer holding up to size records.
func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &LogBuffer{ring: make([]Entry, size)}
}

// Add appends e, overwriting the oldest record when full.
func (b *LogBuffer) Add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ring[b.next] = e
	b.next = (b.next + 1) % len(b.ring)
	if b.next == 0 {
		b.full = true
	}
}

// Len returns the number of buffered records.
func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.len()
}

func (b *LogBuffer) len() int {
	if b.full {
		return len(b.ring)
	}
	return b.next
}

// at returns the i-th oldest record. Callers hold the lock.
func (b *LogBuffer) at(i int) Entry {
	if !b.full {
		return b.ring[i]
	}
	return b.ring[(b.next+i)%len(b.ring)]
}

// Entries returns a copy of all records, oldest first.
func (b *LogBuffer) Entries() []Entry {
	return b.Last(len(b.ring))
}

// Last returns up to n of the newest records, oldest first.
func (b *LogBuffer) Last(n int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := b.len()
	if n > total {
		n = total
	}
	out := make([]Entry, 0, n)
	for i := total - n; i < total; i++ {
		out = append(out, b.at(i))
	}
	return out
}

// Latest returns the newest record at or above floor.
func (b *LogBuffer) Latest(floor Level) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i := b.len() - 1; i >= 0; i-- {
		if e := b.at(i); e.Level >= floor {
			return e, true
		}
	}
	return Entry{}, false
}

// Clear drops every record.
func (b *LogBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next = 0
	b.full = false
}
