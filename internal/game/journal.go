package game

import (
	"sync"
	"time"
)

// JournalEntry is one recorded snapshot.
type JournalEntry struct {
	Seq      int         `json:"seq"`
	At       time.Time   `json:"at"`
	Checksum string      `json:"checksum"`
	View     SessionView `json:"view"`
}

// Journal keeps the most recent snapshots of a session in memory. Sequence
// numbers keep counting after old entries are evicted.
type Journal struct {
	SessionID string

	mu      sync.RWMutex
	entries []JournalEntry
	limit   int
	nextSeq int
}

// NewJournal creates a journal holding at most limit entries. A limit <= 0 disables recording.
func NewJournal(sessionID string, limit int) *Journal {
	return &Journal{
		SessionID: sessionID,
		entries:   make([]JournalEntry, 0),
		limit:     limit,
		nextSeq:   1,
	}
}

// Record appends a snapshot and returns the stored entry.
func (j *Journal) Record(view SessionView) JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := JournalEntry{
		Seq:      j.nextSeq,
		At:       time.Now(),
		Checksum: view.Checksum(),
		View:     view,
	}
	j.nextSeq++

	if j.limit <= 0 {
		return entry
	}
	j.entries = append(j.entries, entry)
	if over := len(j.entries) - j.limit; over > 0 {
		j.entries = append(j.entries[:0:0], j.entries[over:]...)
	}
	return entry
}

// Size returns the number of retained entries.
func (j *Journal) Size() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// Latest returns the newest entry.
func (j *Journal) Latest() (JournalEntry, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.entries) == 0 {
		return JournalEntry{}, false
	}
	return j.entries[len(j.entries)-1], true
}

// At returns the entry with sequence number seq if it is still retained.
func (j *Journal) At(seq int) (JournalEntry, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.entries) == 0 {
		return JournalEntry{}, false
	}
	i := seq - j.entries[0].Seq
	if i < 0 || i >= len(j.entries) {
		return JournalEntry{}, false
	}
	return j.entries[i], true
}

// Since returns the retained entries with a sequence number greater than seq.
func (j *Journal) Since(seq int) []JournalEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]JournalEntry, 0)
	for _, e := range j.entries {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}
