// Package journal keeps an ordered record of the room snapshots a session
// published. It is a diagnostic trail; nothing reads it back into a session.
package journal

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/0xphantomotr/mental/pkg/player"
	"github.com/0xphantomotr/mental/pkg/room"
)

var ErrNotFound = errors.New("journal: not found")

var entryPrefix = []byte("snap:")

// Entry is one recorded snapshot.
type Entry struct {
	ID         string          `json:"id"`
	Seq        uint64          `json:"seq"`
	RecordedAt time.Time       `json:"recorded_at"`
	Players    []string        `json:"players"`
	Locked     bool            `json:"locked"`
	Room       json.RawMessage `json:"room"`
}

type Journal struct {
	mu      sync.Mutex
	store   Store
	seq     uint64
	seeded  bool
	entropy io.Reader
	now     func() time.Time
}

func New(store Store) *Journal {
	return &Journal{
		store:   store,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

func entryKey(id ulid.ULID) []byte {
	key := make([]byte, 0, len(entryPrefix)+ulid.EncodedSize)
	key = append(key, entryPrefix...)
	key = append(key, id.String()...)
	return key
}

// Record appends r to the journal.
func (j *Journal) Record(r room.Room) (Entry, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal room: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.seed(); err != nil {
		return Entry{}, err
	}
	now := j.now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), j.entropy)
	if err != nil {
		return Entry{}, fmt.Errorf("new entry id: %w", err)
	}
	entry := Entry{
		ID:         id.String(),
		Seq:        j.seq + 1,
		RecordedAt: now,
		Players:    player.Keys(r.Players()),
		Locked:     r.IsPlayerLocked(),
		Room:       raw,
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal entry %d: %w", entry.Seq, err)
	}
	if err := j.store.Set(entryKey(id), payload); err != nil {
		return Entry{}, fmt.Errorf("persist entry %d: %w", entry.Seq, err)
	}
	j.seq = entry.Seq
	return entry, nil
}

// seed continues the sequence of entries already in the store, so a journal
// reopened on a persistent store does not reuse sequence numbers. Callers
// hold j.mu.
func (j *Journal) seed() error {
	if j.seeded {
		return nil
	}
	latest, err := j.Latest()
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return fmt.Errorf("seed sequence: %w", err)
	default:
		j.seq = latest.Seq
	}
	j.seeded = true
	return nil
}

// Entries returns every recorded snapshot, oldest first.
func (j *Journal) Entries() ([]Entry, error) {
	var entries []Entry
	err := j.store.Iterate(entryPrefix, func(key, value []byte) error {
		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return fmt.Errorf("decode entry %s: %w", key, err)
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Latest returns the entry with the highest sequence number.
func (j *Journal) Latest() (Entry, error) {
	entries, err := j.Entries()
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, ErrNotFound
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if e.Seq > latest.Seq {
			latest = e
		}
	}
	return latest, nil
}

// Len is the sequence number of the last entry, counting entries written by
// earlier journals on the same store.
func (j *Journal) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.seed()
	return j.seq
}

func (j *Journal) Close() error {
	return j.store.Close()
}
