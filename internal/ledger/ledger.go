package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/MimeLyc/video-uploader/internal/errs"
)

// Ledger keeps upload history in a single JSON array file. Every mutation
// rewrites the whole file under an advisory lock.
type Ledger struct {
	path string
	lock *flock.Flock

	mu  sync.Mutex
	now func() time.Time
}

func New(path string) *Ledger {
	return &Ledger{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}
}

func (l *Ledger) Path() string {
	return l.path
}

// LoadAll returns every entry in file order. A missing or empty file is an empty ledger.
func (l *Ledger) LoadAll() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *Ledger) Get(itemID int64) (Entry, error) {
	entries, err := l.LoadAll()
	if err != nil {
		return Entry{}, err
	}
	if i := indexOf(entries, itemID); i >= 0 {
		return entries[i], nil
	}
	return Entry{}, errs.New(errs.KindNotFound, "ledger entry not found").With("item_id", itemID)
}

// Append adds an entry for a new item.
func (l *Ledger) Append(e Entry) error {
	return l.update(func(entries []Entry) ([]Entry, error) {
		if indexOf(entries, e.ItemID) >= 0 {
			return nil, errs.New(errs.KindValidation, "ledger already has an entry for item").With("item_id", e.ItemID)
		}
		if e.AttemptID == "" {
			e.AttemptID = uuid.NewString()
		}
		e.UpdatedAt = l.now().Unix()
		return append(entries, e), nil
	})
}

// Replace overwrites the entry for itemID in place.
func (l *Ledger) Replace(itemID int64, e Entry) error {
	return l.update(func(entries []Entry) ([]Entry, error) {
		i := indexOf(entries, itemID)
		if i < 0 {
			return nil, errs.New(errs.KindNotFound, "ledger entry not found").With("item_id", itemID)
		}
		if e.AttemptID == "" {
			e.AttemptID = uuid.NewString()
		}
		e.UpdatedAt = l.now().Unix()
		entries[i] = e
		return entries, nil
	})
}

// Remove deletes the entry for itemID. Removing an unknown item is a no-op.
func (l *Ledger) Remove(itemID int64) error {
	return l.update(func(entries []Entry) ([]Entry, error) {
		i := indexOf(entries, itemID)
		if i < 0 {
			return entries, nil
		}
		return append(entries[:i], entries[i+1:]...), nil
	})
}

func (l *Ledger) update(fn func([]Entry) ([]Entry, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errs.Wrap(err, errs.KindPersistence, "create ledger directory").With("path", l.path)
	}
	if err := l.lock.Lock(); err != nil {
		return errs.Wrap(err, errs.KindPersistence, "lock ledger").With("path", l.path)
	}
	defer func() { _ = l.lock.Unlock() }()

	entries, err := l.read()
	if err != nil {
		return err
	}
	next, err := fn(entries)
	if err != nil {
		return err
	}
	return l.write(next)
}

func (l *Ledger) read() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.KindPersistence, "read ledger").With("path", l.path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []Entry{}, nil
	}

	entries := make([]Entry, 0)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errs.Wrap(err, errs.KindPersistence, "decode ledger").With("path", l.path)
	}
	return entries, nil
}

func (l *Ledger) write(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	content, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errs.Wrap(err, errs.KindPersistence, "encode ledger")
	}
	content = append(content, '\n')

	tmpPath := l.path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return errs.Wrap(err, errs.KindPersistence, "write ledger").With("path", tmpPath)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return errs.Wrap(err, errs.KindPersistence, "replace ledger").With("path", l.path)
	}
	return nil
}

func indexOf(entries []Entry, itemID int64) int {
	for i, e := range entries {
		if e.ItemID == itemID {
			return i
		}
	}
	return -1
}
