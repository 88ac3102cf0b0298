// Package journal persists workflow run records in an embedded badger
// database so past runs can be listed after the process exits.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/go-logr/logr"

	"github.com/imamik/vcdflow/internal/provisioning"
)

// ErrNotFound is returned when no run has the requested ID.
var ErrNotFound = errors.New("run not found")

const runPrefix = "run:"

// Store records runs in badger. It implements provisioning.RunRecorder.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

var _ provisioning.RunRecorder = (*Store)(nil)

type options struct {
	inMemory bool
	ttl      time.Duration
	log      logr.Logger
}

// Option configures a Store.
type Option func(*options)

// WithInMemory keeps the journal in memory only.
func WithInMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithRetention expires records d after they were last written.
func WithRetention(d time.Duration) Option {
	return func(o *options) {
		o.ttl = d
	}
}

// WithLogger routes badger's own logging to l.
func WithLogger(l logr.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// Open opens or creates the journal at path.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	var bopts badger.Options
	if o.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if path == "" {
			return nil, errors.New("journal path is empty")
		}
		bopts = badger.DefaultOptions(filepath.Clean(path)).WithValueLogFileSize(1 << 20)
	}
	bopts.Logger = badgerLogger{log: o.log.WithName("badger")}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Store{db: db, ttl: o.ttl}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func runKey(id string) []byte {
	return []byte(runPrefix + id)
}

// Record implements provisioning.RunRecorder. A later record with the same ID
// replaces the earlier one.
func (s *Store) Record(ctx context.Context, run provisioning.Run) error {
	if run.ID == "" {
		return errors.New("run has no id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(runKey(run.ID), data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Get returns the run with the given ID.
func (s *Store) Get(_ context.Context, id string) (*provisioning.Run, error) {
	var out provisioning.Run
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &out)
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Filter narrows List.
type Filter struct {
	Workflow string
	Status   provisioning.RunStatus
	// Limit caps the result; zero means no limit.
	Limit int
}

func (f Filter) match(r provisioning.Run) bool {
	if f.Workflow != "" && r.Workflow != f.Workflow {
		return false
	}
	return f.Status == "" || r.Status == f.Status
}

// List returns the matching runs, most recently started first.
func (s *Store) List(ctx context.Context, f Filter) ([]provisioning.Run, error) {
	var runs []provisioning.Run
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(runPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r provisioning.Run
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &r)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if f.match(r) {
				runs = append(runs, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Started.After(runs[j].Started)
	})
	if f.Limit > 0 && len(runs) > f.Limit {
		runs = runs[:f.Limit]
	}
	return runs, nil
}

// Delete removes a run.
func (s *Store) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(runKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(runKey(id))
	})
}

// badgerLogger adapts logr to badger.Logger. Badger's info and debug output
// is only shown at higher verbosity.
type badgerLogger struct {
	log logr.Logger
}

func msg(format string, args ...any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(nil, msg(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Info(msg(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.V(1).Info(msg(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.V(2).Info(msg(format, args...))
}
