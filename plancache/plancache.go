package plancache

import (
	"fmt"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/dianpeng/dmlc/cg"
	"github.com/dianpeng/dmlc/config"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v2"
)

// Cache stores compiled programs keyed by the script text, the command line
// values and the configuration fingerprint. A program is only valid for the
// exact configuration it was compiled with, so the fingerprint is part of the
// key and nothing is ever invalidated.
type Cache struct {
	db  *badger.DB
	log *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

type Key uint64

const keyPrefix = "plan/"

func (self Key) bytes() []byte {
	return []byte(fmt.Sprintf("%s%016x", keyPrefix, uint64(self)))
}

func (self Key) String() string {
	return fmt.Sprintf("%016x", uint64(self))
}

// KeyOf hashes everything a compiled program depends on. Arguments are
// hashed in name order.
func KeyOf(script string, args map[string]string, cfg *config.Config) Key {
	d := xxhash.New()
	_, _ = d.WriteString(script)
	_, _ = d.WriteString("\x00")

	names := maps.Keys(args)
	slices.Sort(names)
	for _, n := range names {
		_, _ = d.WriteString(n)
		_, _ = d.WriteString("=")
		_, _ = d.WriteString(args[n])
		_, _ = d.WriteString("\x00")
	}
	_, _ = d.WriteString(cfg.Fingerprint())
	return Key(d.Sum64())
}

// badgerLogger forwards the store's own messages to zap.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (self badgerLogger) Errorf(f string, args ...interface{})   { self.s.Errorf(f, args...) }
func (self badgerLogger) Warningf(f string, args ...interface{}) { self.s.Warnf(f, args...) }
func (self badgerLogger) Infof(f string, args ...interface{})    { self.s.Debugf(f, args...) }
func (self badgerLogger) Debugf(f string, args ...interface{})   { self.s.Debugf(f, args...) }

// Open opens the cache stored in dir, an empty dir keeps the cache in memory.
func Open(dir string, log *zap.Logger) (*Cache, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(badgerLogger{s: log.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open plan cache %q", dir)
	}
	return &Cache{
		db:  db,
		log: log,
	}, nil
}

func (self *Cache) Close() error {
	return self.db.Close()
}

// Get returns the cached program of k. A missing entry is not an error.
func (self *Cache) Get(k Key) (*cg.Program, bool, error) {
	var prog *cg.Program

	err := self.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k.bytes())
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			p := &cg.Program{}
			if err := yaml.Unmarshal(val, p); err != nil {
				return err
			}
			prog = p
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		self.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "plan cache get %s", k)
	}

	self.hits.Add(1)
	self.log.Debug("plan cache hit", zap.Stringer("key", k))
	return prog, true, nil
}

func (self *Cache) Put(k Key, p *cg.Program) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encode program")
	}
	if err := self.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k.bytes(), data)
	}); err != nil {
		return errors.Wrapf(err, "plan cache put %s", k)
	}
	self.log.Debug("plan cache put", zap.Stringer("key", k), zap.Int("bytes", len(data)))
	return nil
}

// Len counts the cached programs.
func (self *Cache) Len() (int, error) {
	n := 0
	err := self.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Purge drops every cached program.
func (self *Cache) Purge() error {
	return self.db.DropPrefix([]byte(keyPrefix))
}

func (self *Cache) Stats() (hits, misses int64) {
	return self.hits.Load(), self.misses.Load()
}
