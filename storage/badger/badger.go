package badger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/dgraph-io/badger/v3"

	"github.com/janelia-flyem/neuropil/npil"
	"github.com/janelia-flyem/neuropil/storage"
)

const (
	// DefaultVersionsToKeep is the number of versions kept per key.  Checkpoints overwrite
	// earlier ones so only the latest is needed.
	DefaultVersionsToKeep = 1

	// DefaultSyncWrites is true if all writes are synced to disk, making the db resilient
	// at cost of speed.
	DefaultSyncWrites = false

	layerPrefix = "layer/"
	metaSuffix  = "/meta"
	dataSuffix  = "/data"
)

func init() {
	ver, err := semver.Make("0.2.0")
	if err != nil {
		npil.Errorf("Unable to make semver in badger: %v\n", err)
	}
	storage.RegisterEngine(Engine{"badger", "BadgerDB", ver})
}

// --- Engine Implementation ------

type Engine struct {
	name   string
	desc   string
	semver semver.Version
}

func (e Engine) GetName() string {
	return e.name
}

func (e Engine) GetDescription() string {
	return e.desc
}

func (e Engine) GetSemVer() semver.Version {
	return e.semver
}

func (e Engine) String() string {
	return fmt.Sprintf("%s [%s]", e.name, e.semver)
}

// NewStore returns a badger store at the given path.  An empty path gives an in-memory store.
func (e Engine) NewStore(path string) (storage.Store, error) {
	return Open(path, nil)
}

// Options tunes a badger store.  Zero values keep the badger defaults.
type Options struct {
	ReadOnly         bool
	ValueThreshold   int64
	ValueLogFileSize int64
	SyncInterval     time.Duration
}

func getOptions(path string, config *Options) badger.Options {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil).
		WithNumVersionsToKeep(DefaultVersionsToKeep).
		WithSyncWrites(DefaultSyncWrites)
	if config == nil {
		return opts
	}
	if config.ReadOnly {
		opts = opts.WithReadOnly(true)
	}
	if config.ValueThreshold > 0 {
		opts = opts.WithValueThreshold(config.ValueThreshold)
	}
	if config.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(config.ValueLogFileSize)
	}
	return opts
}

// DB is a checkpoint store backed by badger.  Layer metadata is MessagePack encoded under
// "layer/<name>/meta" and volumes are compressed and checksummed under "layer/<name>/data".
type DB struct {
	directory string
	bdp       *badger.DB

	// stopSyncCh signals the sync goroutine to stop.
	stopSyncCh chan struct{}
}

// Open returns a badger store, creating one at path if it doesn't exist.  An empty path
// gives an in-memory store.
func Open(path string, config *Options) (*DB, error) {
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			npil.Infof("Checkpoint store not already at path (%s). Creating directory...\n", path)
			if err := os.MkdirAll(path, 0744); err != nil {
				return nil, fmt.Errorf("Can't make directory at %s: %v", path, err)
			}
		}
	}
	timedLog := npil.NewTimeLog()
	bdp, err := badger.Open(getOptions(path, config))
	if err != nil {
		return nil, err
	}
	db := &DB{directory: path, bdp: bdp}
	if path != "" && (config == nil || !config.ReadOnly) {
		interval := 30 * time.Second
		if config != nil && config.SyncInterval > 0 {
			interval = config.SyncInterval
		}
		db.stopSyncCh = make(chan struct{})
		go db.syncPeriodically(interval)
	}
	timedLog.Infof("Opened %s", db)
	return db, nil
}

// Periodically sync to prevent too many writes from being buffered if the process crashes.
func (db *DB) syncPeriodically(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-db.stopSyncCh:
			npil.Debugf("Stopping sync goroutine for badger @ %s\n", db.directory)
			return
		case <-ticker.C:
			if err := db.bdp.Sync(); err != nil {
				npil.Errorf("Unable to sync badger @ %s: %v\n", db.directory, err)
			}
		}
	}
}

func (db *DB) String() string {
	if db.directory == "" {
		return "badger @ memory"
	}
	return fmt.Sprintf("badger @ %s", db.directory)
}

// Close closes the store.
func (db *DB) Close() error {
	if db == nil || db.bdp == nil {
		return nil
	}
	if db.stopSyncCh != nil {
		close(db.stopSyncCh)
	}
	err := db.bdp.Close()
	db.bdp = nil
	npil.Infof("Closed %s\n", db)
	return err
}

func metaKey(name string) []byte {
	return []byte(layerPrefix + name + metaSuffix)
}

func dataKey(name string) []byte {
	return []byte(layerPrefix + name + dataSuffix)
}

// PutLayer writes a checkpoint of the layer, replacing any earlier one.
func (db *DB) PutLayer(rec storage.LayerRecord) error {
	if rec.Name == "" {
		return fmt.Errorf("can't store layer without a name")
	}
	if rec.Saved.IsZero() {
		rec.Saved = time.Now()
	}
	meta, err := rec.Meta().MarshalMsg(nil)
	if err != nil {
		return err
	}
	var data []byte
	if rec.Volume != nil {
		if data, err = npil.SerializeVolume(rec.Volume, npil.Snappy, npil.CRC32); err != nil {
			return err
		}
	}
	err = db.bdp.Update(func(txn *badger.Txn) error {
		if err := txn.Set(metaKey(rec.Name), meta); err != nil {
			return err
		}
		if data == nil {
			return txn.Delete(dataKey(rec.Name))
		}
		return txn.Set(dataKey(rec.Name), data)
	})
	if err == nil {
		storage.StoreBytesWritten(len(meta) + len(data))
	}
	return err
}

// GetLayer returns the checkpoint of the named layer or storage.ErrNotStored.
func (db *DB) GetLayer(name string) (rec storage.LayerRecord, err error) {
	var meta storage.LayerMeta
	var data []byte
	var metaBytes int
	err = db.bdp.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(name))
		if err != nil {
			return err
		}
		b, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if _, err := meta.UnmarshalMsg(b); err != nil {
			return err
		}
		metaBytes = len(b)
		if !meta.HasVolume {
			return nil
		}
		if item, err = txn.Get(dataKey(name)); err != nil {
			return fmt.Errorf("layer %q has metadata but no volume: %w", name, err)
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, fmt.Errorf("%q: %w", name, storage.ErrNotStored)
	}
	if err != nil {
		return rec, err
	}
	storage.StoreBytesRead(metaBytes + len(data))
	rec = storage.LayerRecord{
		Name:    meta.Name,
		Kind:    meta.Kind,
		Version: meta.Version,
		Saved:   meta.Saved,
		Points:  meta.Points,
	}
	if data != nil {
		if rec.Volume, err = npil.DeserializeVolume(data); err != nil {
			return rec, fmt.Errorf("bad volume for layer %q: %w", name, err)
		}
	}
	return rec, nil
}

// LayerNames returns the names of all checkpointed layers in key order.
func (db *DB) LayerNames() ([]string, error) {
	var names []string
	err := db.bdp.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // key only
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(layerPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			if strings.HasSuffix(key, metaSuffix) {
				names = append(names, strings.TrimSuffix(strings.TrimPrefix(key, layerPrefix), metaSuffix))
			}
		}
		return nil
	})
	return names, err
}

// DeleteLayer removes the checkpoint of the named layer.
func (db *DB) DeleteLayer(name string) error {
	return db.bdp.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey(name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%q: %w", name, storage.ErrNotStored)
			}
			return err
		}
		if err := txn.Delete(metaKey(name)); err != nil {
			return err
		}
		return txn.Delete(dataKey(name))
	})
}
