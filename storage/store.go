/*
	Package storage persists curated layers as checkpoints and connects to external
	services: blob buckets for exports and Kafka for mutation messages.
*/
package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/blang/semver"

	"github.com/janelia-flyem/neuropil/npil"
)

// ErrNotStored is returned when a layer has no checkpoint in a store.
var ErrNotStored = errors.New("layer not found in store")

// LayerRecord is the checkpointed state of one layer.  Image and label layers carry a
// Volume while point layers carry Points.
type LayerRecord struct {
	Name    string
	Kind    string
	Version uint64
	Saved   time.Time
	Volume  *npil.Volume
	Points  [][]float64
}

// Store holds layer checkpoints keyed by layer name.
type Store interface {
	PutLayer(LayerRecord) error
	GetLayer(name string) (LayerRecord, error)
	LayerNames() ([]string, error)
	DeleteLayer(name string) error
	Close() error
	String() string
}

// Engine is a storage backend that can create a Store.
type Engine interface {
	GetName() string
	GetDescription() string
	GetSemVer() semver.Version
	String() string

	// NewStore opens a store at the given path, creating it if necessary.  An empty
	// path gives a store that is not persisted.
	NewStore(path string) (Store, error)
}

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]Engine)
)

// RegisterEngine makes a storage engine available by name.  It is typically called from
// the init function of an engine package.
func RegisterEngine(e Engine) {
	enginesMu.Lock()
	engines[e.GetName()] = e
	enginesMu.Unlock()
}

// GetEngine returns the registered engine with the given name.
func GetEngine(name string) (Engine, error) {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	e, found := engines[name]
	if !found {
		return nil, fmt.Errorf("no storage engine %q is registered (compiled in)", name)
	}
	return e, nil
}

// EnginesAvailable returns a description of the registered engines.
func EnginesAvailable() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	var avail []string
	for _, e := range engines {
		avail = append(avail, e.String())
	}
	sort.Strings(avail)
	return avail
}

// Open returns a store from the named engine.
func Open(engine, path string) (Store, error) {
	e, err := GetEngine(engine)
	if err != nil {
		return nil, err
	}
	return e.NewStore(path)
}
