package server

import (
	"fmt"
	"sync/atomic"

	"github.com/coocood/freecache"

	"github.com/janelia-flyem/neuropil/npil"
)

// sliceCache holds encoded slice PNGs keyed by layer, layer version and slice index, so
// a modified layer never returns stale slices.
type sliceCache struct {
	cache  *freecache.Cache
	hits   uint64
	misses uint64
}

func newSliceCache(sizeMB int) *sliceCache {
	numBytes := sizeMB * npil.Mega
	npil.Infof("Created slice cache of %s\n", npil.ByteSize(uint64(numBytes)))
	return &sliceCache{cache: freecache.NewCache(numBytes)}
}

func sliceKey(layer string, version uint64, z int) []byte {
	return []byte(fmt.Sprintf("%s\x00%d\x00%d", layer, version, z))
}

// get returns a cached slice or calls encode and caches the result.
func (sc *sliceCache) get(layer string, version uint64, z int, encode func() ([]byte, error)) ([]byte, error) {
	key := sliceKey(layer, version, z)
	b, err := sc.cache.Get(key)
	if err != nil && err != freecache.ErrNotFound {
		return nil, err
	}
	if b != nil {
		atomic.AddUint64(&sc.hits, 1)
		return b, nil
	}
	atomic.AddUint64(&sc.misses, 1)
	if b, err = encode(); err != nil {
		return nil, err
	}
	if err := sc.cache.Set(key, b, 0); err != nil {
		npil.Debugf("Unable to cache slice %d of layer %q: %v\n", z, layer, err)
	}
	return b, nil
}

func (sc *sliceCache) stats() map[string]interface{} {
	return map[string]interface{}{
		"Hits":    atomic.LoadUint64(&sc.hits),
		"Misses":  atomic.LoadUint64(&sc.misses),
		"Entries": sc.cache.EntryCount(),
	}
}
