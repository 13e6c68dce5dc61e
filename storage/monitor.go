/*
	This file implements a monitor for checkpoint store I/O.
*/

package storage

import "sync/atomic"

var (
	storeBytesRead    uint64
	storeBytesWritten uint64
	storeGets         uint64
	storePuts         uint64
)

// IOStats are running totals of store traffic since the process started.
type IOStats struct {
	BytesRead    uint64
	BytesWritten uint64
	Gets         uint64
	Puts         uint64
}

// StoreBytesRead notes a GET of n bytes from a storage engine.
func StoreBytesRead(n int) {
	atomic.AddUint64(&storeBytesRead, uint64(n))
	atomic.AddUint64(&storeGets, 1)
}

// StoreBytesWritten notes a PUT of n bytes to a storage engine.
func StoreBytesWritten(n int) {
	atomic.AddUint64(&storeBytesWritten, uint64(n))
	atomic.AddUint64(&storePuts, 1)
}

// StoreIOStats returns the current totals.
func StoreIOStats() IOStats {
	return IOStats{
		BytesRead:    atomic.LoadUint64(&storeBytesRead),
		BytesWritten: atomic.LoadUint64(&storeBytesWritten),
		Gets:         atomic.LoadUint64(&storeGets),
		Puts:         atomic.LoadUint64(&storePuts),
	}
}
