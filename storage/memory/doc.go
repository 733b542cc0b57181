// Package memory provides an in-memory implementation of the storage
// interfaces.
//
// All records live in maps guarded by a single sync.RWMutex and are lost on
// restart. A background goroutine removes expired authorization codes and
// access tokens; refresh tokens never expire and are only removed by
// rotation.
//
// Example usage:
//
//	store := memory.New()
//	defer store.Stop()
//
//	srv, err := server.New(clients, store, store, config, logger)
package memory
