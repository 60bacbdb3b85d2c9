// Package cache provides a generic Cache with in-memory and redis backends.
//
// trellis caches bundle manifests with it: in a single process NewMemory is
// enough, several replicas share builds through NewRedis.
//
//	manifests := cache.NewMemory[*bundle.Manifest](cache.WithMaxEntries(64))
//	// or
//	manifests := cache.NewRedis[*bundle.Manifest](client, cache.WithPrefix("manifest"))
//
// GetOrSet fills a missing key once even when many requests miss it at the
// same time.
package cache
