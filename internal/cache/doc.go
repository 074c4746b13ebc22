// Package cache provides the TTL cache used to keep identity provider key
// sets between requests.
//
// A Backend is a plain byte store: an in-memory LRU map or Redis. Store adds
// expiry on top of it without relying on backend TTL support. Every entry
// "k" is paired with a marker "k/ttl" holding the Unix seconds of its last
// write, and reads repair entries whose two halves disagree.
//
//	backend, err := cache.New(ctx, cfg.Cache, logger)
//	if err != nil {
//	    return err
//	}
//	store := cache.NewStore(backend, cache.WithTTL(time.Hour))
//
//	store.Set(ctx, "issuer/jwk_set", raw)
//	raw, ok := store.Get(ctx, "issuer/jwk_set")
//
// Backend errors never escape Store: Get reports a miss and Set or Delete
// report false. All implementations are safe for concurrent use.
package cache
