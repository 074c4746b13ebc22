// Package retry provides exponential backoff with jitter for transient
// failures of the cache backend and the identity provider.
//
//	err := retry.Do(ctx, &retry.Config{MaxRetries: 2}, func() error {
//	    return client.Ping(ctx).Err()
//	}, nil)
//
// Wrap an error with Permanent to stop retrying immediately.
package retry
