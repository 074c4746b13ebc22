package cache

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/vyrodovalexey/oidcgw/internal/observability"
)

// GetString returns the value under key as a string.
func (s *Store) GetString(ctx context.Context, key string) (string, bool) {
	v, ok := s.Get(ctx, key)
	if !ok {
		return "", false
	}
	return string(v), true
}

// SetString stores value under key.
func (s *Store) SetString(ctx context.Context, key, value string) bool {
	return s.Set(ctx, key, []byte(value))
}

// GetInt returns a value stored by SetInt. Values of the wrong size are
// reported as absent.
func (s *Store) GetInt(ctx context.Context, key string) (int32, bool) {
	v, ok := s.Get(ctx, key)
	if !ok || len(v) != 4 {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(v)), true //nolint:gosec // round-trips SetInt
}

// SetInt stores value as 4 little-endian bytes.
func (s *Store) SetInt(ctx context.Context, key string, value int32) bool {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(value)) //nolint:gosec // two's complement round-trip
	return s.Set(ctx, key, b[:])
}

// GetJSON decodes the value under key into out.
func (s *Store) GetJSON(ctx context.Context, key string, out any) bool {
	v, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(v, out); err != nil {
		s.logger.Warn("cached value is not valid JSON",
			observability.String("key", key), observability.Error(err))
		return false
	}
	return true
}

// SetJSON stores value encoded as JSON.
func (s *Store) SetJSON(ctx context.Context, key string, value any) bool {
	b, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("failed to encode cache value",
			observability.String("key", key), observability.Error(err))
		return false
	}
	return s.Set(ctx, key, b)
}
