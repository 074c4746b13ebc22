package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/oidcgw/internal/config"
	"github.com/vyrodovalexey/oidcgw/internal/observability"
)

const backendMemory = "memory"

// MemoryBackend is an in-process LRU-bounded Backend.
type MemoryBackend struct {
	logger     observability.Logger
	maxEntries int

	mu       sync.Mutex
	items    map[string]*list.Element
	eviction *list.List
}

type memoryEntry struct {
	key   string
	value []byte
}

// NewMemoryBackend creates an in-memory backend holding at most maxEntries
// keys. The least recently used key is evicted first.
func NewMemoryBackend(maxEntries int, logger observability.Logger) *MemoryBackend {
	if maxEntries <= 0 {
		maxEntries = config.DefaultCacheMaxEntries
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	logger.Info("memory cache initialized", observability.Int("maxEntries", maxEntries))

	return &MemoryBackend{
		logger:     logger,
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		eviction:   list.New(),
	}
}

func (c *MemoryBackend) startSpan(ctx context.Context, op, key string) (context.Context, trace.Span, func()) {
	ctx, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.backend."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.backend", backendMemory),
			attribute.String("cache.key", key),
		),
	)
	start := time.Now()
	return ctx, span, func() {
		GetCacheMetrics().operationDuration.WithLabelValues(backendMemory, op).Observe(time.Since(start).Seconds())
		span.End()
	}
}

// Get returns a copy of the stored value or ErrCacheMiss.
func (c *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	_, span, done := c.startSpan(ctx, "get", key)
	defer done()

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		span.SetAttributes(attribute.Bool("cache.found", false))
		return nil, ErrCacheMiss
	}
	c.eviction.MoveToFront(elem)

	entry := elem.Value.(*memoryEntry)
	span.SetAttributes(attribute.Bool("cache.found", true))
	return append([]byte(nil), entry.value...), nil
}

// Set stores a copy of value, evicting the oldest key when full.
func (c *MemoryBackend) Set(ctx context.Context, key string, value []byte) error {
	_, _, done := c.startSpan(ctx, "set", key)
	defer done()

	stored := append([]byte(nil), value...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*memoryEntry).value = stored
		c.eviction.MoveToFront(elem)
		return nil
	}

	for c.eviction.Len() >= c.maxEntries {
		oldest := c.eviction.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		GetCacheMetrics().evictionsTotal.WithLabelValues(backendMemory).Inc()
	}

	c.items[key] = c.eviction.PushFront(&memoryEntry{key: key, value: stored})
	GetCacheMetrics().sizeGauge.WithLabelValues(backendMemory).Set(float64(len(c.items)))
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (c *MemoryBackend) Delete(ctx context.Context, key string) error {
	_, _, done := c.startSpan(ctx, "delete", key)
	defer done()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
		GetCacheMetrics().sizeGauge.WithLabelValues(backendMemory).Set(float64(len(c.items)))
	}
	return nil
}

// Len returns the number of stored keys.
func (c *MemoryBackend) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Ping always succeeds.
func (c *MemoryBackend) Ping(context.Context) error { return nil }

// Close drops all entries.
func (c *MemoryBackend) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	c.logger.Info("memory cache closed")
	return nil
}

func (c *MemoryBackend) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	delete(c.items, elem.Value.(*memoryEntry).key)
}
