package node

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/settings"
)

// DefaultContextCacheSize is used when no size is configured.
const DefaultContextCacheSize = 256

// ContextCache maps node identities to their environments. Entries are
// removed explicitly when a node is disposed, or when the cache is full.
type ContextCache struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, *Environment]
	factory func(nodeID string) (*Environment, error)
	logger  *zap.Logger
}

// NewContextCache creates a cache of at most size environments built by factory.
func NewContextCache(size int, factory func(nodeID string) (*Environment, error), logger *zap.Logger) (*ContextCache, error) {
	if factory == nil {
		return nil, fmt.Errorf("environment factory is required")
	}
	if size <= 0 {
		size = DefaultContextCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ContextCache{factory: factory, logger: logger}
	cache, err := lru.NewWithEvict(size, func(nodeID string, _ *Environment) {
		c.logger.Debug("Environment released", zap.String("node_id", nodeID))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create context cache: %w", err)
	}
	c.cache = cache
	return c, nil
}

// Get returns the environment of nodeID, creating it on first use.
func (c *ContextCache) Get(nodeID string) (*Environment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if env, ok := c.cache.Get(nodeID); ok {
		return env, nil
	}
	env, err := c.factory(nodeID)
	if err != nil {
		return nil, err
	}
	c.cache.Add(nodeID, env)
	return env, nil
}

// Evict drops the environment of nodeID.
func (c *ContextCache) Evict(nodeID string) bool {
	return c.cache.Remove(nodeID)
}

// Contains reports whether nodeID has a cached environment.
func (c *ContextCache) Contains(nodeID string) bool {
	return c.cache.Contains(nodeID)
}

// Len returns the number of cached environments.
func (c *ContextCache) Len() int {
	return c.cache.Len()
}

// NewNode creates a node bound to the cached environment of id. Disposing
// the node evicts the environment.
func (c *ContextCache) NewNode(id string, s *settings.Settings) (*Node, error) {
	env, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	n, err := New(id, env, s)
	if err != nil {
		c.Evict(id)
		return nil, err
	}
	n.cache = c
	return n, nil
}
