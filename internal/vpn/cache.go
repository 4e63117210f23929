package vpn

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Backend persists the complete verdict set.
type Backend interface {
	Load(ctx context.Context) (map[string]bool, error)
	Save(ctx context.Context, verdicts map[string]bool) error
}

// Mirror is a shared verdict tier consulted on cache misses.
type Mirror interface {
	Get(ctx context.Context, ip string) (isVPN bool, found bool, err error)
	Put(ctx context.Context, ip string, isVPN bool) error
}

// Cache maps canonical ip strings to verdicts. Keys are only added or
// overwritten, never removed, so growth is detected by entry count.
type Cache struct {
	mu      sync.Mutex
	entries map[string]bool
	flushed int

	flushMu sync.Mutex
	backend Backend
	mirror  Mirror
}

func NewCache(backend Backend) *Cache {
	return &Cache{
		entries: make(map[string]bool),
		backend: backend,
	}
}

func (c *Cache) SetMirror(mirror Mirror) {
	c.mu.Lock()
	c.mirror = mirror
	c.mu.Unlock()
}

// Load merges the persisted verdicts into memory.
func (c *Cache) Load(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}

	loaded, err := c.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load verdicts: %w", err)
	}

	c.mu.Lock()
	maps.Copy(c.entries, loaded)
	c.flushed = len(c.entries)
	count := len(c.entries)
	c.mu.Unlock()

	log.Info("Loaded IP verdicts", "count", count)
	return nil
}

// Get consults memory only.
func (c *Cache) Get(ip string) (isVPN bool, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	isVPN, found = c.entries[ip]
	return isVPN, found
}

// Lookup consults memory and then the mirror. Mirror hits are kept in memory.
func (c *Cache) Lookup(ctx context.Context, ip string) (isVPN bool, found bool) {
	c.mu.Lock()
	isVPN, found = c.entries[ip]
	mirror := c.mirror
	c.mu.Unlock()

	if found || mirror == nil {
		return isVPN, found
	}

	isVPN, found, err := mirror.Get(ctx, ip)
	if err != nil {
		log.Warn("Verdict mirror lookup failed", "ip", ip, "error", err)
		return false, false
	}
	if !found {
		return false, false
	}

	c.mu.Lock()
	c.entries[ip] = isVPN
	c.mu.Unlock()
	return isVPN, true
}

func (c *Cache) Put(ctx context.Context, ip string, isVPN bool) {
	c.mu.Lock()
	c.entries[ip] = isVPN
	mirror := c.mirror
	c.mu.Unlock()

	if mirror == nil {
		return
	}
	if err := mirror.Put(ctx, ip, isVPN); err != nil {
		log.Warn("Verdict mirror write failed", "ip", ip, "error", err)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Flush rewrites the whole backend when the cache grew since the last
// successful flush. It reports whether anything was written.
func (c *Cache) Flush(ctx context.Context) (bool, error) {
	if c.backend == nil {
		return false, nil
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if len(c.entries) == 0 || len(c.entries) <= c.flushed {
		c.mu.Unlock()
		return false, nil
	}
	snapshot := maps.Clone(c.entries)
	c.mu.Unlock()

	log.Debug("Writing IP verdicts", "count", len(snapshot))
	if err := c.backend.Save(ctx, snapshot); err != nil {
		return false, fmt.Errorf("save verdicts: %w", err)
	}

	c.mu.Lock()
	c.flushed = len(snapshot)
	c.mu.Unlock()
	return true, nil
}

// RunFlusher flushes every interval until ctx is done.
func (c *Cache) RunFlusher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			written, err := c.Flush(ctx)
			if err != nil {
				log.Error("Flushing IP verdicts failed", "error", err)
				continue
			}
			if written {
				log.Info("Flushed IP verdicts", "count", c.Len())
			}
		}
	}
}
