package poller

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/directory"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/domain"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/snapshot"
)

const (
	DefaultRetries  = 10
	DefaultInterval = 5 * time.Second
)

type Poller struct {
	dir      directory.Service
	store    *snapshot.Store
	retries  int
	interval time.Duration
}

type Option func(*Poller)

func WithRetries(retries int) Option {
	return func(p *Poller) {
		if retries > 0 {
			p.retries = retries
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

func New(dir directory.Service, store *snapshot.Store, opts ...Option) *Poller {
	p := &Poller{
		dir:      dir,
		store:    store,
		retries:  DefaultRetries,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run refreshes the snapshot until ctx is done, sleeping the full interval
// after every cycle.
func (p *Poller) Run(ctx context.Context) {
	log.Info("Starting server poller", "interval", p.interval, "retries", p.retries)
	for {
		p.Refresh(ctx)

		select {
		case <-ctx.Done():
			log.Info("Server poller stopped")
			return
		case <-time.After(p.interval):
		}
	}
}

// Refresh runs one discovery and query cycle. The new snapshot is published
// only if at least one address was discovered and one server answered,
// otherwise the previous snapshot stays in place and nil is returned.
func (p *Poller) Refresh(ctx context.Context) *snapshot.Snapshot {
	started := time.Now()

	addrs := p.discover(ctx)
	if len(addrs) == 0 {
		log.Warn("No servers discovered, keeping previous snapshot")
		return nil
	}

	servers := p.queryAll(ctx, addrs)
	if len(servers) == 0 {
		log.Warn("No server answered, keeping previous snapshot", "discovered", len(addrs))
		return nil
	}

	snap := snapshot.Build(servers)
	p.store.Publish(snap)

	log.Info("Poll cycle complete",
		"servers", len(snap.Servers),
		"players", len(snap.Players),
		"discovered", len(addrs),
		"took", time.Since(started).Round(time.Millisecond),
	)
	return snap
}

// discover queries all master servers concurrently and returns the sorted
// union of their addresses. A failing master contributes nothing.
func (p *Poller) discover(ctx context.Context) []domain.ServerAddress {
	var (
		mu   sync.Mutex
		seen = make(map[domain.ServerAddress]struct{})
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, master := range p.dir.MasterServers() {
		g.Go(func() error {
			addrs, err := p.dir.DiscoverAddresses(gctx, master)
			if err != nil {
				log.Debug("Master server failed", "master", master, "error", err)
				return nil
			}

			mu.Lock()
			for _, addr := range addrs {
				seen[addr] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return slices.SortedFunc(maps.Keys(seen), domain.CompareServerAddress)
}

// queryAll queries addrs and reissues queries for the addresses still missing,
// up to the retry budget.
func (p *Poller) queryAll(ctx context.Context, addrs []domain.ServerAddress) map[domain.ServerAddress]domain.ServerInfo {
	servers := make(map[domain.ServerAddress]domain.ServerInfo, len(addrs))
	missing := addrs

	for round := 0; round < p.retries && len(missing) > 0; round++ {
		if ctx.Err() != nil {
			break
		}

		results := p.dir.QueryServers(ctx, missing)

		next := make([]domain.ServerAddress, 0, len(missing))
		for _, addr := range missing {
			if res, ok := results[addr]; ok && res.Err == nil {
				servers[addr] = res.Info
				continue
			}
			next = append(next, addr)
		}
		missing = next
	}

	if len(missing) > 0 {
		log.Debug("Servers did not answer", "missing", len(missing), "answered", len(servers))
	}
	return servers
}
