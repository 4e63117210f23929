package directory

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/panjf2000/ants/v2"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/domain"
)

const (
	NumMasterServers  = 4
	MasterServerPort  = 8300
	defaultTimeout    = time.Second
	defaultQueryLimit = 256
)

// Service enumerates game servers through master servers and queries their state.
// Implementations may drop requests silently; callers retry what is missing.
type Service interface {
	MasterServers() []string
	DiscoverAddresses(ctx context.Context, endpoint string) ([]domain.ServerAddress, error)
	QueryServers(ctx context.Context, addrs []domain.ServerAddress) map[domain.ServerAddress]Result
}

type Result struct {
	Info domain.ServerInfo
	Err  error
}

// DefaultMasterServers returns master1..N.teeworlds.com.
func DefaultMasterServers() []string {
	masters := make([]string, 0, NumMasterServers)
	for i := 1; i <= NumMasterServers; i++ {
		masters = append(masters, fmt.Sprintf("master%d.teeworlds.com:%d", i, MasterServerPort))
	}
	return masters
}

type Options struct {
	MasterServers []string
	Timeout       time.Duration
	Workers       int
}

// Teeworlds talks the 0.6 connless UDP protocol.
type Teeworlds struct {
	masters []string
	timeout time.Duration
	pool    *ants.Pool
}

var _ Service = (*Teeworlds)(nil)

func NewTeeworlds(opts Options) (*Teeworlds, error) {
	if len(opts.MasterServers) == 0 {
		opts.MasterServers = DefaultMasterServers()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultQueryLimit
	}

	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("directory: create query pool: %w", err)
	}

	return &Teeworlds{
		masters: append([]string(nil), opts.MasterServers...),
		timeout: opts.Timeout,
		pool:    pool,
	}, nil
}

func (t *Teeworlds) Close() {
	t.pool.Release()
}

func (t *Teeworlds) MasterServers() []string {
	return append([]string(nil), t.masters...)
}

// DiscoverAddresses requests the server list from one master. The list spans
// several packets, reading stops once no packet arrived within the timeout.
func (t *Teeworlds) DiscoverAddresses(ctx context.Context, endpoint string) ([]domain.ServerAddress, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial master %s: %w", endpoint, err)
	}
	defer conn.Close()

	if _, err := conn.Write(buildGetListPacket()); err != nil {
		return nil, fmt.Errorf("write master %s: %w", endpoint, err)
	}

	var (
		addrs   []domain.ServerAddress
		packets int
		buf     = make([]byte, maxPacketLen)
	)
	for ctx.Err() == nil {
		if err := conn.SetReadDeadline(t.deadline(ctx)); err != nil {
			return nil, err
		}
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				break
			}
			return addrs, fmt.Errorf("read master %s: %w", endpoint, err)
		}

		list, err := decodeServerList(buf[:n])
		if err != nil {
			log.Debug("Ignoring master packet", "master", endpoint, "error", err)
			continue
		}
		packets++
		addrs = append(addrs, list...)
	}

	if packets == 0 {
		return nil, fmt.Errorf("master %s did not answer", endpoint)
	}
	return addrs, nil
}

// QueryServers queries every address on the worker pool. Addresses that did
// not answer carry an error in their Result.
func (t *Teeworlds) QueryServers(ctx context.Context, addrs []domain.ServerAddress) map[domain.ServerAddress]Result {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[domain.ServerAddress]Result, len(addrs))
	)

	store := func(addr domain.ServerAddress, res Result) {
		mu.Lock()
		results[addr] = res
		mu.Unlock()
	}

	for _, addr := range addrs {
		wg.Add(1)
		err := t.pool.Submit(func() {
			defer wg.Done()
			info, err := t.queryServer(ctx, addr)
			store(addr, Result{Info: info, Err: err})
		})
		if err != nil {
			wg.Done()
			store(addr, Result{Err: fmt.Errorf("submit query: %w", err)})
		}
	}
	wg.Wait()

	return results
}

func (t *Teeworlds) queryServer(ctx context.Context, addr domain.ServerAddress) (domain.ServerInfo, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr.String())
	if err != nil {
		return domain.ServerInfo{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(t.deadline(ctx)); err != nil {
		return domain.ServerInfo{}, err
	}

	token := byte(rand.IntN(256))
	if _, err := conn.Write(buildGetInfoPacket(token)); err != nil {
		return domain.ServerInfo{}, err
	}

	buf := make([]byte, maxPacketLen)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return domain.ServerInfo{}, err
		}
		info, err := decodeServerInfo(buf[:n], token)
		if err != nil {
			// stale or foreign packet, wait for ours until the deadline
			continue
		}
		info.Address = addr
		return info, nil
	}
}

func (t *Teeworlds) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(t.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctxDeadline
	}
	return deadline
}
