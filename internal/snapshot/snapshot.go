package snapshot

import (
	"maps"
	"slices"
	"time"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/domain"
)

// Snapshot is one consistent view of all servers and their players.
// It must not be modified once published.
type Snapshot struct {
	Generation uint64                                     `json:"generation"`
	CreatedAt  time.Time                                  `json:"created_at"`
	Servers    map[domain.ServerAddress]domain.ServerInfo `json:"-"`
	Players    []domain.Player                            `json:"players"`
}

func Empty() *Snapshot {
	return &Snapshot{Servers: map[domain.ServerAddress]domain.ServerInfo{}}
}

// Build assembles a snapshot from query results. Every player gets its owning
// server address attached and is appended to the flattened list in address order.
func Build(servers map[domain.ServerAddress]domain.ServerInfo) *Snapshot {
	snap := &Snapshot{
		CreatedAt: time.Now(),
		Servers:   make(map[domain.ServerAddress]domain.ServerInfo, len(servers)),
	}

	for _, addr := range slices.SortedFunc(maps.Keys(servers), domain.CompareServerAddress) {
		info := servers[addr]
		info.Address = addr

		players := make([]domain.Player, len(info.Players))
		for i, p := range info.Players {
			p.Address = addr
			players[i] = p
		}
		info.Players = players

		snap.Servers[addr] = info
		snap.Players = append(snap.Players, players...)
	}

	return snap
}

func (s *Snapshot) Server(addr domain.ServerAddress) (domain.ServerInfo, bool) {
	info, ok := s.Servers[addr]
	return info, ok
}

// ServerList returns the servers ordered by player count, most populated first.
func (s *Snapshot) ServerList() []domain.ServerInfo {
	list := slices.Collect(maps.Values(s.Servers))
	slices.SortFunc(list, compareByPopulation)
	return list
}

func compareByPopulation(a, b domain.ServerInfo) int {
	if len(a.Players) != len(b.Players) {
		return len(b.Players) - len(a.Players)
	}
	return domain.CompareServerAddress(a.Address, b.Address)
}
