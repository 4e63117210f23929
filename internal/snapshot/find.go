package snapshot

import (
	"slices"
	"strings"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/domain"
)

// Levenshtein returns the edit distance between a and b with unit costs.
func Levenshtein(a, b string) int {
	s, t := []rune(a), []rune(b)
	prev := make([]int, len(t)+1)
	curr := make([]int, len(t)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s); i++ {
		curr[0] = i
		for j := 1; j <= len(t); j++ {
			cost := 1
			if s[i-1] == t[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(t)]
}

// FindPlayer ranks players by case-insensitive edit distance to query and
// returns the closest one whose name contains query.
func FindPlayer(query string, players []domain.Player) (domain.Player, bool) {
	q := strings.ToLower(query)

	type ranked struct {
		player   domain.Player
		name     string
		distance int
	}
	candidates := make([]ranked, 0, len(players))
	for _, p := range players {
		name := strings.ToLower(p.Name)
		candidates = append(candidates, ranked{player: p, name: name, distance: Levenshtein(q, name)})
	}

	slices.SortStableFunc(candidates, func(a, b ranked) int {
		return a.distance - b.distance
	})

	for _, c := range candidates {
		if strings.Contains(c.name, q) {
			return c.player, true
		}
	}
	return domain.Player{}, false
}

// OnlineServers returns populated servers whose gametype contains gametype,
// most populated first.
func OnlineServers(gametype string, snap *Snapshot) []domain.ServerInfo {
	needle := strings.ToLower(gametype)

	var servers []domain.ServerInfo
	for _, info := range snap.Servers {
		if len(info.Players) == 0 {
			continue
		}
		if !strings.Contains(strings.ToLower(info.Gametype), needle) {
			continue
		}
		servers = append(servers, info)
	}

	slices.SortFunc(servers, compareByPopulation)
	return servers
}

// Gametypes lists the distinct gametypes of a snapshot in sorted order.
func Gametypes(snap *Snapshot) []string {
	seen := make(map[string]struct{}, len(snap.Servers))
	for _, info := range snap.Servers {
		seen[info.Gametype] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for gt := range seen {
		out = append(out, gt)
	}
	slices.Sort(out)
	return out
}
