package domain

import (
	"cmp"
	"fmt"
	"net"
	"strconv"
)

// ServerAddress identifies a game server. It is comparable and used as a map key.
type ServerAddress struct {
	Host string `json:"host"`
	Port uint16 `json:"port"`
}

func (a ServerAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

func (a ServerAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// ParseServerAddress parses a "host:port" pair.
func ParseServerAddress(raw string) (ServerAddress, error) {
	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		return ServerAddress{}, fmt.Errorf("parse server address %q: %w", raw, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return ServerAddress{}, fmt.Errorf("parse server port %q: %w", raw, err)
	}
	return ServerAddress{Host: host, Port: uint16(port)}, nil
}

// CompareServerAddress orders addresses by host, then port.
func CompareServerAddress(a, b ServerAddress) int {
	if c := cmp.Compare(a.Host, b.Host); c != 0 {
		return c
	}
	return cmp.Compare(a.Port, b.Port)
}

type PlayerType int

const (
	PlayerTypeSpectator PlayerType = 0
	PlayerTypeHuman     PlayerType = 1
	PlayerTypeBot       PlayerType = 2
)

type Player struct {
	Name    string        `json:"name"`
	Clan    string        `json:"clan"`
	Country int           `json:"country"`
	Score   int           `json:"score"`
	Type    PlayerType    `json:"type"`
	Address ServerAddress `json:"address"`
}

func (p Player) IsBot() bool {
	return p.Type >= PlayerTypeBot
}

type ServerInfo struct {
	Address     ServerAddress `json:"address"`
	Name        string        `json:"name"`
	Map         string        `json:"map"`
	Gametype    string        `json:"gametype"`
	Version     string        `json:"version"`
	MaxPlayers  int           `json:"max_players"`
	PlayerCount int           `json:"player_count"`
	Players     []Player      `json:"players"`
}
