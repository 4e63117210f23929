package directory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"testing"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/domain"
)

func encodeServerList(addrs []domain.ServerAddress) ([]byte, error) {
	pkt := make([]byte, 0, headerSize+typeSize+len(addrs)*listEntrySz)
	pkt = append(pkt, header...)
	pkt = append(pkt, typeList...)
	for _, addr := range addrs {
		ip, err := netip.ParseAddr(addr.Host)
		if err != nil {
			return nil, fmt.Errorf("encode server list: %w", err)
		}
		raw := ip.As16()
		pkt = append(pkt, raw[:]...)
		pkt = binary.BigEndian.AppendUint16(pkt, addr.Port)
	}
	return pkt, nil
}

func encodeServerInfo(token byte, info domain.ServerInfo) []byte {
	pkt := make([]byte, 0, 256)
	pkt = append(pkt, header...)
	pkt = append(pkt, typeInfo...)

	put := func(s string) {
		pkt = append(pkt, s...)
		pkt = append(pkt, 0)
	}
	put(strconv.Itoa(int(token)))
	put(info.Version)
	put(info.Name)
	put(info.Map)
	put(info.Gametype)
	put("0")
	put(strconv.Itoa(info.PlayerCount))
	put(strconv.Itoa(info.MaxPlayers))
	put(strconv.Itoa(len(info.Players)))
	put(strconv.Itoa(info.MaxPlayers))
	for _, p := range info.Players {
		put(p.Name)
		put(p.Clan)
		put(strconv.Itoa(p.Country))
		put(strconv.Itoa(p.Score))
		put(strconv.Itoa(int(p.Type)))
	}
	return pkt
}

func TestBuildPackets(t *testing.T) {
	list := buildGetListPacket()
	if len(list) != headerSize+typeSize {
		t.Fatalf("getlist length = %d, want %d", len(list), headerSize+typeSize)
	}
	for i := 0; i < headerSize; i++ {
		if list[i] != 0xff {
			t.Fatalf("getlist byte %d = %#x, want 0xff", i, list[i])
		}
	}
	if string(list[headerSize:]) != "req2" {
		t.Fatalf("getlist type = %q, want req2", list[headerSize:])
	}

	info := buildGetInfoPacket(42)
	if string(info[headerSize:headerSize+typeSize]) != "gie3" {
		t.Fatalf("getinfo type = %q, want gie3", info[headerSize:headerSize+typeSize])
	}
	if info[len(info)-1] != 42 {
		t.Fatalf("getinfo token = %d, want 42", info[len(info)-1])
	}
}

func TestDecodeServerList(t *testing.T) {
	want := []domain.ServerAddress{
		{Host: "1.2.3.4", Port: 8303},
		{Host: "2a01:4f8::1", Port: 8305},
	}
	pkt, err := encodeServerList(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := decodeServerList(pkt)
	if err != nil {
		t.Fatalf("decodeServerList: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("decoded %d addresses, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("address %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDecodeServerListSkipsUnusableEntries(t *testing.T) {
	pkt, err := encodeServerList([]domain.ServerAddress{
		{Host: "0.0.0.0", Port: 8303},
		{Host: "127.0.0.1", Port: 8303},
		{Host: "5.6.7.8", Port: 0},
		{Host: "5.6.7.8", Port: 8303},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := decodeServerList(pkt)
	if err != nil {
		t.Fatalf("decodeServerList: %v", err)
	}
	if len(got) != 1 || got[0].Host != "5.6.7.8" {
		t.Fatalf("decoded %v, want only 5.6.7.8", got)
	}
}

func TestDecodeServerListRejectsOtherMessages(t *testing.T) {
	if _, err := decodeServerList(buildGetListPacket()); !errors.Is(err, errUnexpectedMsg) {
		t.Fatalf("err = %v, want errUnexpectedMsg", err)
	}
	if _, err := decodeServerList([]byte{0xff, 0xff}); !errors.Is(err, errShortPacket) {
		t.Fatalf("err = %v, want errShortPacket", err)
	}
}

func TestDecodeServerInfo(t *testing.T) {
	want := domain.ServerInfo{
		Version:     "0.6.4",
		Name:        "My Server",
		Map:         "ctf5",
		Gametype:    "CTF",
		PlayerCount: 2,
		MaxPlayers:  16,
		Players: []domain.Player{
			{Name: "Steve", Clan: "Crew", Country: 276, Score: 12, Type: domain.PlayerTypeHuman},
			{Name: "nameless tee", Clan: "", Country: -1, Score: 0, Type: domain.PlayerTypeBot},
		},
	}

	got, err := decodeServerInfo(encodeServerInfo(7, want), 7)
	if err != nil {
		t.Fatalf("decodeServerInfo: %v", err)
	}
	if got.Name != want.Name || got.Map != want.Map || got.Gametype != want.Gametype || got.Version != want.Version {
		t.Fatalf("decoded %+v, want %+v", got, want)
	}
	if got.PlayerCount != 2 || got.MaxPlayers != 16 {
		t.Fatalf("counts = %d/%d, want 2/16", got.PlayerCount, got.MaxPlayers)
	}
	if len(got.Players) != 2 {
		t.Fatalf("players = %d, want 2", len(got.Players))
	}
	if got.Players[0] != want.Players[0] {
		t.Fatalf("player 0 = %+v, want %+v", got.Players[0], want.Players[0])
	}
	if !got.Players[1].IsBot() {
		t.Fatal("second player should be a bot")
	}
}

func TestDecodeServerInfoTokenMismatch(t *testing.T) {
	pkt := encodeServerInfo(1, domain.ServerInfo{Name: "x"})
	if _, err := decodeServerInfo(pkt, 2); !errors.Is(err, errTokenMismatch) {
		t.Fatalf("err = %v, want errTokenMismatch", err)
	}
}

func TestDecodeServerInfoTruncatedClients(t *testing.T) {
	info := domain.ServerInfo{
		Name:    "srv",
		Players: []domain.Player{{Name: "a"}, {Name: "b"}},
	}
	pkt := encodeServerInfo(3, info)
	// cut into the last client record
	pkt = pkt[:len(pkt)-4]

	got, err := decodeServerInfo(pkt, 3)
	if err != nil {
		t.Fatalf("decodeServerInfo: %v", err)
	}
	if len(got.Players) != 1 || got.Players[0].Name != "a" {
		t.Fatalf("players = %+v, want only the complete first client", got.Players)
	}
}

func TestDecodeServerInfoRejectsClientCount(t *testing.T) {
	for _, count := range []string{"-1", "65", "1000000000000"} {
		pkt := append([]byte(nil), header...)
		pkt = append(pkt, typeInfo...)
		for _, field := range []string{"5", "0.6.4", "srv", "dm1", "DM", "0", "1", "16", count, "16"} {
			pkt = append(pkt, field...)
			pkt = append(pkt, 0)
		}

		if _, err := decodeServerInfo(pkt, 5); !errors.Is(err, errClientCount) {
			t.Fatalf("num_clients %s: err = %v, want errClientCount", count, err)
		}
	}
}
