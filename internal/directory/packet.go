package directory

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/domain"
)

// Teeworlds 0.6 connless packets: 6 bytes of 0xff transport header followed
// by a 4 byte 0xff prefix and a 4 byte message type.
const (
	headerSize   = 10
	typeSize     = 4
	listEntrySz  = 18
	maxPacketLen = 1400
	maxClients   = 64
)

var (
	header = bytes.Repeat([]byte{0xff}, headerSize)

	typeGetList = []byte("req2")
	typeList    = []byte("lis2")
	typeGetInfo = []byte("gie3")
	typeInfo    = []byte("inf3")

	ipv4Prefix = []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff}
)

var (
	errShortPacket   = errors.New("directory: packet too short")
	errUnexpectedMsg = errors.New("directory: unexpected message type")
	errTokenMismatch = errors.New("directory: token mismatch")
	errClientCount   = errors.New("directory: implausible client count")
)

func buildGetListPacket() []byte {
	pkt := make([]byte, 0, headerSize+typeSize)
	pkt = append(pkt, header...)
	return append(pkt, typeGetList...)
}

func buildGetInfoPacket(token byte) []byte {
	pkt := make([]byte, 0, headerSize+typeSize+1)
	pkt = append(pkt, header...)
	pkt = append(pkt, typeGetInfo...)
	return append(pkt, token)
}

func payloadOf(data []byte, msgType []byte) ([]byte, error) {
	if len(data) < headerSize+typeSize {
		return nil, errShortPacket
	}
	if !bytes.Equal(data[headerSize:headerSize+typeSize], msgType) {
		return nil, errUnexpectedMsg
	}
	return data[headerSize+typeSize:], nil
}

// decodeServerList parses a lis2 packet. Each entry is a 16 byte address
// (IPv4 addresses are IPv4-mapped) followed by a big endian port.
func decodeServerList(data []byte) ([]domain.ServerAddress, error) {
	payload, err := payloadOf(data, typeList)
	if err != nil {
		return nil, err
	}

	addrs := make([]domain.ServerAddress, 0, len(payload)/listEntrySz)
	for i := 0; i+listEntrySz <= len(payload); i += listEntrySz {
		entry := payload[i : i+listEntrySz]

		var raw [16]byte
		copy(raw[:], entry[:16])
		ip := netip.AddrFrom16(raw)
		if bytes.Equal(entry[:12], ipv4Prefix) {
			ip = ip.Unmap()
		}
		port := binary.BigEndian.Uint16(entry[16:18])

		if port == 0 || ip.IsUnspecified() || ip.IsLoopback() || ip.IsMulticast() {
			continue
		}
		addrs = append(addrs, domain.ServerAddress{Host: ip.String(), Port: port})
	}
	return addrs, nil
}

type unpacker struct {
	data []byte
	err  error
}

func (u *unpacker) str() string {
	if u.err != nil {
		return ""
	}
	idx := bytes.IndexByte(u.data, 0)
	if idx < 0 {
		u.err = errShortPacket
		return ""
	}
	s := string(u.data[:idx])
	u.data = u.data[idx+1:]
	return s
}

func (u *unpacker) int() int {
	s := u.str()
	if u.err != nil {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// decodeServerInfo parses an inf3 response and verifies the echoed token.
func decodeServerInfo(data []byte, token byte) (domain.ServerInfo, error) {
	payload, err := payloadOf(data, typeInfo)
	if err != nil {
		return domain.ServerInfo{}, err
	}

	u := &unpacker{data: payload}
	if got := u.int(); u.err == nil && got != int(token) {
		return domain.ServerInfo{}, errTokenMismatch
	}

	info := domain.ServerInfo{
		Version:  u.str(),
		Name:     u.str(),
		Map:      u.str(),
		Gametype: u.str(),
	}
	_ = u.int() // flags
	info.PlayerCount = u.int()
	info.MaxPlayers = u.int()
	numClients := u.int()
	_ = u.int() // max clients
	if u.err != nil {
		return domain.ServerInfo{}, fmt.Errorf("decode server info: %w", u.err)
	}

	if numClients < 0 || numClients > maxClients {
		return domain.ServerInfo{}, fmt.Errorf("%w: %d", errClientCount, numClients)
	}

	info.Players = make([]domain.Player, 0, numClients)
	for i := 0; i < numClients; i++ {
		p := domain.Player{
			Name:    u.str(),
			Clan:    u.str(),
			Country: u.int(),
			Score:   u.int(),
			Type:    domain.PlayerType(u.int()),
		}
		if u.err != nil {
			// truncated client list, keep what was complete
			break
		}
		info.Players = append(info.Players, p)
	}
	return info, nil
}
