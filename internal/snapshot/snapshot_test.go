package snapshot

import (
	"sync"
	"testing"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/domain"
)

var (
	addrA = domain.ServerAddress{Host: "1.1.1.1", Port: 8303}
	addrB = domain.ServerAddress{Host: "2.2.2.2", Port: 8303}
	addrC = domain.ServerAddress{Host: "2.2.2.2", Port: 8304}
)

func testServers() map[domain.ServerAddress]domain.ServerInfo {
	return map[domain.ServerAddress]domain.ServerInfo{
		addrC: {Name: "C", Gametype: "DM", Players: []domain.Player{{Name: "Kevin"}}},
		addrA: {Name: "A", Gametype: "CTF", Players: []domain.Player{{Name: "Steve"}, {Name: "Eve"}}},
		addrB: {Name: "B", Gametype: "DDraceNetwork"},
	}
}

func TestBuildAttachesOwningAddress(t *testing.T) {
	snap := Build(testServers())

	if len(snap.Servers) != 3 {
		t.Fatalf("servers = %d, want 3", len(snap.Servers))
	}
	if len(snap.Players) != 3 {
		t.Fatalf("players = %d, want 3", len(snap.Players))
	}
	for _, p := range snap.Players {
		info, ok := snap.Server(p.Address)
		if !ok {
			t.Fatalf("player %q references unknown server %v", p.Name, p.Address)
		}
		found := false
		for _, sp := range info.Players {
			if sp.Name == p.Name && sp.Address == p.Address {
				found = true
			}
		}
		if !found {
			t.Fatalf("player %q is not listed on its server", p.Name)
		}
	}

	// address order: A (1.1.1.1) before C (2.2.2.2:8304)
	if snap.Players[0].Name != "Steve" || snap.Players[2].Name != "Kevin" {
		t.Fatalf("players not in address order: %+v", snap.Players)
	}
}

func TestBuildDoesNotAliasInput(t *testing.T) {
	servers := testServers()
	snap := Build(servers)

	servers[addrA].Players[0].Name = "changed"
	if snap.Players[0].Name != "Steve" {
		t.Fatal("snapshot shares player storage with its input")
	}
}

func TestServerList(t *testing.T) {
	list := Build(testServers()).ServerList()
	if len(list) != 3 {
		t.Fatalf("list = %d, want 3", len(list))
	}
	if list[0].Name != "A" || list[1].Name != "C" || list[2].Name != "B" {
		t.Fatalf("unexpected order: %s %s %s", list[0].Name, list[1].Name, list[2].Name)
	}
}

func TestStorePublishAndRead(t *testing.T) {
	store := NewStore()

	if snap := store.Read(); snap == nil || len(snap.Servers) != 0 {
		t.Fatal("new store should hold an empty snapshot")
	}

	first := Build(testServers())
	store.Publish(first)
	if store.Read() != first {
		t.Fatal("Read did not return the published snapshot")
	}
	if first.Generation != 1 {
		t.Fatalf("generation = %d, want 1", first.Generation)
	}

	store.Publish(nil)
	if store.Read() != first {
		t.Fatal("publishing nil replaced the snapshot")
	}

	second := Build(nil)
	store.Publish(second)
	if second.Generation != 2 {
		t.Fatalf("generation = %d, want 2", second.Generation)
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Publish(Build(testServers()))
		}()
		go func() {
			defer wg.Done()
			snap := store.Read()
			for _, p := range snap.Players {
				if _, ok := snap.Servers[p.Address]; !ok {
					t.Errorf("inconsistent snapshot: %v missing", p.Address)
				}
			}
		}()
	}
	wg.Wait()
}
