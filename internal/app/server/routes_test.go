package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/commands"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/domain"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/snapshot"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/vpn"
)

type staticProvider struct{ vpnIPs map[string]bool }

func (p staticProvider) Name() string { return "static" }

func (p staticProvider) Classify(_ context.Context, ip netip.Addr) (bool, error) {
	return p.vpnIPs[ip.String()], nil
}

func (p staticProvider) RemainingCooldown() time.Duration { return 0 }

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	store := snapshot.NewStore()
	store.Publish(snapshot.Build(map[domain.ServerAddress]domain.ServerInfo{
		{Host: "1.2.3.4", Port: 8303}: {
			Name:        "Vanilla CTF",
			Gametype:    "CTF",
			PlayerCount: 1,
			Players:     []domain.Player{{Name: "Eve", Type: domain.PlayerTypeHuman}},
		},
		{Host: "1.2.3.5", Port: 8303}: {Name: "Empty DM", Gametype: "DM"},
	}))

	chain := vpn.NewChain(vpn.NewCache(nil), []vpn.Provider{staticProvider{vpnIPs: map[string]bool{"8.8.8.8": true}}})
	return New(store, chain, commands.NewHandler(store, chain)).Routes()
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServersRoutes(t *testing.T) {
	h := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/servers", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /servers status = %d", rec.Code)
	}
	var list serverListResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode servers: %v", err)
	}
	if list.Generation != 1 || len(list.Servers) != 2 || list.Servers[0].Name != "Vanilla CTF" {
		t.Fatalf("servers = %+v", list)
	}

	rec = doRequest(t, h, http.MethodGet, "/servers/online?gametype=ctf", "")
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode online: %v", err)
	}
	if len(list.Servers) != 1 {
		t.Fatalf("online servers = %d, want 1", len(list.Servers))
	}

	if rec := doRequest(t, h, http.MethodGet, "/servers/online", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing gametype status = %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/gametypes", "")
	if got := strings.TrimSpace(rec.Body.String()); got != `["CTF","DM"]` {
		t.Fatalf("gametypes = %s", got)
	}
}

func TestFindPlayerRoute(t *testing.T) {
	h := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/players/find?name=eve", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var match playerMatchResponse
	if err := json.NewDecoder(rec.Body).Decode(&match); err != nil {
		t.Fatalf("decode match: %v", err)
	}
	if match.Player.Name != "Eve" || match.Server.Name != "Vanilla CTF" {
		t.Fatalf("match = %+v", match)
	}

	if rec := doRequest(t, h, http.MethodGet, "/players/find?name=nobody", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown player status = %d", rec.Code)
	}
}

func TestVPNRoutes(t *testing.T) {
	h := newTestServer(t)

	tests := []struct {
		ip      string
		status  int
		outcome string
	}{
		{"8.8.8.8", http.StatusOK, "vpn"},
		{"1.1.1.1", http.StatusOK, "clean"},
		{"10.0.0.5", http.StatusUnprocessableEntity, "reserved"},
		{"nope", http.StatusBadRequest, "invalid"},
	}
	for _, tc := range tests {
		rec := doRequest(t, h, http.MethodGet, "/vpn/"+tc.ip, "")
		if rec.Code != tc.status {
			t.Fatalf("GET /vpn/%s status = %d, want %d", tc.ip, rec.Code, tc.status)
		}
		var res struct {
			Outcome string `json:"outcome"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		if res.Outcome != tc.outcome {
			t.Fatalf("GET /vpn/%s outcome = %q, want %q", tc.ip, res.Outcome, tc.outcome)
		}
	}

	rec := doRequest(t, h, http.MethodPost, "/vpn", `{"ips":["8.8.8.8","1.1.1.1"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /vpn status = %d", rec.Code)
	}
	var batch struct {
		Results []struct {
			IP     string `json:"ip"`
			Cached bool   `json:"cached"`
		} `json:"results"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&batch); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if len(batch.Results) != 2 || !batch.Results[0].Cached {
		t.Fatalf("batch = %+v, want two cached results", batch.Results)
	}

	if rec := doRequest(t, h, http.MethodPost, "/vpn", `{"ips":[]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty batch status = %d", rec.Code)
	}
}

func TestCommandRoute(t *testing.T) {
	h := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/commands", `{"text":"!vpn 8.8.8.8","private":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp commandResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode replies: %v", err)
	}
	if len(resp.Replies) != 1 || resp.Replies[0] != "The IP '**8.8.8.8**' is a VPN" {
		t.Fatalf("replies = %q", resp.Replies)
	}

	if rec := doRequest(t, h, http.MethodPost, "/commands", `{"text":"hello"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-command status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := doRequest(t, newTestServer(t), http.MethodOptions, "/vpn", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestVersionRoute(t *testing.T) {
	rec := doRequest(t, newTestServer(t), http.MethodGet, "/version", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "buildVersion") {
		t.Fatalf("version = %d %s", rec.Code, rec.Body.String())
	}
}
