package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/domain"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/snapshot"
)

type serverListResponse struct {
	Generation uint64              `json:"generation"`
	CreatedAt  time.Time           `json:"created_at"`
	Servers    []domain.ServerInfo `json:"servers"`
}

type playerMatchResponse struct {
	Player domain.Player     `json:"player"`
	Server domain.ServerInfo `json:"server"`
}

func (s *Server) getServers(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Read()
	writeJSON(w, http.StatusOK, serverListResponse{
		Generation: snap.Generation,
		CreatedAt:  snap.CreatedAt,
		Servers:    snap.ServerList(),
	})
}

func (s *Server) getOnlineServers(w http.ResponseWriter, r *http.Request) {
	gametype := strings.TrimSpace(r.URL.Query().Get("gametype"))
	if gametype == "" {
		writeError(w, "gametype is required", http.StatusBadRequest)
		return
	}

	snap := s.store.Read()
	servers := snapshot.OnlineServers(gametype, snap)
	if servers == nil {
		servers = []domain.ServerInfo{}
	}
	writeJSON(w, http.StatusOK, serverListResponse{
		Generation: snap.Generation,
		CreatedAt:  snap.CreatedAt,
		Servers:    servers,
	})
}

func (s *Server) getGametypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, snapshot.Gametypes(s.store.Read()))
}

func (s *Server) getPlayers(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Read()
	players := snap.Players
	if players == nil {
		players = []domain.Player{}
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *Server) findPlayer(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}

	snap := s.store.Read()
	player, ok := snapshot.FindPlayer(name, snap.Players)
	if !ok {
		writeError(w, "no such player found", http.StatusNotFound)
		return
	}

	server, _ := snap.Server(player.Address)
	writeJSON(w, http.StatusOK, playerMatchResponse{Player: player, Server: server})
}
