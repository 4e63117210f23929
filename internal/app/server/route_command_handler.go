package server

import (
	"net/http"
	"strings"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/commands"
)

type commandResponse struct {
	Replies []string `json:"replies"`
}

func (s *Server) runCommand(w http.ResponseWriter, r *http.Request) {
	var msg commands.Message
	if err := decodeJSON(w, r, &msg); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(msg.Text, "!") {
		writeError(w, "text must start with a command", http.StatusBadRequest)
		return
	}

	replies := s.commands.Handle(r.Context(), msg)
	if replies == nil {
		replies = []string{}
	}
	writeJSON(w, http.StatusOK, commandResponse{Replies: replies})
}
