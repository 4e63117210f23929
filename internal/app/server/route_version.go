package server

import (
	"net/http"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/app/version"
)

func getVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}
