package server

import (
	"net/http"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/commands"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/vpn"
)

type checkIPsRequest struct {
	IPs []string `json:"ips"`
}

type checkIPsResponse struct {
	Results []vpn.Result `json:"results"`
}

func (s *Server) checkIP(w http.ResponseWriter, r *http.Request) {
	res := s.classifier.Classify(r.Context(), r.PathValue("ip"))
	writeJSON(w, statusFor(res.Outcome), res)
}

func (s *Server) checkIPs(w http.ResponseWriter, r *http.Request) {
	var req checkIPsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.IPs) == 0 {
		writeError(w, commands.InvalidIPsText, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, checkIPsResponse{Results: s.classifier.ClassifyBatch(r.Context(), req.IPs)})
}

func statusFor(outcome vpn.Outcome) int {
	switch outcome {
	case vpn.OutcomeInvalid:
		return http.StatusBadRequest
	case vpn.OutcomeReserved:
		return http.StatusUnprocessableEntity
	case vpn.OutcomeNoData:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}
