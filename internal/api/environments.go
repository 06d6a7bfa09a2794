package api

import "net/http"

func (s *Server) handleListEnvironments(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Environments())
}
