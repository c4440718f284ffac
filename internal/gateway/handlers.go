package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/hoot-im/hoot/internal/contacts"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogin exchanges the signed-in user's phone number for a bearer
// token. The daemon serves exactly one identity; any other number is
// rejected.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess := s.authn.Current()
	if sess == nil {
		writeError(w, http.StatusConflict, "daemon is signed out")
		return
	}
	if contacts.Normalize(req.Phone) != sess.UserID {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}

	token, err := s.tokens.Issue(sess)
	if err != nil {
		s.logger.Error("token issue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":        token,
		"user_id":      sess.UserID,
		"display_name": sess.DisplayName,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"state": string(s.machine.Current()),
	})
}

func (s *Server) handleResolveContact(w http.ResponseWriter, r *http.Request) {
	number := mux.Vars(r)["number"]
	writeJSON(w, http.StatusOK, map[string]string{
		"number": contacts.Normalize(number),
		"name":   s.dir.Resolve(number),
	})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Participant string `json:"participant"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess := s.authn.Current()
	if sess == nil {
		writeError(w, http.StatusConflict, "daemon is signed out")
		return
	}

	id, err := s.mutator.GetOrCreateConversation(r.Context(), sess.UserID, req.Participant)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"conversation_id": id})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.mutator.SendMessage(r.Context(), conversationID, req.Text); err != nil {
		s.logger.Warn("send failed", zap.String("conversation_id", conversationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "send failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conversationID := vars["id"]
	messageID := vars["messageId"]

	var req struct {
		Liked bool `json:"liked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.mutator.ToggleLike(r.Context(), conversationID, messageID, req.Liked); err != nil {
		s.logger.Warn("toggle like failed", zap.String("message_id", messageID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "toggle failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	var req struct {
		MessageIDs []string `json:"message_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	deleted, err := s.mutator.DeleteSelected(r.Context(), conversationID, req.MessageIDs)
	if err != nil {
		s.logger.Warn("delete failed", zap.String("conversation_id", conversationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}
