package httpapi

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/ucenter-gateway/internal/credentials"
	"github.com/dmitrijs2005/ucenter-gateway/internal/identity"
	"github.com/dmitrijs2005/ucenter-gateway/internal/session"
	"github.com/dmitrijs2005/ucenter-gateway/internal/ucapi"
)

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	ByUID      int    `json:"by_uid"`
	QuestionID int    `json:"question_id"`
	Answer     string `json:"answer"`
}

type identifierRequest struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type registerRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Email      string `json:"email"`
	RegIP      string `json:"regip"`
	QuestionID int    `json:"question_id"`
	Answer     string `json:"answer"`
}

type bindingRequest struct {
	Identifier string `json:"identifier"`
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "username is required")
		return
	}

	out, err := h.resolver.Login(r.Context(), req.Username, req.Password, identity.LoginOptions{
		ByUID:      req.ByUID,
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
	})
	if err != nil {
		h.log.Error(r.Context(), "login failed", "error", err)
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) loginIdentifier(w http.ResponseWriter, r *http.Request) {
	var req identifierRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	t, err := credentials.ParseType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	out, err := h.resolver.LoginWithIdentifier(r.Context(), t, req.Identifier)
	if err != nil {
		h.log.Error(r.Context(), "identifier login failed", "type", string(t), "error", err)
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if req.RegIP == "" {
		req.RegIP = clientIP(r)
	}

	code, _, err := h.resolver.Register(r.Context(), ucapi.RegisterInput{
		Username:   req.Username,
		Password:   req.Password,
		Email:      req.Email,
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
		RegIP:      req.RegIP,
	})
	if err != nil {
		h.log.Error(r.Context(), "register failed", "error", err)
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]int64{"ret": code})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	claims, _ := session.ClaimsFromContext(r.Context())
	writeSuccess(w, http.StatusOK, claims)
}

func (h *Handler) listBindings(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.ownerUID(w, r)
	if !ok {
		return
	}
	m, err := h.resolver.Bindings(r.Context(), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, m)
}

func (h *Handler) putBinding(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.ownerUID(w, r)
	if !ok {
		return
	}
	var req bindingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	t := credentials.Type(chi.URLParam(r, "type"))
	if err := h.resolver.Bind(r.Context(), uid, t, req.Identifier); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteBinding(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.ownerUID(w, r)
	if !ok {
		return
	}
	t := credentials.Type(chi.URLParam(r, "type"))
	if err := h.resolver.Unbind(r.Context(), uid, t); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownerUID parses the {uid} path parameter and requires it to match the
// session subject.
func (h *Handler) ownerUID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	uid, err := strconv.ParseInt(chi.URLParam(r, "uid"), 10, 64)
	if err != nil || uid <= 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "uid must be a positive integer")
		return 0, false
	}
	claims, ok := session.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session")
		return 0, false
	}
	if sub, err := claims.UID(); err != nil || sub != uid {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "session does not own this account")
		return 0, false
	}
	return uid, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
