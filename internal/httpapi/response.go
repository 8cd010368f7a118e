package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/ucenter-gateway/internal/common"
	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway"
	"github.com/dmitrijs2005/ucenter-gateway/internal/identity"
)

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	// Detail carries the authority's response for gateway and
	// registration failures.
	Detail any `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{Status: "error", Code: code, Message: message})
}

// writeDomainError maps resolver and gateway failures onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		regErr  *identity.RegistrationError
		callErr *gateway.CallError
	)
	switch {
	case errors.As(err, &regErr):
		writeJSON(w, http.StatusUnprocessableEntity, apiError{
			Status: "error", Code: "REGISTRATION_REJECTED", Message: err.Error(),
			Detail: map[string]any{"code": regErr.Code, "response": regErr.Response},
		})
	case errors.Is(err, identity.ErrUnsupportedIdentifier), errors.Is(err, common.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, common.ErrBindingConflict):
		writeError(w, http.StatusConflict, "BINDING_CONFLICT", err.Error())
	case errors.Is(err, identity.ErrNoBindingStore):
		writeError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", err.Error())
	case errors.As(err, &callErr):
		writeJSON(w, http.StatusBadGateway, apiError{
			Status: "error", Code: "GATEWAY_ERROR", Message: err.Error(), Detail: callErr.Response,
		})
	case errors.Is(err, gateway.ErrTransport), errors.Is(err, gateway.ErrProtocolFormat),
		errors.Is(err, gateway.ErrHTTPStatus), errors.Is(err, gateway.ErrUnsupportedOperation):
		writeError(w, http.StatusBadGateway, "GATEWAY_ERROR", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}
