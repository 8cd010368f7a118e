package identity

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway"
	"github.com/dmitrijs2005/ucenter-gateway/internal/ucapi"
)

// Kind classifies a login outcome.
type Kind string

const (
	KindSuccess       Kind = "success"
	KindNotFound      Kind = "not_found"
	KindWrongPassword Kind = "wrong_password"
	KindWrongAnswer   Kind = "wrong_answer"
	// KindConflict is an identifier login that found an account under the
	// derived username whose password no longer matches.
	KindConflict Kind = "conflict"
	KindRejected Kind = "rejected"
)

// Login status codes reported by the authority.
const (
	StatusNotFound      = -1
	StatusWrongPassword = -2
	StatusWrongAnswer   = -3
)

// Outcome is the result of a login attempt. Negative statuses are ordinary
// outcomes, not errors; Status and Response keep what the authority said.
type Outcome struct {
	Kind        Kind           `json:"kind"`
	Status      int64          `json:"status"`
	UID         int64          `json:"uid,omitempty"`
	Username    string         `json:"username,omitempty"`
	Email       string         `json:"email,omitempty"`
	AccessToken string         `json:"access_token,omitempty"`
	Response    gateway.Result `json:"response,omitempty"`
}

func (o *Outcome) Success() bool { return o.Kind == KindSuccess }

func kindOf(status int64) Kind {
	switch {
	case status > 0:
		return KindSuccess
	case status == StatusNotFound:
		return KindNotFound
	case status == StatusWrongPassword:
		return KindWrongPassword
	case status == StatusWrongAnswer:
		return KindWrongAnswer
	default:
		return KindRejected
	}
}

func outcomeOf(lr *ucapi.LoginResult) *Outcome {
	return &Outcome{
		Kind:     kindOf(lr.Status),
		Status:   lr.Status,
		UID:      lr.UID,
		Username: lr.Username,
		Email:    lr.Email,
		Response: lr.Response,
	}
}

var (
	// ErrUnsupportedIdentifier is returned for identifier types outside
	// credentials.Types.
	ErrUnsupportedIdentifier = errors.New("unsupported identifier type")
	// ErrNoBindingStore is returned by binding helpers when no store is set.
	ErrNoBindingStore = errors.New("binding store not configured")
)

// RegistrationError reports that auto-registration was refused. Code is the
// authority's non-positive register result.
type RegistrationError struct {
	Code     int64
	Response gateway.Result
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("auto-registration rejected with code %d", e.Code)
}
