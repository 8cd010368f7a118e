// Package accounts persists the accounts of the local storage engine.
package accounts

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/ucenter-gateway/internal/models"
)

var (
	ErrUsernameTaken = errors.New("username already exists")
	ErrEmailTaken    = errors.New("email already exists")
	ErrUnknownField  = errors.New("unknown profile field")
)

// Repository is the account store used by the local gateway. Lookups return
// common.ErrorNotFound when no row matches.
type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByUID(ctx context.Context, uid int64) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByProfileField(ctx context.Context, field, value string) (*models.Account, error)
	Update(ctx context.Context, uid int64, changes models.AccountChanges) error
}
