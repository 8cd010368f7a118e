package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/ucenter-gateway/internal/dbx"
	"github.com/dmitrijs2005/ucenter-gateway/internal/repositories/accounts"
	"github.com/dmitrijs2005/ucenter-gateway/internal/repositories/bindings"
)

// RepositoryManager vends the repositories of one storage backend and owns
// its schema migrations.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Bindings(db *sql.DB) bindings.Store
}
