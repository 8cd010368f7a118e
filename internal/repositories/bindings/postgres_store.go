package bindings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ucenter-gateway/internal/common"
	"github.com/dmitrijs2005/ucenter-gateway/internal/credentials"
	"github.com/dmitrijs2005/ucenter-gateway/internal/dbx"
)

// liveIdentifierIndex is the partial unique index over live (type, identifier).
const liveIdentifierIndex = "uk_bindings_live_identifier"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(ctx context.Context, uid int64, t credentials.Type, identifier string) error {
	if err := validate(uid, t); err != nil {
		return err
	}
	if err := validateIdentifier(t, identifier); err != nil {
		return err
	}

	evict :=
		`UPDATE bindings SET deleted_at = now(), updated_at = now()
		 WHERE type = $1 AND identifier = $2 AND uid <> $3 AND deleted_at IS NULL`

	upsert :=
		`INSERT INTO bindings (uid, type, identifier)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (uid, type) DO UPDATE
		 SET identifier = EXCLUDED.identifier, deleted_at = NULL, updated_at = now()`

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, evict, string(t), identifier, uid); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, upsert, uid, string(t), identifier)
		return err
	})
	if err != nil {
		if constraint, ok := dbx.UniqueViolation(err); ok && constraint == liveIdentifierIndex {
			return common.ErrBindingConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, uid int64, t credentials.Type) error {
	if err := validate(uid, t); err != nil {
		return err
	}

	query :=
		`UPDATE bindings SET deleted_at = now(), updated_at = now()
		 WHERE uid = $1 AND type = $2 AND deleted_at IS NULL`

	if _, err := s.db.ExecContext(ctx, query, uid, string(t)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByUID(ctx context.Context, uid int64) (map[credentials.Type]string, error) {
	query :=
		`SELECT type, identifier FROM bindings
		 WHERE uid = $1 AND deleted_at IS NULL`

	rows, err := s.db.QueryContext(ctx, query, uid)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := emptyMapping()
	for rows.Next() {
		var typ, identifier string
		if err := rows.Scan(&typ, &identifier); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if t := credentials.Type(typ); t.Valid() {
			out[t] = identifier
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindUID(ctx context.Context, t credentials.Type, identifier string) (int64, error) {
	if err := validateIdentifier(t, identifier); err != nil {
		return 0, err
	}

	query :=
		`SELECT uid FROM bindings
		 WHERE type = $1 AND identifier = $2 AND deleted_at IS NULL
		 LIMIT 1`

	var uid int64
	if err := s.db.QueryRowContext(ctx, query, string(t), identifier).Scan(&uid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return uid, nil
}
