package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/ucenter-gateway/internal/common"
	"github.com/dmitrijs2005/ucenter-gateway/internal/dbx"
	"github.com/dmitrijs2005/ucenter-gateway/internal/models"
)

const selectColumns = `uid, username, password, email, COALESCE(regip, ''), regdate,
		 COALESCE(phone, ''), COALESCE(wechat_openid, ''), COALESCE(wechat_unionid, ''),
		 COALESCE(qq_union_id, ''), COALESCE(weibo_openid, ''), COALESCE(nickname, ''),
		 COALESCE(avatar, ''), COALESCE(douyin_openid, ''), is_member`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (username, password, email, regip)
		 VALUES ($1, $2, $3, $4)
		 RETURNING uid, regdate`

	var regip any
	if account.RegIP != "" {
		regip = account.RegIP
	}

	err := r.db.QueryRowContext(ctx, query,
		account.Username, account.PasswordHash, account.Email, regip).Scan(&account.UID, &account.RegDate)
	if err != nil {
		if constraint, ok := dbx.UniqueViolation(err); ok {
			switch constraint {
			case "uk_username":
				return nil, ErrUsernameTaken
			case "uk_email":
				return nil, ErrEmailTaken
			}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

func (r *PostgresRepository) GetByUID(ctx context.Context, uid int64) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM accounts WHERE uid = $1`, uid)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM accounts WHERE username = $1`, username)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM accounts WHERE email = $1`, email)
}

// GetByProfileField looks the account up by an extended column. field must be
// one of models.ProfileFields; it is interpolated only after that check.
func (r *PostgresRepository) GetByProfileField(ctx context.Context, field, value string) (*models.Account, error) {
	if !models.IsProfileField(field) {
		return nil, ErrUnknownField
	}
	query := `SELECT ` + selectColumns + ` FROM accounts WHERE ` + field + ` = $1 ORDER BY uid LIMIT 1`
	return r.getOne(ctx, query, value)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	a := &models.Account{}
	p := &a.Profile
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.UID, &a.Username, &a.PasswordHash, &a.Email, &a.RegIP, &a.RegDate,
		&p.Phone, &p.WechatOpenID, &p.WechatUnionID, &p.QQUnionID, &p.WeiboOpenID,
		&p.Nickname, &p.Avatar, &p.DouyinOpenID, &p.IsMember,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// Update applies changes to the account uid. Columns are written in a fixed
// order: email, password, then models.ProfileFields order.
func (r *PostgresRepository) Update(ctx context.Context, uid int64, changes models.AccountChanges) error {
	if changes.Empty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if changes.Email != nil {
		add("email", *changes.Email)
	}
	if changes.PasswordHash != nil {
		add("password", *changes.PasswordHash)
	}
	for name := range changes.Fields {
		if !models.IsProfileField(name) {
			return fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
	}
	for _, name := range models.ProfileFields {
		value, ok := changes.Fields[name]
		if !ok {
			continue
		}
		if s, isString := value.(string); isString && s == "" {
			value = nil
			if name == "is_member" {
				value = 0
			}
		}
		add(name, value)
	}

	args = append(args, uid)
	query := fmt.Sprintf("UPDATE accounts SET %s WHERE uid = $%d", strings.Join(sets, ", "), len(args))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if constraint, ok := dbx.UniqueViolation(err); ok && constraint == "uk_email" {
			return ErrEmailTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
