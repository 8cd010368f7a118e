package accounts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/ucenter-gateway/internal/common"
	"github.com/dmitrijs2005/ucenter-gateway/internal/models"
)

// MemoryRepository is an in-process Repository that enforces the same
// username and email uniqueness as the accounts table.
type MemoryRepository struct {
	mu      sync.Mutex
	nextUID int64
	byUID   map[int64]*models.Account
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextUID: 1, byUID: map[int64]*models.Account{}}
}

func (r *MemoryRepository) Create(_ context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.byUID {
		if a.Username == account.Username {
			return nil, ErrUsernameTaken
		}
		if a.Email == account.Email {
			return nil, ErrEmailTaken
		}
	}

	stored := *account
	stored.UID = r.nextUID
	stored.RegDate = time.Now()
	r.nextUID++
	r.byUID[stored.UID] = &stored

	account.UID = stored.UID
	account.RegDate = stored.RegDate
	return account, nil
}

func (r *MemoryRepository) GetByUID(_ context.Context, uid int64) (*models.Account, error) {
	return r.first(func(a *models.Account) bool { return a.UID == uid })
}

func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (*models.Account, error) {
	return r.first(func(a *models.Account) bool { return a.Username == username })
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	return r.first(func(a *models.Account) bool { return a.Email == email })
}

func (r *MemoryRepository) GetByProfileField(_ context.Context, field, value string) (*models.Account, error) {
	if !models.IsProfileField(field) {
		return nil, ErrUnknownField
	}
	return r.first(func(a *models.Account) bool {
		v, _ := a.Profile.Get(field)
		return v != "" && v == value
	})
}

func (r *MemoryRepository) Update(_ context.Context, uid int64, changes models.AccountChanges) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byUID[uid]
	if !ok {
		return common.ErrorNotFound
	}
	for name := range changes.Fields {
		if !models.IsProfileField(name) {
			return fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
	}
	if changes.Email != nil {
		for _, other := range r.byUID {
			if other.UID != uid && other.Email == *changes.Email {
				return ErrEmailTaken
			}
		}
		a.Email = *changes.Email
	}
	if changes.PasswordHash != nil {
		a.PasswordHash = *changes.PasswordHash
	}
	for name, value := range changes.Fields {
		setProfileField(&a.Profile, name, value)
	}
	return nil
}

// Len returns the number of stored accounts.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUID)
}

func (r *MemoryRepository) first(match func(*models.Account) bool) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found *models.Account
	for _, a := range r.byUID {
		if match(a) && (found == nil || a.UID < found.UID) {
			found = a
		}
	}
	if found == nil {
		return nil, common.ErrorNotFound
	}
	clone := *found
	return &clone, nil
}

func setProfileField(p *models.Profile, name string, value any) {
	s := fmt.Sprint(value)
	if value == nil {
		s = ""
	}
	switch name {
	case "phone":
		p.Phone = s
	case "wechat_openid":
		p.WechatOpenID = s
	case "wechat_unionid":
		p.WechatUnionID = s
	case "qq_union_id":
		p.QQUnionID = s
	case "weibo_openid":
		p.WeiboOpenID = s
	case "nickname":
		p.Nickname = s
	case "avatar":
		p.Avatar = s
	case "douyin_openid":
		p.DouyinOpenID = s
	case "is_member":
		p.IsMember = 0
		if s != "" && s != "0" {
			p.IsMember = 1
		}
	}
}
