// Package models defines the records persisted by the repositories.
package models

import "time"

// Account is a user row of the local storage engine. PasswordHash is a bcrypt
// hash and never leaves the gateway.
type Account struct {
	UID          int64
	Username     string
	Email        string
	PasswordHash string
	RegIP        string
	RegDate      time.Time
	Profile      Profile
}

// Profile holds the extended account attributes.
type Profile struct {
	Phone         string
	WechatOpenID  string
	WechatUnionID string
	QQUnionID     string
	WeiboOpenID   string
	Nickname      string
	Avatar        string
	DouyinOpenID  string
	IsMember      int
}

// ProfileFields are the extended attribute names accepted by user/edit, in
// column order. They double as column names of the accounts table.
var ProfileFields = []string{
	"phone",
	"wechat_openid",
	"wechat_unionid",
	"qq_union_id",
	"weibo_openid",
	"nickname",
	"avatar",
	"douyin_openid",
	"is_member",
}

// IsProfileField reports whether name is one of ProfileFields.
func IsProfileField(name string) bool {
	for _, f := range ProfileFields {
		if f == name {
			return true
		}
	}
	return false
}

// Get returns the named profile attribute as a string.
func (p Profile) Get(field string) (string, bool) {
	switch field {
	case "phone":
		return p.Phone, true
	case "wechat_openid":
		return p.WechatOpenID, true
	case "wechat_unionid":
		return p.WechatUnionID, true
	case "qq_union_id":
		return p.QQUnionID, true
	case "weibo_openid":
		return p.WeiboOpenID, true
	case "nickname":
		return p.Nickname, true
	case "avatar":
		return p.Avatar, true
	case "douyin_openid":
		return p.DouyinOpenID, true
	case "is_member":
		if p.IsMember != 0 {
			return "1", true
		}
		return "0", true
	}
	return "", false
}

// AccountChanges describes an update of one account. Nil pointers leave the
// column unchanged. Fields maps profile column names to new values; an empty
// string clears the column.
type AccountChanges struct {
	Email        *string
	PasswordHash *string
	Fields       map[string]any
}

// Empty reports whether the changes would touch nothing.
func (c AccountChanges) Empty() bool {
	return c.Email == nil && c.PasswordHash == nil && len(c.Fields) == 0
}
