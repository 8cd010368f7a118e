// Package remote implements gateway.Gateway over the signed UCenter HTTP API.
//
// Every call carries appid, nonce, t and sign headers; all operations except
// "token" also carry a bearer token, which the Gateway fetches and caches in
// its TokenSession.
package remote

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
)

// Signer computes request signatures for one application secret.
type Signer struct {
	secret string
}

func NewSigner(secret string) Signer {
	return Signer{secret: secret}
}

// Sign returns base64(hex(sha256(nonce + decimal(ts) + secret))).
func (s Signer) Sign(nonce string, ts int64) string {
	sum := sha256.Sum256([]byte(nonce + strconv.FormatInt(ts, 10) + s.secret))
	return base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(sum[:])))
}
