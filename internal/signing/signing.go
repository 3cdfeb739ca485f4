// Package signing issues and checks HMAC-signed download links for archived
// reports.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Signer generates and validates HMAC based signatures.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a Signer.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret, now: time.Now}
}

// Sign returns the hex signature for a run token and expiry.
func (s *Signer) Sign(token string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", token, expiresUnix)
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate reports whether signature matches token and expires and the
// expiry has not passed.
func (s *Signer) Validate(token, expires, signature string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	if s.now().Unix() > exp {
		return false
	}
	expected := s.Sign(token, exp)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Link returns a download URL for token under baseURL valid for ttl.
func (s *Signer) Link(baseURL, token string, ttl time.Duration) string {
	exp := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("run", token)
	q.Set("expires", strconv.FormatInt(exp, 10))
	q.Set("signature", s.Sign(token, exp))
	return baseURL + "/download?" + q.Encode()
}
