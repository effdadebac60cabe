package fakeapi

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/jrsteele09/zhancare-client/users"
)

const resetCodeTTL = 15 * time.Minute

type resetCode struct {
	code    string
	expires time.Time
}

// resetCodes holds one outstanding password reset code per email.
type resetCodes struct {
	lock    sync.Mutex
	codes   map[string]resetCode
	nowFunc func() time.Time
}

func newResetCodes(nowFunc func() time.Time) *resetCodes {
	return &resetCodes{
		codes:   make(map[string]resetCode),
		nowFunc: nowFunc,
	}
}

// issue creates a six digit code for email, replacing any previous one.
func (rc *resetCodes) issue(email string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	rc.lock.Lock()
	defer rc.lock.Unlock()
	rc.codes[users.NormalizeEmail(email)] = resetCode{code: code, expires: rc.nowFunc().Add(resetCodeTTL)}
	return code, nil
}

func (rc *resetCodes) valid(email, code string) bool {
	rc.lock.Lock()
	defer rc.lock.Unlock()
	return rc.validLocked(users.NormalizeEmail(email), code)
}

// consume checks the code and removes it when valid.
func (rc *resetCodes) consume(email, code string) bool {
	rc.lock.Lock()
	defer rc.lock.Unlock()
	key := users.NormalizeEmail(email)
	if !rc.validLocked(key, code) {
		return false
	}
	delete(rc.codes, key)
	return true
}

func (rc *resetCodes) validLocked(key, code string) bool {
	entry, ok := rc.codes[key]
	if !ok || code == "" || entry.code != code {
		return false
	}
	if !rc.nowFunc().Before(entry.expires) {
		delete(rc.codes, key)
		return false
	}
	return true
}

func (rc *resetCodes) peek(email string) (string, bool) {
	rc.lock.Lock()
	defer rc.lock.Unlock()
	c, ok := rc.codes[users.NormalizeEmail(email)]
	return c.code, ok
}
