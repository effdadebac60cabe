package users

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt cost used by HashPassword. Tests lower it.
var PasswordCost = bcrypt.DefaultCost

// Account is a stored login on the development backend.
type Account struct {
	Profile
	PasswordHash string `json:"-"`
}

// AccountRepo stores accounts. Emails are matched case-insensitively.
type AccountRepo interface {
	Upsert(account *Account) error
	GetByEmail(email string) (*Account, error)
	GetByID(id ID) (*Account, error)
	List(role RoleType) ([]*Account, error)
}

// NormalizeEmail is the lookup form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
