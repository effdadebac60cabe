package fakeuserrepo

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/users"
)

var _ users.AccountRepo = (*FakeAccountRepo)(nil)

// FakeAccountRepo keeps accounts in memory. Returned accounts are copies.
type FakeAccountRepo struct {
	accounts map[users.ID]*users.Account
	emailIDs map[string]users.ID // normalized email to account id
	lock     sync.RWMutex
}

func NewFakeAccountRepo() *FakeAccountRepo {
	return &FakeAccountRepo{
		accounts: make(map[users.ID]*users.Account),
		emailIDs: make(map[string]users.ID),
	}
}

func (ar *FakeAccountRepo) Upsert(account *users.Account) error {
	if account == nil {
		return errors.ErrInvalidInput
	}
	email := users.NormalizeEmail(account.Email)
	if email == "" {
		return errors.Wrapf(errors.ErrInvalidInput, "[FakeAccountRepo.Upsert] email is required")
	}

	ar.lock.Lock()
	defer ar.lock.Unlock()

	if owner, ok := ar.emailIDs[email]; ok && owner != account.ID {
		return errors.ErrDuplicateUser
	}
	if account.ID == "" {
		account.ID = users.ID(uuid.New().String())
	}
	if prev, ok := ar.accounts[account.ID]; ok {
		delete(ar.emailIDs, users.NormalizeEmail(prev.Email))
	}
	stored := clone(account)
	ar.accounts[account.ID] = stored
	ar.emailIDs[email] = account.ID
	return nil
}

func (ar *FakeAccountRepo) GetByEmail(email string) (*users.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	id, ok := ar.emailIDs[users.NormalizeEmail(email)]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return clone(ar.accounts[id]), nil
}

func (ar *FakeAccountRepo) GetByID(id users.ID) (*users.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	a, ok := ar.accounts[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return clone(a), nil
}

// List returns accounts with the role, or all accounts for an empty role, ordered by id.
func (ar *FakeAccountRepo) List(role users.RoleType) ([]*users.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	list := make([]*users.Account, 0, len(ar.accounts))
	for _, a := range ar.accounts {
		if role != "" && a.Role != role {
			continue
		}
		list = append(list, clone(a))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func clone(a *users.Account) *users.Account {
	c := *a
	c.Allergies = append([]string(nil), a.Allergies...)
	c.ChronicDiseases = append([]string(nil), a.ChronicDiseases...)
	c.Medications = append([]string(nil), a.Medications...)
	return &c
}
