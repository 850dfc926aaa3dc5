package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/profile"
)

type accountRepository struct {
	db *DB
}

var _ identity.AccountRepository = (*accountRepository)(nil)

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) CreateAccount(_ context.Context, acct identity.Account, meta identity.Metadata) (identity.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, a := range repo.db.accounts {
		if strings.EqualFold(a.Email, acct.Email) {
			return identity.Account{}, identity.ErrAccountExists
		}
	}
	a := acct
	a.PasswordHash = append([]byte(nil), acct.PasswordHash...)
	repo.db.accounts[a.ID] = &a

	prof := profile.Profile{ID: a.ID, Role: meta.Role}
	if meta.Name != "" {
		prof.Name = profile.StringPtr(meta.Name)
	}
	repo.db.profiles[a.ID] = &prof
	return acct, nil
}

func (repo *accountRepository) GetAccountByID(_ context.Context, id string) (identity.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.accounts[id]; ok {
		return *a, nil
	}
	return identity.Account{}, identity.ErrNotFound
}

func (repo *accountRepository) GetAccountByEmail(_ context.Context, email string) (identity.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, a := range repo.db.accounts {
		if strings.EqualFold(a.Email, email) {
			return *a, nil
		}
	}
	return identity.Account{}, identity.ErrNotFound
}

func (repo *accountRepository) GetEmailByName(_ context.Context, name string) (string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var matches []*identity.Account
	for id, p := range repo.db.profiles {
		if p.Name != nil && strings.EqualFold(*p.Name, name) {
			if a, ok := repo.db.accounts[id]; ok {
				matches = append(matches, a)
			}
		}
	}
	if len(matches) == 0 {
		return "", identity.ErrNotFound
	}
	// oldest account wins
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	return matches[0].Email, nil
}

func (repo *accountRepository) SetLastLogin(_ context.Context, id string, at time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a, ok := repo.db.accounts[id]
	if !ok {
		return identity.ErrNotFound
	}
	a.LastLogin = at
	return nil
}

func (repo *accountRepository) SetPasswordHash(_ context.Context, id string, hash []byte) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a, ok := repo.db.accounts[id]
	if !ok {
		return identity.ErrNotFound
	}
	a.PasswordHash = append([]byte(nil), hash...)
	return nil
}

type profileRepository struct {
	db *DB
}

var _ profile.Repository = (*profileRepository)(nil)

func NewProfileRepository(db *DB) *profileRepository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) GetProfile(_ context.Context, id string) (profile.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p := repo.db.profileRef(id); p != nil {
		return *p, nil
	}
	return profile.Profile{}, profile.ErrNotFound
}

func (repo *profileRepository) QueryProfiles(_ context.Context, ids ...string) ([]profile.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	profs := make([]profile.Profile, 0, len(ids))
	for _, id := range ids {
		if p := repo.db.profileRef(id); p != nil {
			profs = append(profs, *p)
		}
	}
	return profs, nil
}

func (repo *profileRepository) UpdateContact(_ context.Context, id, name, phone string) ([]profile.Profile, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p, ok := repo.db.profiles[id]
	if !ok {
		return []profile.Profile{}, nil
	}
	p.Name = profile.StringPtr(name)
	p.PhoneNumber = profile.StringPtr(phone)
	return []profile.Profile{copyProfile(*p)}, nil
}

// SetRole overwrites the role of profile id. Profiles created before roles were required have none.
func (db *DB) SetRole(id string, role profile.Role) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	p, ok := db.profiles[id]
	if !ok {
		return profile.ErrNotFound
	}
	p.Role = role
	return nil
}
