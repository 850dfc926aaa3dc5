package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/profile"
)

var accountColumns = []string{"id", "email", "password_hash", "created_at", "last_login"}

type accountRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	LastLogin    time.Time `db:"last_login"`
}

func (r accountRow) account() identity.Account {
	return identity.Account{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		LastLogin:    r.LastLogin.UTC(),
	}
}

type accountRepository struct {
	db *sqlx.DB
}

var _ identity.AccountRepository = (*accountRepository)(nil)

func NewAccountRepository(db *sqlx.DB) *accountRepository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acct identity.Account, meta identity.Metadata) (identity.Account, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return identity.Account{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := psql.Insert("accounts").
		Columns(accountColumns...).
		Values(acct.ID, acct.Email, acct.PasswordHash, acct.CreatedAt.UTC(), acct.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return identity.Account{}, errors.Wrap(err, "building query")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return identity.Account{}, identity.ErrAccountExists
		}
		return identity.Account{}, errors.Wrap(err, "inserting account")
	}

	query, args, err = psql.Insert("users").
		Columns("id", "name", "role").
		Values(acct.ID, null.NewString(meta.Name, meta.Name != ""), meta.Role).
		ToSql()
	if err != nil {
		return identity.Account{}, errors.Wrap(err, "building query")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return identity.Account{}, errors.Wrap(err, "inserting profile")
	}

	if err = tx.Commit(); err != nil {
		return identity.Account{}, errors.Wrap(err, "committing account")
	}
	acct.LastLogin = acct.CreatedAt
	return acct, nil
}

func (repo *accountRepository) getAccount(ctx context.Context, where sq.Sqlizer) (identity.Account, error) {
	query, args, err := psql.Select(accountColumns...).From("accounts").Where(where).Limit(1).ToSql()
	if err != nil {
		return identity.Account{}, errors.Wrap(err, "building query")
	}
	var row accountRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return identity.Account{}, trapNoRowsErr(err, identity.ErrNotFound, "getting account")
	}
	return row.account(), nil
}

func (repo *accountRepository) GetAccountByID(ctx context.Context, id string) (identity.Account, error) {
	return repo.getAccount(ctx, sq.Eq{"id": id})
}

func (repo *accountRepository) GetAccountByEmail(ctx context.Context, email string) (identity.Account, error) {
	return repo.getAccount(ctx, sq.Expr("lower(email) = lower(?)", email))
}

func (repo *accountRepository) GetEmailByName(ctx context.Context, name string) (string, error) {
	query, args, err := psql.Select("a.email").
		From("users u").
		Join("accounts a ON a.id = u.id").
		Where(sq.Expr("lower(u.name) = lower(?)", name)).
		OrderBy("a.created_at ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return "", errors.Wrap(err, "building query")
	}
	var email string
	if err = repo.db.GetContext(ctx, &email, query, args...); err != nil {
		return "", trapNoRowsErr(err, identity.ErrNotFound, "getting email by name")
	}
	return email, nil
}

func (repo *accountRepository) update(ctx context.Context, id string, set map[string]interface{}) error {
	query, args, err := psql.Update("accounts").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "updating account")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (repo *accountRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	return repo.update(ctx, id, map[string]interface{}{"last_login": at.UTC()})
}

func (repo *accountRepository) SetPasswordHash(ctx context.Context, id string, hash []byte) error {
	return repo.update(ctx, id, map[string]interface{}{"password_hash": hash})
}

var profileColumns = []string{"id", "name", "phone_number", "role"}

type profileRow struct {
	ID          string       `db:"id"`
	Name        null.String  `db:"name"`
	PhoneNumber null.String  `db:"phone_number"`
	Role        profile.Role `db:"role"`
}

func (r profileRow) profile() profile.Profile {
	return profile.Profile{
		ID:          r.ID,
		Name:        r.Name.Ptr(),
		PhoneNumber: r.PhoneNumber.Ptr(),
		Role:        r.Role,
	}
}

func profilesOf(rows []profileRow) []profile.Profile {
	profs := make([]profile.Profile, 0, len(rows))
	for _, r := range rows {
		profs = append(profs, r.profile())
	}
	return profs
}

type profileRepository struct {
	db *sqlx.DB
}

var _ profile.Repository = (*profileRepository)(nil)

func NewProfileRepository(db *sqlx.DB) *profileRepository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) GetProfile(ctx context.Context, id string) (profile.Profile, error) {
	query, args, err := psql.Select(profileColumns...).From("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return profile.Profile{}, errors.Wrap(err, "building query")
	}
	var row profileRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return profile.Profile{}, trapNoRowsErr(err, profile.ErrNotFound, "getting profile")
	}
	return row.profile(), nil
}

func (repo *profileRepository) QueryProfiles(ctx context.Context, ids ...string) ([]profile.Profile, error) {
	if len(ids) == 0 {
		return []profile.Profile{}, nil
	}
	query, args, err := psql.Select(profileColumns...).From("users").Where(sq.Eq{"id": ids}).OrderBy("name ASC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []profileRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying profiles")
	}
	return profilesOf(rows), nil
}

func (repo *profileRepository) UpdateContact(ctx context.Context, id, name, phone string) ([]profile.Profile, error) {
	query, args, err := psql.Update("users").
		Set("name", name).
		Set("phone_number", phone).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + joinColumns(profileColumns)).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []profileRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "updating profile")
	}
	return profilesOf(rows), nil
}
