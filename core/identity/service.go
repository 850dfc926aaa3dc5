package identity

import (
	"context"
	"net/mail"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
)

type (
	AccountRepository interface {
		// CreateAccount inserts acct and its profile (seeded from meta) atomically. Fails with ErrAccountExists.
		CreateAccount(ctx context.Context, acct Account, meta Metadata) (Account, error)
		GetAccountByID(ctx context.Context, id string) (Account, error)
		GetAccountByEmail(ctx context.Context, email string) (Account, error)
		// GetEmailByName does a case-insensitive exact match on profile names. Fails with ErrNotFound.
		GetEmailByName(ctx context.Context, name string) (string, error)
		SetLastLogin(ctx context.Context, id string, at time.Time) error
		SetPasswordHash(ctx context.Context, id string, hash []byte) error
	}

	// Service is the server side of the identity provider contract.
	Service struct {
		repo     AccountRepository
		validate *validator.Validate
		mailSvc  core.EmailService
		broker   core.ChangeBroker
		logger   core.Logger
		tokens   tokenIssuer

		mu      sync.Mutex
		revoked map[string]int64 // {jti: exp}
	}
)

var _ EmailResolver = (*Service)(nil)

func NewService(
	repo AccountRepository,
	validate *validator.Validate,
	mailSvc core.EmailService,
	broker core.ChangeBroker,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		repo:     repo,
		validate: validate,
		mailSvc:  mailSvc,
		broker:   broker,
		logger:   logger,
		tokens: tokenIssuer{
			issuer:     conf.AppName,
			key:        []byte(conf.SecretKey),
			ttl:        conf.Server.JWTExpirationDelta,
			refreshTTL: conf.Server.JWTRefreshExpirationDelta,
		},
		revoked: make(map[string]int64),
	}
}

// Register creates the account & its profile, then signs it in.
func (svc *Service) Register(ctx context.Context, na NewAccount) (Session, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Session{}, newAuthError(CodeValidation, err)
	}

	now := NowFunc().UTC()
	acct := Account{
		ID:        uuid.New().String(),
		Email:     na.Email,
		CreatedAt: now,
		LastLogin: now,
	}
	if err := acct.SetPassword(na.Password); err != nil {
		return Session{}, newAuthError(CodeProvider, errors.Wrap(err, "hashing password"))
	}

	acct, err := svc.repo.CreateAccount(ctx, acct, Metadata{Name: na.Name, Role: na.Role})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			return Session{}, newAuthError(CodeAlreadyExists, err)
		}
		return Session{}, newAuthError(CodeProvider, errors.Wrap(err, "creating account"))
	}
	core.PublishChange(ctx, svc.broker, svc.logger, core.TableUsers, core.OpInsert, acct.ID)
	svc.sendWelcomeEmail(acct, na.Name)

	sess, err := svc.tokens.sign(svc.tokens.claimsFor(acct))
	if err != nil {
		return Session{}, newAuthError(CodeProvider, err)
	}
	return sess, nil
}

func (svc *Service) sendWelcomeEmail(acct Account, name string) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: name, Address: acct.Email}},
		Subject:      "Welcome!",
		TemplateName: "welcome",
		TemplateData: map[string]interface{}{"Name": name},
	})
}

// Authenticate checks email & password and returns a new session.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (Session, error) {
	creds := Credentials{Email: email, Password: pwd}
	if err := creds.Validate(svc.validate); err != nil {
		return Session{}, newAuthError(CodeValidation, err)
	}

	acct, err := svc.repo.GetAccountByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, newAuthError(CodeInvalidCredentials, nil)
		}
		return Session{}, newAuthError(CodeProvider, errors.Wrap(err, "finding account by email"))
	}
	if err = acct.CheckPassword(creds.Password); err != nil {
		return Session{}, newAuthError(CodeInvalidCredentials, nil)
	}

	if err = svc.repo.SetLastLogin(ctx, acct.ID, NowFunc().UTC()); err != nil {
		svc.logger.Warn("setting last login", err, map[string]interface{}{"account": acct.ID})
	}

	sess, err := svc.tokens.sign(svc.tokens.claimsFor(acct))
	if err != nil {
		return Session{}, newAuthError(CodeProvider, err)
	}
	return sess, nil
}

// Verify parses token and rejects it when invalid, expired or revoked.
func (svc *Service) Verify(_ context.Context, token string) (*Claims, error) {
	claims, err := svc.tokens.parse(token)
	if err != nil {
		return nil, newAuthError(CodeInvalidToken, err)
	}
	if svc.IsRevoked(claims) {
		return nil, newAuthError(CodeInvalidToken, errors.New("token has been revoked"))
	}
	return claims, nil
}

func (svc *Service) IsRevoked(claims *Claims) bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	_, ok := svc.revoked[claims.Id]
	return ok
}

// Revoke signs claims out: its token id is rejected until the token expires.
// The token id is published on the change feed for the other instances sharing the broker (see WatchRevocations).
func (svc *Service) Revoke(ctx context.Context, claims *Claims) {
	if claims.Id == "" {
		return
	}
	svc.revoke(claims.Id, claims.ExpiresAt)
	core.PublishChange(ctx, svc.broker, svc.logger, core.TableRevokedTokens, core.OpInsert, claims.Id)
}

func (svc *Service) revoke(jti string, exp int64) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	nownix := NowFunc().Unix()
	for id, e := range svc.revoked {
		if e <= nownix {
			delete(svc.revoked, id)
		}
	}
	if exp > svc.revoked[jti] {
		svc.revoked[jti] = exp
	}
}

// WatchRevocations applies the revocations published on the change feed until ctx is done.
// A remote revocation is kept for a whole token lifetime since the token's expiry is not published.
func (svc *Service) WatchRevocations(ctx context.Context) {
	if svc.broker == nil {
		return
	}
	events, unsubscribe := svc.broker.Subscribe(ctx, core.TableRevokedTokens)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.RecordID != "" {
				svc.revoke(ev.RecordID, NowFunc().Add(svc.tokens.ttl).Unix())
			}
		}
	}
}

// Refresh re-issues a session for claims while still within the refresh window, then revokes claims.
func (svc *Service) Refresh(ctx context.Context, claims *Claims) (Session, error) {
	if err := svc.tokens.canRefresh(claims); err != nil {
		return Session{}, newAuthError(CodeInvalidToken, err)
	}
	acct, err := svc.repo.GetAccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, newAuthError(CodeInvalidToken, err)
		}
		return Session{}, newAuthError(CodeProvider, errors.Wrap(err, "finding account by id"))
	}

	sess, err := svc.tokens.sign(svc.tokens.claimsFor(acct, claims.OrigIssuedAt))
	if err != nil {
		return Session{}, newAuthError(CodeProvider, err)
	}
	svc.Revoke(ctx, claims)
	return sess, nil
}

// EmailByName resolves a display name to its account's email.
func (svc *Service) EmailByName(ctx context.Context, name string) (string, error) {
	name = core.CleanString(name)
	if name == "" {
		return "", ErrNotFound
	}
	return svc.repo.GetEmailByName(ctx, name)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Account, error) {
	return svc.repo.GetAccountByEmail(ctx, core.CleanString(email, true /* lower */))
}

// SetPassword resets the password of the account registered with sp.Email.
func (svc *Service) SetPassword(ctx context.Context, sp SetPassword) error {
	if err := sp.Validate(svc.validate); err != nil {
		return err
	}
	acct, err := svc.repo.GetAccountByEmail(ctx, sp.Email)
	if err != nil {
		return errors.Wrap(err, "finding account by email")
	}
	if err = acct.SetPassword(sp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return svc.repo.SetPasswordHash(ctx, acct.ID, acct.PasswordHash)
}
