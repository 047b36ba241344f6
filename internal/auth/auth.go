// Package auth handles portal sign-in: the fixed admin credential, bcrypt
// accounts for the other roles, and cookie sessions.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/sfaret/stipslite/internal/config"
	"github.com/sfaret/stipslite/internal/store"
)

// Roles.
const (
	RoleStudent     = "student"
	RoleAdmin       = "admin"
	RoleVA          = "va"
	RolePrintCenter = "print-center"
)

// AdminEmail is the only email the admin login accepts.
const AdminEmail = "admin@sfaret"

const adminPassword = "Sfaret@stipslite"

// MinPasswordLen is the shortest accepted account password.
const MinPasswordLen = 8

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountsDisabled   = errors.New("sign-in unavailable")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidAccount     = errors.New("invalid account details")
	ErrUnknownRole        = errors.New("unknown role")
)

// AccountRoles are the roles that sign up and log in with an account.
var AccountRoles = []string{RoleStudent, RoleVA, RolePrintCenter}

// IsAccountRole reports whether role signs in with an account.
func IsAccountRole(role string) bool {
	for _, r := range AccountRoles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleLabel returns the display name of a role.
func RoleLabel(role string) string {
	switch role {
	case RoleStudent:
		return "Student"
	case RoleAdmin:
		return "Admin"
	case RoleVA:
		return "Virtual Assistant"
	case RolePrintCenter:
		return "Print Center"
	default:
		return role
	}
}

// AdminLogin accepts exactly the admin credential pair.
func AdminLogin(email, password string) error {
	// Both comparisons always run so timing does not reveal which field failed.
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(AdminEmail))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(adminPassword))
	if emailOK&passOK != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Accounts manages student, VA and print-center accounts. A nil *Accounts
// means sign-in is disabled; every method then returns ErrAccountsDisabled.
type Accounts struct {
	db   *store.DB
	cost int
}

// NewAccounts returns an account manager hashing with the given bcrypt cost.
func NewAccounts(db *store.DB, cost int) *Accounts {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Accounts{db: db, cost: cost}
}

// AccountsFromConfig returns the account manager for the configured identity
// provider. Only "local" is supported; anything else disables sign-in.
func AccountsFromConfig(cfg config.AuthConfig, db *store.DB) *Accounts {
	if cfg.Provider != "local" {
		log.Warn().Str("provider", cfg.Provider).Msg("no identity provider configured, account sign-in disabled")
		return nil
	}
	return NewAccounts(db, cfg.BcryptCost)
}

// Register creates an account.
func (a *Accounts) Register(ctx context.Context, email, name, password, role string) (*store.User, error) {
	if a == nil {
		return nil, ErrAccountsDisabled
	}
	if !IsAccountRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email must contain @", ErrInvalidAccount)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidAccount)
	}
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidAccount, MinPasswordLen)
	}
	if email == AdminEmail {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &store.User{Email: email, Name: name, Role: role, PasswordHash: string(hash)}
	if err := a.db.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	log.Info().Str("email", email).Str("role", role).Msg("account registered")
	return u, nil
}

// Login verifies an account's password. The account must hold role.
func (a *Accounts) Login(ctx context.Context, email, password, role string) (*store.User, error) {
	if a == nil {
		return nil, ErrAccountsDisabled
	}
	u, err := a.db.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u == nil || u.Role != role {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Get returns the account for id, or (nil, nil).
func (a *Accounts) Get(ctx context.Context, id string) (*store.User, error) {
	if a == nil {
		return nil, ErrAccountsDisabled
	}
	return a.db.GetUser(ctx, id)
}
