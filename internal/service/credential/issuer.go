// Package credential provisions login identities for patients registered by
// a doctor and hands the derived password to the patient out of band.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"

	"github.com/Alijeyrad/clinic_backend/internal/repo"
	"github.com/Alijeyrad/clinic_backend/pkg/util/password"
)

const (
	passwordSuffix  = "123"
	syntheticDomain = "patient.com"
	minPhoneDigits  = 4
	defaultRegion   = "IR"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type IssueRequest struct {
	Name  string
	Phone string
	// Email is optional; DefaultEmail(Phone) is used when empty.
	Email string
}

// Issued carries the plaintext exactly once. Nothing stores it.
type Issued struct {
	Identity *repo.Identity
	Login    string
	Password string
}

// ---------------------------------------------------------------------------
// Issuer
// ---------------------------------------------------------------------------

type Issuer struct {
	identities repo.IdentityRepository
	hasher     *password.Hasher
	region     string
}

func NewIssuer(identities repo.IdentityRepository, hasher *password.Hasher, region string) *Issuer {
	if region == "" {
		region = defaultRegion
	}
	return &Issuer{identities: identities, hasher: hasher, region: region}
}

// DerivePassword is the last four characters of phone followed by "123".
func DerivePassword(phone string) (string, error) {
	p := []rune(strings.TrimSpace(phone))
	if len(p) < minPhoneDigits {
		return "", ErrInvalidPhone
	}
	return string(p[len(p)-minPhoneDigits:]) + passwordSuffix, nil
}

// DefaultEmail is the login used for a patient registered without an email.
func DefaultEmail(phone string) string {
	return strings.TrimSpace(phone) + "@" + syntheticDomain
}

// IsSyntheticEmail reports whether email was generated by DefaultEmail and
// therefore cannot receive mail.
func IsSyntheticEmail(email string) bool {
	return strings.HasSuffix(strings.ToLower(email), "@"+syntheticDomain)
}

// Issue creates a patient identity whose password is derived from the phone.
// It fails with ErrEmailTaken when the email already identifies someone.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return nil, ErrPhoneRequired
	}
	if err := i.validatePhone(phone); err != nil {
		return nil, err
	}

	plain, err := DerivePassword(phone)
	if err != nil {
		return nil, err
	}

	login := strings.ToLower(strings.TrimSpace(req.Email))
	if login == "" {
		login = DefaultEmail(phone)
	}

	exists, err := i.identities.EmailExists(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := i.hasher.Hash(plain)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ident := &repo.Identity{
		Email:        login,
		Name:         strings.TrimSpace(req.Name),
		Role:         repo.RolePatient,
		PasswordHash: hash,
	}
	if err := i.identities.Create(ctx, ident); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}

	return &Issued{Identity: ident, Login: login, Password: plain}, nil
}

// validatePhone accepts anything libphonenumber can parse in the default
// region with at least four digits. Full validity is only required for SMS.
func (i *Issuer) validatePhone(phone string) error {
	digits := 0
	for _, r := range phone {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
		default:
			return ErrInvalidPhone
		}
	}
	if digits < minPhoneDigits {
		return ErrInvalidPhone
	}
	if _, err := phonenumbers.Parse(phone, i.region); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	return nil
}
