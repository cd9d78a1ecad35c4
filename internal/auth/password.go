package auth

// WHY BCRYPT?
// bcrypt is a password hashing function specifically designed to be slow.
// That slowness makes brute-force attacks expensive. It generates a random
// salt per hash and embeds salt and cost in its output, so the stored string
// is all Verify needs:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (12 rounds → 2^12 = 4096 iterations)
//	 version

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	// defaultCost is the bcrypt work factor. Set it so hashing takes
	// ~200–300ms on production hardware.
	defaultCost = 12

	// MinPasswordLength is the shortest password accepted at sign-up.
	MinPasswordLength = 6

	// bcrypt silently truncates input beyond this many bytes.
	maxPasswordBytes = 72
)

var (
	// ErrInvalidPassword is returned by Verify when the password does not match.
	ErrInvalidPassword = errors.New("auth: invalid password")
	// ErrWeakPassword is returned by Hash for passwords outside the accepted length.
	ErrWeakPassword = fmt.Errorf("auth: password must be between %d characters and %d bytes", MinPasswordLength, maxPasswordBytes)
)

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so that the cost can be injected
// in tests. A low cost (4) makes tests run much faster without changing
// the logic being tested.
type PasswordService struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceWithCost creates a PasswordService with a custom cost.
// Tests pass bcrypt.MinCost; never do that in production.
func NewPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
// Store the returned string directly in the database.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len([]rune(plaintext)) < MinPasswordLength || len(plaintext) > maxPasswordBytes {
		return "", ErrWeakPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// bcrypt.CompareHashAndPassword compares in constant time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// VerifyDummy burns the same time as a real Verify. Call it when the email is
// unknown so response timing does not reveal which accounts exist.
func (p *PasswordService) VerifyDummy(plaintext string) {
	p.dummyOnce.Do(func() {
		p.dummy, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), p.cost)
	})
	_ = bcrypt.CompareHashAndPassword(p.dummy, []byte(plaintext))
}
