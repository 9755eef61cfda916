package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports whether plain matches hashed. Any comparison error counts as a mismatch.
func VerifyPassword(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// PasswordHasher is the hash capability used by the session issuer.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hashed string) bool
}

// BcryptHasher implements PasswordHasher with a fixed cost.
type BcryptHasher struct {
	Cost int
}

func (b BcryptHasher) Hash(plain string) (string, error) {
	return HashPassword(plain, b.Cost)
}

func (b BcryptHasher) Verify(plain, hashed string) bool {
	return VerifyPassword(plain, hashed)
}
