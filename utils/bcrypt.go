package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password for storage on a User
// record. The seed tool is the main caller.
func HashPassword(s string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
}

// ComparePassword reports nil when normal matches the stored hash.
func ComparePassword(hashed string, normal string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(normal))
}
