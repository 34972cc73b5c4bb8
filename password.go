package main

import "golang.org/x/crypto/bcrypt"

func hashPassword(pwd string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(h), nil
}

// verifyPassword reports whether pwd matches hash. A malformed stored hash is
// treated as a mismatch, not an error.
func verifyPassword(pwd, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pwd))
	return err == nil
}
