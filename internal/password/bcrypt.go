package password

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type bcryptHasher struct {
	cost int
}

func (b bcryptHasher) validate() error {
	if b.cost < bcrypt.MinCost || b.cost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost %d out of range [%d, %d]", b.cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	return nil
}

func (b bcryptHasher) hash(plain string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", err
	}

	return string(out), nil
}

// verify — bcrypt сам сравнивает за постоянное время.
func (b bcryptHasher) verify(plain, encoded string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain)) == nil
}

func isBcrypt(encoded string) bool {
	for _, p := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encoded, p) {
			return true
		}
	}

	return false
}
