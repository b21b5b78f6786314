package identityfake

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// User is a user pool entry.
type User struct {
	Sub                 string
	Username            string
	PasswordHash        string
	Attributes          map[string]string // email, name, preferred_username, given_name, ...
	Confirmed           bool
	ForceChangePassword bool // InitiateAuth answers with NEW_PASSWORD_REQUIRED
	confirmationCode    string
	resetCode           string
}

// ValidatePasswordStrength mirrors the default user pool password policy:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("Password not long enough")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("Password must have uppercase characters")
	}
	if !hasLower {
		return fmt.Errorf("Password must have lowercase characters")
	}
	if !hasNumber {
		return fmt.Errorf("Password must have numeric characters")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
