package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword produces the bcrypt hash stored in AUTH_REVIEWERS. A zero cost
// uses bcrypt's default.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compared against for unknown reviewers so both rejection paths cost one
// bcrypt round.
var unknownReviewerHash, _ = bcrypt.GenerateFromPassword([]byte("unknown-reviewer"), bcrypt.DefaultCost)

func passwordMatches(hash []byte, plain string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain)) == nil
}
