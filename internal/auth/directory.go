package auth

import (
	"errors"
	"strings"
)

// ErrInvalidCredentials covers unknown reviewers and wrong passwords alike.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Directory is the static set of reviewers allowed to decide approvals.
type Directory struct {
	hashes map[string]string
	admins map[string]struct{}
}

// NewDirectory builds a directory from email -> bcrypt hash pairs. Admin
// emails must also appear in reviewers to be able to log in.
func NewDirectory(reviewers map[string]string, admins []string) *Directory {
	d := &Directory{
		hashes: make(map[string]string, len(reviewers)),
		admins: make(map[string]struct{}, len(admins)),
	}
	for email, hash := range reviewers {
		d.hashes[normalizeEmail(email)] = hash
	}
	for _, email := range admins {
		d.admins[normalizeEmail(email)] = struct{}{}
	}
	return d
}

// Authenticate checks the password and returns the reviewer's role.
func (d *Directory) Authenticate(email, password string) (Role, error) {
	hash, ok := d.hashes[normalizeEmail(email)]
	if !ok {
		passwordMatches(unknownReviewerHash, password)
		return "", ErrInvalidCredentials
	}
	if !passwordMatches([]byte(hash), password) {
		return "", ErrInvalidCredentials
	}
	return d.RoleOf(email), nil
}

// RoleOf reports the role granted to email.
func (d *Directory) RoleOf(email string) Role {
	if _, ok := d.admins[normalizeEmail(email)]; ok {
		return RoleAdmin
	}
	return RoleReviewer
}

// Len is the number of reviewers.
func (d *Directory) Len() int { return len(d.hashes) }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
