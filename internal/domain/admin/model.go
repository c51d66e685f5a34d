package admin

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserExists    = errors.New("username already exists")
	ErrUserNotFound  = errors.New("user not found")
	ErrWrongPassword = errors.New("incorrect password")
)

// InputError is a registration or login request the caller must fix.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

// User is a registry operator. The hash and stored token never leave the
// service in a response.
type User struct {
	ID           uuid.UUID `db:"id" json:"userId"`
	FullName     string    `db:"full_name" json:"fullName"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Token        string    `db:"token" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9]{3,25}$`)

const minPasswordLen = 8

// RegisterRequest keeps the field names existing clients send.
type RegisterRequest struct {
	FullName        string `json:"Fullname"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmpassword"`
}

func (r *RegisterRequest) Validate() error {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Username = strings.TrimSpace(r.Username)

	if r.FullName == "" {
		return &InputError{Message: "Fullname is required"}
	}
	if !usernamePattern.MatchString(r.Username) {
		return &InputError{Message: "username must be 3 to 25 letters or digits"}
	}
	if len(r.Password) < minPasswordLen || len(r.ConfirmPassword) < minPasswordLen {
		return &InputError{Message: "password must be at least 8 characters"}
	}
	if r.Password != r.ConfirmPassword {
		return &InputError{Message: "Passwords do not match"}
	}
	return nil
}

type LoginRequest struct {
	Username string `json:"userName"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" || r.Password == "" {
		return &InputError{Message: "Invalid Username/password"}
	}
	return nil
}

// Session is a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Payload   *User     `json:"payload"`
}
