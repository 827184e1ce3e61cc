package auth

import (
	"database/sql"
	"errors"

	"inkwell/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("username or email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service mints the credentials that Verifier later checks.
type Service struct {
	DB       *sql.DB
	Verifier *Verifier
}

func NewService(db *sql.DB, verifier *Verifier) *Service {
	return &Service{DB: db, Verifier: verifier}
}

// Register creates a user with a bcrypt-hashed password and returns a
// signed token for the new identity.
func (s *Service) Register(username, email, password string) (Identity, string, error) {
	var existing string
	err := s.DB.QueryRow("SELECT id FROM users WHERE username = $1 OR email = $2", username, email).Scan(&existing)
	if err == nil {
		return Identity{}, "", ErrUserExists
	}
	if err != sql.ErrNoRows {
		logger.Sugar.Errorf("Failed to check existing user %s: %v", username, err)
		return Identity{}, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, "", err
	}

	id := uuid.NewString()
	_, err = s.DB.Exec(`INSERT INTO users (id, username, email, password_hash, created_at) VALUES ($1, $2, $3, $4, NOW())`,
		id, username, email, string(hash))
	if err != nil {
		logger.Sugar.Errorf("Failed to create user %s: %v", username, err)
		return Identity{}, "", err
	}

	ident := Identity{ID: id, Username: username}
	token, err := s.Verifier.Issue(ident.ID, ident.Username)
	return ident, token, err
}

// Login checks the password against the stored hash and issues a token.
// Usernames and emails are both accepted as the login name.
func (s *Service) Login(username, password string) (Identity, string, error) {
	var (
		id   string
		name string
		hash string
	)
	err := s.DB.QueryRow("SELECT id, username, password_hash FROM users WHERE username = $1 OR email = $1", username).
		Scan(&id, &name, &hash)
	if err == sql.ErrNoRows {
		return Identity{}, "", ErrInvalidCredentials
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to look up user %s: %v", username, err)
		return Identity{}, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Identity{}, "", ErrInvalidCredentials
	}

	if _, err := s.DB.Exec("UPDATE users SET last_login = NOW() WHERE id = $1", id); err != nil {
		logger.Sugar.Errorf("Failed to update last_login for %s: %v", id, err)
	}

	ident := Identity{ID: id, Username: name}
	token, err := s.Verifier.Issue(ident.ID, ident.Username)
	return ident, token, err
}
