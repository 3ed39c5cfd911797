package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/popis/internal/backend"
)

// Backend keys holding the owner's credentials.
const (
	PasswordKey = "auth_password_hash"
	SecretKey   = "auth_token_secret"
)

// MinPasswordLength is the shortest password SetPassword accepts.
const MinPasswordLength = 8

var (
	ErrNoPassword         = errors.New("no password set")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// SetPassword stores the bcrypt hash of password and rotates the token secret,
// which invalidates every token issued before.
func SetPassword(ctx context.Context, b backend.Backend, password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := b.Set(ctx, PasswordKey, string(hash)); err != nil {
		return fmt.Errorf("storing password: %w", err)
	}

	if _, err := RotateSecret(ctx, b); err != nil {
		return err
	}
	return nil
}

// HasPassword reports whether a password has been set.
func HasPassword(ctx context.Context, b backend.Backend) (bool, error) {
	_, ok, err := b.Get(ctx, PasswordKey)
	if err != nil {
		return false, fmt.Errorf("reading password: %w", err)
	}
	return ok, nil
}

// CheckPassword compares password with the stored hash.
func CheckPassword(ctx context.Context, b backend.Backend, password string) error {
	hash, ok, err := b.Get(ctx, PasswordKey)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	if !ok {
		return ErrNoPassword
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// EnsureSecret returns the token signing secret, generating and storing one
// if none exists yet.
func EnsureSecret(ctx context.Context, b backend.Backend) (string, error) {
	secret, ok, err := b.Get(ctx, SecretKey)
	if err != nil {
		return "", fmt.Errorf("reading token secret: %w", err)
	}
	if ok && secret != "" {
		return secret, nil
	}
	return RotateSecret(ctx, b)
}

// RotateSecret replaces the token signing secret with a fresh random one.
func RotateSecret(ctx context.Context, b backend.Backend) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token secret: %w", err)
	}
	secret := hex.EncodeToString(buf)

	if err := b.Set(ctx, SecretKey, secret); err != nil {
		return "", fmt.Errorf("storing token secret: %w", err)
	}
	return secret, nil
}

// GeneratePassword creates a random password of the given length.
func GeneratePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
