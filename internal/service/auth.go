package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/rocketscienceinc/tictactoe-tcp/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/entity"
	"github.com/rocketscienceinc/tictactoe-tcp/internal/repository"
)

const tokenTTL = 24 * time.Hour

type AuthService interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (string, error)
	VerifyToken(token string) (string, error)
}

type authService struct {
	secretKey string
	users     repository.UserRepository
}

func NewAuthService(secretKey string, users repository.UserRepository) AuthService {
	return &authService{
		secretKey: secretKey,
		users:     users,
	}
}

// Register - creates an account with a bcrypt-hashed password.
func (that *authService) Register(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return apperror.ErrEmptyCredentials
	}

	_, err := that.users.Find(ctx, username)
	if err == nil {
		return apperror.ErrUserAlreadyExists
	}
	if !errors.Is(err, apperror.ErrUserNotFound) {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entity.User{Username: username, PasswordHash: string(hash)}
	if err = that.users.Save(ctx, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	return nil
}

// Login - verifies the password and returns a signed session token.
func (that *authService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", apperror.ErrEmptyCredentials
	}

	user, err := that.users.Find(ctx, username)
	if err != nil {
		return "", err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", apperror.ErrWrongPassword
	}

	return that.generateToken(user.Username)
}

// VerifyToken - validates a session token and returns its subject.
func (that *authService) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method", apperror.ErrInvalidToken)
		}
		return []byte(that.secretKey), nil
	})
	if err != nil || !token.Valid {
		return "", apperror.ErrInvalidToken
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", apperror.ErrInvalidToken
	}

	return subject, nil
}

func (that *authService) generateToken(username string) (string, error) {
	claims := jwt.MapClaims{
		"sub": username,
		"exp": time.Now().Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(that.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}
