package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"chatwire/pkg/interfaces"
	"chatwire/pkg/types"
)

const bcryptCost = 10

// Credentials is the result of a successful register or login: the
// signed token plus the identity it resolves to.
type Credentials struct {
	Token string             `json:"access_token"`
	User  types.UserIdentity `json:"user"`
}

// Provider issues and verifies bearer tokens and owns the credential
// flow. It implements interfaces.TokenVerifier.
type Provider struct {
	users     interfaces.UserStore
	secretKey []byte
	tokenTTL  time.Duration
}

// NewProvider creates an auth provider. The secret must be non-empty;
// token lifetime falls back to 24h when zero.
func NewProvider(users interfaces.UserStore, secretKey []byte, tokenTTL time.Duration) (*Provider, error) {
	if len(secretKey) == 0 {
		return nil, ErrMissingSecret
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Provider{
		users:     users,
		secretKey: secretKey,
		tokenTTL:  tokenTTL,
	}, nil
}

// Register creates an account and signs it in. Uniqueness failures
// surface as interfaces.ErrUsernameTaken / ErrEmailTaken.
func (p *Provider) Register(ctx context.Context, username, email, password string) (*Credentials, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if !types.IsValidUsername(username) {
		return nil, types.ErrInvalidUsername
	}
	if !types.IsValidEmail(email) {
		return nil, types.ErrInvalidEmail
	}
	if len(password) < 6 {
		return nil, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &types.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		DisplayColor: types.DefaultDisplayColor,
		CreatedAt:    time.Now().UTC(),
	}

	if err := p.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return p.signIn(user)
}

// Login validates credentials. Unknown usernames and wrong passwords
// both return ErrInvalidCredentials so the response leaks nothing.
func (p *Provider) Login(ctx context.Context, username, password string) (*Credentials, error) {
	user, err := p.users.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, interfaces.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return p.signIn(user)
}

func (p *Provider) signIn(user *types.User) (*Credentials, error) {
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"username": user.Username,
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(p.tokenTTL).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Credentials{Token: token, User: user.Identity()}, nil
}

// VerifyToken resolves a bearer token to the identity it names. The
// "Bearer " prefix is tolerated so callers can pass headers verbatim.
func (p *Provider) VerifyToken(token string) (*types.UserIdentity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, interfaces.ErrInvalidToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secretKey, nil
	})
	if err != nil || !parsed.Valid {
		return nil, interfaces.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, interfaces.ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, interfaces.ErrInvalidToken
	}

	user, err := p.users.UserByID(context.Background(), sub)
	if err != nil {
		if errors.Is(err, interfaces.ErrUserNotFound) {
			return nil, interfaces.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve token subject: %w", err)
	}

	identity := user.Identity()
	return &identity, nil
}
