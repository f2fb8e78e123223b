package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/inamate/tripwire/internal/store"
	"github.com/inamate/tripwire/internal/typeid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrOperatorNotFound   = errors.New("operator not found")
	ErrInvalidUsername    = errors.New("username must be 3-32 characters of a-z, 0-9, '.', '_' or '-'")
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9._-]{3,32}$`)

// NormalizeUsername folds case and surrounding space so "Ana " and "ana"
// are the same operator.
func NormalizeUsername(username string) (string, error) {
	u := strings.ToLower(strings.TrimSpace(username))
	if !usernamePattern.MatchString(u) {
		return "", ErrInvalidUsername
	}
	return u, nil
}

const tokenTTL = 24 * time.Hour

type Service struct {
	store     store.Querier
	jwtSecret []byte
	cost      int
}

func NewService(q store.Querier, jwtSecret string) *Service {
	return &Service{
		store:     q,
		jwtSecret: []byte(jwtSecret),
		cost:      12,
	}
}

type AuthResult struct {
	Token    string   `json:"token"`
	Operator Operator `json:"operator"`
}

type Operator struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

func (s *Service) Register(ctx context.Context, username, password, displayName string) (*AuthResult, error) {
	username, err := NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	op, err := s.store.CreateOperator(ctx, store.CreateOperatorParams{
		ID:          typeid.NewOperatorID(),
		Username:    username,
		Password:    string(hash),
		DisplayName: displayName,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create operator: %w", err)
	}

	token, err := s.issueToken(op.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Operator: fromStore(op)}, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username, err := NormalizeUsername(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	op, err := s.store.GetOperatorByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get operator: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(op.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Operator: fromStore(op)}, nil
}

// ValidateToken returns the operator ID the token was issued to.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}

	operatorID, ok := claims["sub"].(string)
	if !ok {
		return "", errors.New("invalid token subject")
	}
	return operatorID, nil
}

func (s *Service) GetOperator(ctx context.Context, operatorID string) (*Operator, error) {
	op, err := s.store.GetOperatorByID(ctx, operatorID)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, ErrOperatorNotFound
		}
		return nil, fmt.Errorf("get operator: %w", err)
	}
	out := fromStore(op)
	return &out, nil
}

func (s *Service) issueToken(operatorID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": operatorID,
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func fromStore(op store.Operator) Operator {
	return Operator{ID: op.ID, Username: op.Username, DisplayName: op.DisplayName}
}
