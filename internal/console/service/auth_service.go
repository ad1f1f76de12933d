package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"github.com/xela07ax/spaceai-cmdgate/internal/infra/auth"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// dummyHash сравниваем для неизвестных логинов, чтобы время ответа не выдавало их отсутствие.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("cmdgate-dummy-password"), bcrypt.MinCost)

// AuthService выдает токены операторам из конфига (источник правды — auth.operators).
type AuthService struct {
	operators map[string]domain.Operator
	issuer    *auth.TokenIssuer
}

func NewAuthService(operators []domain.Operator, issuer *auth.TokenIssuer) *AuthService {
	byName := make(map[string]domain.Operator, len(operators))
	for _, op := range operators {
		if op.ID == "" {
			op.ID = op.Username
		}
		byName[op.Username] = op
	}
	return &AuthService{operators: byName, issuer: issuer}
}

func (s *AuthService) GenerateToken(_ context.Context, username, password string) (*domain.TokenResponse, error) {
	op, ok := s.operators[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	resp, err := s.issuer.Issue(op.ID, op.ScopeSet())
	if err != nil {
		return nil, fmt.Errorf("auth_service: %w", err)
	}
	return resp, nil
}

// HashPassword — для генерации password_hash в конфиг.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
