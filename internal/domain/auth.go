package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// Scopes, которые проверяют транспорты при включенной аутентификации
const (
	ScopeExecute   = "execute"   // Отправка команд на исполнение
	ScopeApprove   = "approve"   // Решения по очереди (HITL)
	ScopeWhitelist = "whitelist" // Изменение белого списка
)

type CustomClaims struct {
	UserID string          `json:"user_id"`
	Scopes map[string]bool `json:"scopes"` // "approve": true или "execute": true
	jwt.RegisteredClaims
}

// Secure Token Issuing
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn   int64  `json:"expires_in"`
}

// Operator — учетная запись оператора из конфига (БД пользователей нет).
type Operator struct {
	ID           string   `mapstructure:"id" json:"id"`
	Username     string   `mapstructure:"username" json:"username"`
	PasswordHash string   `mapstructure:"password_hash" json:"-"` // bcrypt, никогда не отдаем наружу
	Scopes       []string `mapstructure:"scopes" json:"scopes"`
}

// ScopeSet превращает список в map для claims.
func (o Operator) ScopeSet() map[string]bool {
	set := make(map[string]bool, len(o.Scopes))
	for _, s := range o.Scopes {
		set[s] = true
	}
	return set
}
