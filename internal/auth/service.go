package auth

import (
	"golang.org/x/crypto/bcrypt"

	"trade-signal-bot/config"
	"trade-signal-bot/internal/logging"
)

// Service authenticates the single operator account against a bcrypt hash
// from config or Vault. There is no user registration; the account is
// provisioned out of band.
type Service struct {
	jwtManager        *JWTManager
	adminUsername     string
	adminPasswordHash string
	logger            *logging.Logger
}

func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		jwtManager:        NewJWTManager(cfg.JWTSecret, cfg.AccessTokenDuration),
		adminUsername:     cfg.AdminUsername,
		adminPasswordHash: cfg.AdminPasswordHash,
		logger:            logging.WithComponent("auth"),
	}
}

// Login verifies the operator credentials and issues an access token.
func (s *Service) Login(username, password string) (*TokenPair, error) {
	if s.adminPasswordHash == "" {
		s.logger.Warn("Login attempted with no admin password hash configured")
		return nil, ErrInvalidCredentials
	}
	if username != s.adminUsername {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.adminPasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtManager.GenerateAccessToken(UserClaims{
		UserID:   "admin",
		Username: s.adminUsername,
		IsAdmin:  true,
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken: token,
		ExpiresIn:   s.jwtManager.GetAccessTokenDuration(),
		TokenType:   "Bearer",
	}, nil
}

// JWTManager exposes the token validator for middleware wiring.
func (s *Service) JWTManager() *JWTManager {
	return s.jwtManager
}
