package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/microinject/internal/config"
	"go.uber.org/zap"
)

type AuthServiceTestSuite struct {
	suite.Suite
	svc *AuthService
}

func (s *AuthServiceTestSuite) SetupTest() {
	hash, err := HashPassword("secret123")
	s.Require().NoError(err)

	s.svc = NewAuthService(&config.SecurityConfig{
		JWT: config.JWTConfig{
			Secret:      "test-secret",
			ExpireHours: 1,
		},
		Operator: config.Operator{
			Username:     "operator",
			PasswordHash: hash,
		},
	}, zap.NewNop())
}

func (s *AuthServiceTestSuite) TestLoginSuccess() {
	resp, err := s.svc.Login("operator", "secret123")
	s.NoError(err)
	s.NotEmpty(resp.AccessToken)
	s.Equal("Bearer", resp.TokenType)
	s.Equal("operator", resp.Username)
	s.EqualValues(3600, resp.ExpiresIn)
}

func (s *AuthServiceTestSuite) TestLoginWrongPassword() {
	_, err := s.svc.Login("operator", "wrong")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *AuthServiceTestSuite) TestLoginUnknownUser() {
	_, err := s.svc.Login("intruder", "secret123")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *AuthServiceTestSuite) TestValidateToken() {
	resp, err := s.svc.Login("operator", "secret123")
	s.Require().NoError(err)

	claims, err := s.svc.ValidateToken(resp.AccessToken)
	s.NoError(err)
	s.Equal("operator", claims.Username)
	s.Equal("operator", claims.Role)
	s.NotEmpty(claims.SessionID)
}

func (s *AuthServiceTestSuite) TestValidateGarbageToken() {
	_, err := s.svc.ValidateToken("not.a.token")
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *AuthServiceTestSuite) TestValidateExpiredToken() {
	now := time.Now()
	claims := &TokenClaims{
		Username: "operator",
		Role:     "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	s.Require().NoError(err)

	_, err = s.svc.ValidateToken(signed)
	s.ErrorIs(err, ErrTokenExpired)
}

func (s *AuthServiceTestSuite) TestValidateWrongSecret() {
	other := NewAuthService(&config.SecurityConfig{
		JWT:      config.JWTConfig{Secret: "other-secret", ExpireHours: 1},
		Operator: config.Operator{Username: "operator", PasswordHash: "x"},
	}, zap.NewNop())

	resp, err := s.svc.Login("operator", "secret123")
	s.Require().NoError(err)

	_, err = other.ValidateToken(resp.AccessToken)
	s.ErrorIs(err, ErrInvalidToken)
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}
