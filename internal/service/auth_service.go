package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wfunc/microinject/internal/config"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrInvalidToken       = errors.New("无效的令牌")
	ErrTokenExpired       = errors.New("令牌已过期")
)

// TokenClaims JWT载荷
type TokenClaims struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// AuthResponse 登录响应
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Username    string `json:"username"`
}

// AuthService 操作员认证服务
// 单操作员模式：凭证来自配置（密码为bcrypt哈希），不落数据库
type AuthService struct {
	cfg *config.SecurityConfig
	log *zap.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(cfg *config.SecurityConfig, log *zap.Logger) *AuthService {
	return &AuthService{
		cfg: cfg,
		log: log,
	}
}

// Login 操作员登录
func (s *AuthService) Login(username, password string) (*AuthResponse, error) {
	if username != s.cfg.Operator.Username {
		s.log.Warn("登录失败：用户名不存在", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(s.cfg.Operator.PasswordHash), []byte(password)); err != nil {
		s.log.Warn("登录失败：密码错误", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	expiry := s.tokenExpiry()
	now := time.Now()
	claims := &TokenClaims{
		Username:  username,
		Role:      "operator",
		SessionID: uuid.New().String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "microinject",
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("生成访问令牌失败: %w", err)
	}

	s.log.Info("操作员登录成功", zap.String("username", username))

	return &AuthResponse{
		AccessToken: signed,
		ExpiresIn:   int64(expiry.Seconds()),
		TokenType:   "Bearer",
		Username:    username,
	}, nil
}

// ValidateToken 验证令牌并返回载荷
func (s *AuthService) ValidateToken(tokenStr string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名算法: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword 生成bcrypt哈希（初始化配置用）
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *AuthService) tokenExpiry() time.Duration {
	hours := s.cfg.JWT.ExpireHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}
