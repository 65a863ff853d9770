package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/emersion/go-sasl"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// 发件人凭据，只保存在内存中
type Credentials struct {
	Username    string
	AppPassword string
}

func (c Credentials) Empty() bool {
	return c.Username == "" && c.AppPassword == ""
}

// 日志中只输出打码后的地址，不输出密码
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", MaskAddress(c.Username)),
		slog.Bool("password_set", c.AppPassword != ""),
	)
}

// MaskAddress 打码邮箱地址：jo***@gmail.com
func MaskAddress(addr string) string {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok {
		if addr == "" {
			return ""
		}
		return "***"
	}
	if len(local) > 2 {
		local = local[:2]
	}
	return local + "***@" + domain
}

// OAuth 客户端配置（可选，替代应用专用密码）
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
}

// Authenticator 为一次连接生成 SASL 客户端
type Authenticator interface {
	SASL(ctx context.Context, creds Credentials, addr string) (sasl.Client, error)
}

// 应用专用密码，走 PLAIN
type PasswordAuth struct{}

func (PasswordAuth) SASL(_ context.Context, creds Credentials, _ string) (sasl.Client, error) {
	if creds.Username == "" || creds.AppPassword == "" {
		return nil, fmt.Errorf("sender address and app password are required")
	}
	return sasl.NewPlainClient("", creds.Username, creds.AppPassword), nil
}

// OAuth 刷新令牌，走 OAUTHBEARER
type OAuthAuth struct {
	source oauth2.TokenSource
}

func NewOAuthAuth(ctx context.Context, cfg OAuthConfig) *OAuthAuth {
	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: cfg.TokenURL}
	}
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
	}
	return &OAuthAuth{source: conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})}
}

func NewOAuthAuthFromSource(source oauth2.TokenSource) *OAuthAuth {
	return &OAuthAuth{source: source}
}

func (a *OAuthAuth) SASL(_ context.Context, creds Credentials, addr string) (sasl.Client, error) {
	if creds.Username == "" {
		return nil, fmt.Errorf("sender address is required")
	}
	tok, err := a.source.Token()
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)
	return sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
		Username: creds.Username,
		Token:    tok.AccessToken,
		Host:     host,
		Port:     port,
	}), nil
}
