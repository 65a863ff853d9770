package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-smtp"

	"github.com/YKarmar/RoleMatch/internal/config"
)

// 连接加密方式
const (
	SecurityStartTLS = "starttls"
	SecurityTLS      = "tls"
	SecurityNone     = "none"
)

// Transport 负责把一封邮件交给邮件服务器
type Transport interface {
	Send(ctx context.Context, msg Message, creds Credentials) error
}

// SMTP 发信客户端配置
type SMTPConfig struct {
	Host     string // host:port，为空时根据发件人推断
	Security string
	Timeout  time.Duration
}

// SMTP 发信客户端
type SMTPClient struct {
	config    SMTPConfig
	auth      Authenticator
	tlsConfig *tls.Config
}

// 创建SMTP客户端，auth 为 nil 时不做认证
func NewSMTPClient(cfg SMTPConfig, auth Authenticator) *SMTPClient {
	if cfg.Security == "" {
		cfg.Security = SecurityStartTLS
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &SMTPClient{config: cfg, auth: auth}
}

// WithTLSConfig 替换默认的 TLS 配置
func (c *SMTPClient) WithTLSConfig(tlsConfig *tls.Config) *SMTPClient {
	c.tlsConfig = tlsConfig
	return c
}

func (c *SMTPClient) addr(sender string) (string, error) {
	addr := c.config.Host
	if addr == "" {
		addr = config.InferSMTPHost(sender)
	}
	if addr == "" {
		return "", fmt.Errorf("smtp host is not configured for %s", sender)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		port := "587"
		if c.config.Security == SecurityTLS {
			port = "465"
		}
		addr = net.JoinHostPort(addr, port)
	}
	return addr, nil
}

func (c *SMTPClient) dial(addr string) (*smtp.Client, error) {
	tlsConfig := c.tlsConfig
	if tlsConfig == nil {
		host, _, _ := net.SplitHostPort(addr)
		tlsConfig = &tls.Config{ServerName: host}
	}

	switch strings.ToLower(c.config.Security) {
	case SecurityStartTLS:
		return smtp.DialStartTLS(addr, tlsConfig)
	case SecurityTLS:
		return smtp.DialTLS(addr, tlsConfig)
	case SecurityNone:
		return smtp.Dial(addr)
	default:
		return nil, fmt.Errorf("unknown smtp security %q", c.config.Security)
	}
}

// Send 发送一封邮件
func (c *SMTPClient) Send(ctx context.Context, msg Message, creds Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.From == "" {
		msg.From = creds.Username
	}

	raw, err := Compose(msg)
	if err != nil {
		return err
	}

	addr, err := c.addr(msg.From)
	if err != nil {
		return err
	}

	sc, err := c.dial(addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer sc.Close()
	sc.CommandTimeout = c.config.Timeout
	sc.SubmissionTimeout = c.config.Timeout

	if c.auth != nil {
		saslClient, err := c.auth.SASL(ctx, creds, addr)
		if err != nil {
			return err
		}
		if err := sc.Auth(saslClient); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sc.SendMail(msg.From, []string{msg.To}, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	if err := sc.Quit(); err != nil {
		// 邮件已被服务器接受
		slog.Warn("smtp quit failed", "addr", addr, "error", err)
	}

	slog.Info("mail sent", "to", msg.To, "addr", addr)
	return nil
}
