package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"github.com/YKarmar/RoleMatch/internal/config"
)

// Archiver 把已发送的邮件保存到发件箱
type Archiver interface {
	Archive(ctx context.Context, msg Message, creds Credentials) error
}

// IMAP 归档配置
type IMAPConfig struct {
	Host   string // host:port，为空时根据发件人推断
	Folder string // 为空时根据提供商推断
}

// 通过 IMAP APPEND 写入“已发送”文件夹
type IMAPArchiver struct {
	config    IMAPConfig
	auth      Authenticator
	tlsConfig *tls.Config
}

func NewIMAPArchiver(cfg IMAPConfig, auth Authenticator) *IMAPArchiver {
	if auth == nil {
		auth = PasswordAuth{}
	}
	return &IMAPArchiver{config: cfg, auth: auth}
}

func (a *IMAPArchiver) WithTLSConfig(tlsConfig *tls.Config) *IMAPArchiver {
	a.tlsConfig = tlsConfig
	return a
}

func (a *IMAPArchiver) Archive(ctx context.Context, msg Message, creds Credentials) error {
	if msg.From == "" {
		msg.From = creds.Username
	}

	addr := a.config.Host
	if addr == "" {
		addr = config.InferIMAPHost(msg.From)
	}
	if addr == "" {
		return fmt.Errorf("imap host is not configured for %s", msg.From)
	}
	folder := a.config.Folder
	if folder == "" {
		folder = config.SentFolder(config.InferEmailProvider(msg.From))
	}

	raw, err := Compose(msg)
	if err != nil {
		return err
	}

	tlsConfig := a.tlsConfig
	if tlsConfig == nil {
		host, _, _ := net.SplitHostPort(addr)
		tlsConfig = &tls.Config{ServerName: host}
	}

	c, err := imapclient.DialTLS(addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer c.Logout()

	saslClient, err := a.auth.SASL(ctx, creds, addr)
	if err != nil {
		return err
	}
	if err := c.Authenticate(saslClient); err != nil {
		return fmt.Errorf("imap auth: %w", err)
	}

	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}
	if err := c.Append(folder, []string{imap.SeenFlag}, date, bytes.NewBuffer(raw)); err != nil {
		return fmt.Errorf("append to %s: %w", folder, err)
	}
	return nil
}
