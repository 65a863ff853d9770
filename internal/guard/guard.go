package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/YKarmar/RoleMatch/internal/client"
	"github.com/YKarmar/RoleMatch/internal/types"
)

var (
	ErrInvalidRecipient   = errors.New("recipient address is empty or invalid")
	ErrDuplicateRecipient = errors.New("an application was already sent to this address")
	ErrSendFailed         = errors.New("send failed")
)

// 发送失败，日志未改动
type SendFailedError struct {
	Cause error
}

func (e *SendFailedError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Cause)
}

func (e *SendFailedError) Unwrap() error { return e.Cause }

func (e *SendFailedError) Is(target error) bool { return target == ErrSendFailed }

// 邮件已发出但日志写入失败，需要手动补记
type LogWriteError struct {
	Entry types.LogEntry
	Cause error
}

func (e *LogWriteError) Error() string {
	return fmt.Sprintf("mail to %s was sent but the log could not be written: %v", e.Entry.ContactEmail, e.Cause)
}

func (e *LogWriteError) Unwrap() error { return e.Cause }

// Log 是守卫需要的投递日志能力
type Log interface {
	SentSet() (types.SentSet, error)
	Append(entry types.LogEntry) error
}

type SendRequest struct {
	Job         types.JobRecord
	Recipient   string
	Subject     string
	Body        string
	Attachment  client.Attachment
	Credentials client.Credentials
	PostID      string
}

// Guard 保证每个地址只投递一次，每次发送前重新读取日志
type Guard struct {
	log       Log
	transport client.Transport
	archiver  client.Archiver
	now       func() time.Time

	mu sync.Mutex
}

type Option func(*Guard)

// WithArchiver 发送成功后把邮件存入“已发送”文件夹
func WithArchiver(a client.Archiver) Option {
	return func(g *Guard) { g.archiver = a }
}

func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func New(log Log, transport client.Transport, opts ...Option) *Guard {
	g := &Guard{log: log, transport: transport, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TrySend 检查重复、发送并记录
func (g *Guard) TrySend(ctx context.Context, req SendRequest) (types.LogEntry, error) {
	recipient := strings.TrimSpace(req.Recipient)
	if !types.HasContactAddress(recipient) {
		return types.LogEntry{}, ErrInvalidRecipient
	}

	g.mu.Lock()
	entry, msg, err := g.sendLocked(ctx, req, recipient)
	g.mu.Unlock()
	if err != nil {
		return entry, err
	}

	if g.archiver != nil {
		if err := g.archiver.Archive(ctx, msg, req.Credentials); err != nil {
			slog.Warn("archive to sent folder failed", "to", recipient, "err", err)
		}
	}
	return entry, nil
}

func (g *Guard) sendLocked(ctx context.Context, req SendRequest, recipient string) (types.LogEntry, client.Message, error) {
	sent, err := g.log.SentSet()
	if err != nil {
		return types.LogEntry{}, client.Message{}, fmt.Errorf("read application log: %w", err)
	}
	if sent.Contains(recipient) {
		slog.Info("send blocked, already applied", "to", recipient)
		return types.LogEntry{}, client.Message{}, ErrDuplicateRecipient
	}

	now := g.now()
	msg := client.Message{
		From:       req.Credentials.Username,
		To:         recipient,
		Subject:    req.Subject,
		Body:       req.Body,
		Attachment: req.Attachment,
		Date:       now,
		MessageID:  client.NewMessageID(req.Credentials.Username),
	}
	if err := g.transport.Send(ctx, msg, req.Credentials); err != nil {
		slog.Warn("send failed", "to", recipient, "err", err)
		return types.LogEntry{}, msg, &SendFailedError{Cause: err}
	}

	postID := req.PostID
	if postID == "" {
		postID = strconv.Itoa(req.Job.JobID)
	}
	entry := types.LogEntry{
		PostID:        postID,
		JobTitle:      req.Job.JobTitle,
		Company:       req.Job.Company,
		ContactEmail:  recipient,
		Status:        types.StatusSent,
		Relevance:     "YES",
		Notes:         "Mail sent | Subject: " + req.Subject,
		DateProcessed: now,
	}
	if err := g.log.Append(entry); err != nil {
		slog.Error("log append failed after send", "to", recipient, "err", err)
		return entry, msg, &LogWriteError{Entry: entry, Cause: err}
	}
	return entry, msg, nil
}
