package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YKarmar/RoleMatch/internal/client"
	"github.com/YKarmar/RoleMatch/internal/filter"
	"github.com/YKarmar/RoleMatch/internal/guard"
	"github.com/YKarmar/RoleMatch/internal/scan"
	"github.com/YKarmar/RoleMatch/internal/types"
)

var (
	ErrMissingCredentials = errors.New("sender email and app password are required")
	ErrMissingResume      = errors.New("resume attachment is required")
	ErrJobNotFound        = errors.New("job not found in the current list")
	ErrNoScanLoaded       = errors.New("no scan loaded")
)

// Extractor 从原始文本抽取招聘信息
type Extractor interface {
	Extract(ctx context.Context, rawText, styleReference string) ([]types.JobRecord, error)
}

// SentSource 提供当前的已发送集合
type SentSource interface {
	SentSet() (types.SentSet, error)
}

// Sender 执行单次发送
type Sender interface {
	TrySend(ctx context.Context, req guard.SendRequest) (types.LogEntry, error)
}

// 用户在发送前的修改，空字段沿用草稿
type Edit struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// 一次分析的摘要
type Summary struct {
	BatchID        string            `json:"batch_id"`
	Label          string            `json:"label"`
	Total          int               `json:"total"`
	Eligible       int               `json:"eligible"`
	SkippedInvalid int               `json:"skipped_invalid"`
	SkippedSent    int               `json:"skipped_sent"`
	Jobs           []types.JobRecord `json:"jobs"`
}

// 会话状态：凭据只保存在内存中，不落盘
type Session struct {
	extractor Extractor
	log       SentSource
	sender    Sender

	mu       sync.Mutex
	creds    client.Credentials
	style    string
	resume   client.Attachment
	scan     *scan.Blob
	batch    *types.Batch
	eligible filter.Result
	// 已发出但未能写入日志的地址
	unlogged types.SentSet
}

func New(extractor Extractor, log SentSource, sender Sender) *Session {
	return &Session{extractor: extractor, log: log, sender: sender, unlogged: types.SentSet{}}
}

func (s *Session) sentSet() (types.SentSet, error) {
	sent, err := s.log.SentSet()
	if err != nil {
		return nil, fmt.Errorf("read application log: %w", err)
	}
	s.mu.Lock()
	for addr := range s.unlogged {
		sent.Add(addr)
	}
	s.mu.Unlock()
	return sent, nil
}

// ── 输入 ─────────────────────────────────────────────────────────────

func (s *Session) SetCredentials(creds client.Credentials) {
	creds.Username = strings.TrimSpace(creds.Username)
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	slog.Info("session credentials updated", "creds", creds)
}

// UpdateCredentials 只覆盖传入的字段，nil 保留原值
func (s *Session) UpdateCredentials(username, appPassword *string) {
	s.mu.Lock()
	if username != nil {
		s.creds.Username = strings.TrimSpace(*username)
	}
	if appPassword != nil {
		s.creds.AppPassword = *appPassword
	}
	creds := s.creds
	s.mu.Unlock()
	slog.Info("session credentials updated", "creds", creds)
}

func (s *Session) HasCredentials() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.Username != "" && s.creds.AppPassword != ""
}

// Sender 返回打码后的发件地址
func (s *Session) Sender() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return client.MaskAddress(s.creds.Username)
}

func (s *Session) SetStyle(style string) {
	s.mu.Lock()
	s.style = style
	s.mu.Unlock()
}

func (s *Session) Style() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.style
}

func (s *Session) SetResume(a client.Attachment) {
	s.mu.Lock()
	s.resume = a
	s.mu.Unlock()
}

func (s *Session) Resume() (client.Attachment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resume, len(s.resume.Data) > 0
}

// ResumeFromFile 读取本地简历文件作为附件
func ResumeFromFile(path string) (client.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return client.Attachment{}, fmt.Errorf("read resume: %w", err)
	}
	if len(data) == 0 {
		return client.Attachment{}, ErrMissingResume
	}
	return client.Attachment{Filename: filepath.Base(path), Data: data}, nil
}

// ── 扫描 ─────────────────────────────────────────────────────────────

func (s *Session) LoadScan(b scan.Blob) {
	s.mu.Lock()
	s.scan = &b
	s.mu.Unlock()
	slog.Info("scan loaded", "label", b.Label, "chars", len(b.Content))
}

func (s *Session) LoadLatest(ctx context.Context, src scan.Source) (scan.Blob, error) {
	b, err := src.Latest(ctx)
	if err != nil {
		return scan.Blob{}, err
	}
	s.LoadScan(b)
	return b, nil
}

func (s *Session) Scan() (scan.Blob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scan == nil {
		return scan.Blob{}, false
	}
	return *s.scan, true
}

// ── 分析 ─────────────────────────────────────────────────────────────

// Analyze 抽取并筛选；失败时保留上一次的结果
func (s *Session) Analyze(ctx context.Context) (Summary, error) {
	s.mu.Lock()
	blob, style := s.scan, s.style
	s.mu.Unlock()
	if blob == nil || strings.TrimSpace(blob.Content) == "" {
		return Summary{}, ErrNoScanLoaded
	}

	jobs, err := s.extractor.Extract(ctx, blob.Content, style)
	if err != nil {
		return Summary{}, err
	}
	sent, err := s.sentSet()
	if err != nil {
		return Summary{}, err
	}

	batch := &types.Batch{
		ID:        uuid.NewString(),
		Label:     blob.Label,
		CreatedAt: time.Now(),
		Jobs:      jobs,
	}
	res := filter.Partition(jobs, sent)

	s.mu.Lock()
	s.batch = batch
	s.eligible = res
	s.mu.Unlock()

	slog.Info("batch analyzed", "batch", batch.ID, "total", len(jobs), "eligible", len(res.Eligible),
		"skipped_invalid", res.SkippedInvalid, "skipped_sent", res.SkippedSent)
	return summarize(batch, res), nil
}

// Refresh 用最新的日志重新筛选当前批次
func (s *Session) Refresh() (Summary, error) {
	s.mu.Lock()
	batch := s.batch
	s.mu.Unlock()
	if batch == nil {
		return Summary{Jobs: []types.JobRecord{}}, nil
	}

	sent, err := s.sentSet()
	if err != nil {
		return Summary{}, err
	}
	res := filter.Partition(batch.Jobs, sent)

	s.mu.Lock()
	if s.batch == batch {
		s.eligible = res
	}
	s.mu.Unlock()
	return summarize(batch, res), nil
}

func summarize(batch *types.Batch, res filter.Result) Summary {
	return Summary{
		BatchID:        batch.ID,
		Label:          batch.Label,
		Total:          len(batch.Jobs),
		Eligible:       len(res.Eligible),
		SkippedInvalid: res.SkippedInvalid,
		SkippedSent:    res.SkippedSent,
		Jobs:           res.Eligible,
	}
}

// Eligible 返回当前可投递列表
func (s *Session) Eligible() []types.JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.JobRecord, len(s.eligible.Eligible))
	copy(out, s.eligible.Eligible)
	return out
}

func (s *Session) Batch() (types.Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch == nil {
		return types.Batch{}, false
	}
	return *s.batch, true
}

// Draft 返回待审阅的招聘信息
func (s *Session) Draft(jobID int) (types.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.eligible.Eligible {
		if job.JobID == jobID {
			return job, nil
		}
	}
	return types.JobRecord{}, ErrJobNotFound
}

// ── 发送 ─────────────────────────────────────────────────────────────

// Send 发送一封申请邮件，成功后刷新可投递列表
func (s *Session) Send(ctx context.Context, jobID int, edit Edit) (types.LogEntry, error) {
	draft, err := s.Draft(jobID)
	if err != nil {
		return types.LogEntry{}, err
	}

	s.mu.Lock()
	creds, resume := s.creds, s.resume
	s.mu.Unlock()
	if creds.Username == "" || creds.AppPassword == "" {
		return types.LogEntry{}, ErrMissingCredentials
	}
	if len(resume.Data) == 0 {
		return types.LogEntry{}, ErrMissingResume
	}

	req := guard.SendRequest{
		Job:         draft,
		Recipient:   orDefault(edit.To, draft.ApplyEmail),
		Subject:     orDefault(edit.Subject, draft.EmailSubject),
		Body:        orDefault(edit.Body, draft.EmailBodyDraft),
		Attachment:  resume,
		Credentials: creds,
	}
	entry, err := s.sender.TrySend(ctx, req)

	var lw *guard.LogWriteError
	if errors.As(err, &lw) {
		s.mu.Lock()
		s.unlogged.Add(lw.Entry.ContactEmail)
		s.mu.Unlock()
	}
	if err == nil || lw != nil || errors.Is(err, guard.ErrDuplicateRecipient) {
		if _, rerr := s.Refresh(); rerr != nil {
			slog.Warn("refresh after send failed", "err", rerr)
		}
	}
	return entry, err
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
