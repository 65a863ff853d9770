package types

import (
	"strings"
	"time"
)

type JobType string

const (
	JobTypeInternship JobType = "Internship"
	JobTypeFullTime   JobType = "Full-time"
	JobTypeContract   JobType = "Contract"
	JobTypePartTime   JobType = "Part-time"
	JobTypeUnknown    JobType = "Unknown"
)

type Status string

const (
	StatusSent Status = "SENT" // 已发送，本工具唯一写入的状态
)

// 一条抽取出的招聘信息
type JobRecord struct {
	JobID          int     `json:"job_id"`
	JobTitle       string  `json:"job_title"`
	Company        string  `json:"company"`
	ApplyEmail     string  `json:"apply_email"`
	JobType        JobType `json:"job_type"`
	Location       string  `json:"location"`
	Skills         string  `json:"skills,omitempty"`
	JDSummary      string  `json:"jd_summary"`
	EmailSubject   string  `json:"email_subject"`
	EmailBodyDraft string  `json:"email_body_draft"`
}

// 投递日志中的一行
type LogEntry struct {
	PostID        string    `json:"post_id"`
	JobTitle      string    `json:"job_title"`
	Company       string    `json:"company"`
	ContactEmail  string    `json:"contact_email"`
	Status        Status    `json:"status"`
	Relevance     string    `json:"relevance"`
	Notes         string    `json:"notes"`
	DateProcessed time.Time `json:"date_processed"`
}

// 一次抽取的结果
type Batch struct {
	ID        string      `json:"id"`
	Label     string      `json:"label"`
	CreatedAt time.Time   `json:"created_at"`
	Jobs      []JobRecord `json:"jobs"`
}

// 已发送邮箱集合，键为 NormalizeEmail 之后的地址
type SentSet map[string]struct{}

func (s SentSet) Contains(email string) bool {
	_, ok := s[NormalizeEmail(email)]
	return ok
}

func (s SentSet) Add(email string) {
	s[NormalizeEmail(email)] = struct{}{}
}

// 标准化邮箱地址，用于去重比较
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// 地址至少包含 "@"
func HasContactAddress(email string) bool {
	email = strings.TrimSpace(email)
	return email != "" && strings.Contains(email, "@")
}

// 标准化职位类型
func NormalizeJobType(s string) JobType {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)

	switch key {
	case "internship", "intern":
		return JobTypeInternship
	case "fulltime", "permanent":
		return JobTypeFullTime
	case "contract", "contractual", "freelance":
		return JobTypeContract
	case "parttime":
		return JobTypePartTime
	default:
		return JobTypeUnknown
	}
}

// 标准化状态列，读取时容忍大小写和空白
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, string(StatusSent)) {
		return StatusSent
	}
	return Status(s)
}
