package client

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// 附件（简历）
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// 待发送的邮件：单一收件人，纯文本正文，一个附件
type Message struct {
	From       string
	To         string
	Subject    string
	Body       string
	Attachment Attachment
	Date       time.Time
	// 为空时 Compose 临时生成；发送和归档共用同一个值
	MessageID string
}

// NewMessageID 生成 Message-Id（不含尖括号），域名取自发件地址
func NewMessageID(from string) string {
	_, domain, ok := strings.Cut(from, "@")
	if !ok || domain == "" {
		domain = "localhost"
	}
	return uuid.NewString() + "@" + domain
}

// 根据文件扩展名推断附件类型，默认PDF
func (a Attachment) contentType() string {
	if a.ContentType != "" {
		return a.ContentType
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(a.Filename))); ct != "" {
		return ct
	}
	return "application/pdf"
}

// Compose 生成 MIME 邮件内容
func Compose(msg Message) ([]byte, error) {
	if msg.From == "" || msg.To == "" {
		return nil, fmt.Errorf("compose: sender and recipient are required")
	}
	if len(msg.Attachment.Data) == 0 {
		return nil, fmt.Errorf("compose: attachment is required")
	}

	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}

	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Address: msg.From}})
	h.SetAddressList("To", []*mail.Address{{Address: msg.To}})
	h.SetSubject(msg.Subject)
	if msg.MessageID != "" {
		h.SetMessageID(msg.MessageID)
	} else if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("compose: message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("compose: create writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("compose: create inline: %w", err)
	}
	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(th)
	if err != nil {
		return nil, fmt.Errorf("compose: create body part: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, fmt.Errorf("compose: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}

	filename := msg.Attachment.Filename
	if filename == "" {
		filename = "resume.pdf"
	}
	var ah mail.AttachmentHeader
	ah.SetContentType(msg.Attachment.contentType(), nil)
	ah.SetFilename(filename)
	w, err = mw.CreateAttachment(ah)
	if err != nil {
		return nil, fmt.Errorf("compose: create attachment: %w", err)
	}
	if _, err := w.Write(msg.Attachment.Data); err != nil {
		return nil, fmt.Errorf("compose: write attachment: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("compose: close writer: %w", err)
	}
	return buf.Bytes(), nil
}
