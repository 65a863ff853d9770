package tracker

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/YKarmar/RoleMatch/internal/types"
)

// CSV表头，顺序固定
var Header = []string{
	"Post ID",
	"Job Title",
	"Company",
	"Contact Email",
	"Status",
	"Relevance",
	"Notes",
	"Date Processed",
}

const dateLayout = "2006-01-02 15:04"

var dateLayouts = []string{dateLayout, "2006-01-02 15:04:05", time.RFC3339}

// 投递日志：只追加的CSV文件
type Log struct {
	filename string
}

// 打开投递日志，文件不存在时创建并写入表头
func Open(filename string) (*Log, error) {
	l := &Log{filename: filename}
	if err := l.ensure(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) Path() string { return l.filename }

func (l *Log) ensure() error {
	f, err := os.Open(l.filename)
	if err == nil {
		defer f.Close()
		return checkHeader(f)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("open log file: %w", err)
	}

	if dir := filepath.Dir(l.filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}

	file, err := os.OpenFile(l.filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return fmt.Errorf("create log file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("write CSV headers: %w", err)
	}
	writer.Flush()
	return writer.Error()
}

func checkHeader(r io.Reader) error {
	header, err := csv.NewReader(r).Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("log file is empty, expected header %v", Header)
	}
	if err != nil {
		return fmt.Errorf("read CSV header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if len(header) != len(Header) {
		return fmt.Errorf("unexpected log header %v", header)
	}
	for i := range Header {
		if strings.TrimSpace(header[i]) != Header[i] {
			return fmt.Errorf("unexpected log header %v", header)
		}
	}
	return nil
}

// 读取全部记录，保持文件顺序
func (l *Log) Load() ([]types.LogEntry, error) {
	file, err := os.Open(l.filename)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}

	entries := make([]types.LogEntry, 0, len(records))
	for i, record := range records {
		if i == 0 {
			continue // 表头
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		entries = append(entries, fromRecord(record))
	}
	return entries, nil
}

// 当前已发送的邮箱集合，每次都重新读取文件
func (l *Log) SentSet() (types.SentSet, error) {
	entries, err := l.Load()
	if err != nil {
		return nil, err
	}
	sent := types.SentSet{}
	for _, e := range entries {
		if types.ParseStatus(string(e.Status)) == types.StatusSent && strings.TrimSpace(e.ContactEmail) != "" {
			sent.Add(e.ContactEmail)
		}
	}
	return sent, nil
}

// 追加一行，不改写已有内容
func (l *Log) Append(entry types.LogEntry) error {
	if err := l.ensure(); err != nil {
		return err
	}

	file, err := os.OpenFile(l.filename, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file for append: %w", err)
	}

	// 手工编辑过的文件可能缺少末尾换行
	if missing, err := missingTrailingNewline(l.filename); err != nil {
		file.Close()
		return err
	} else if missing {
		if _, err := file.WriteString("\n"); err != nil {
			file.Close()
			return fmt.Errorf("write CSV record: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(toRecord(entry)); err != nil {
		file.Close()
		return fmt.Errorf("write CSV record: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return fmt.Errorf("flush CSV record: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	return file.Close()
}

func missingTrailingNewline(filename string) (bool, error) {
	f, err := os.Open(filename)
	if err != nil {
		return false, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("read log file: %w", err)
	}
	return last[0] != '\n', nil
}

func toRecord(e types.LogEntry) []string {
	date := ""
	if !e.DateProcessed.IsZero() {
		date = e.DateProcessed.Format(dateLayout)
	}
	return []string{
		e.PostID,
		e.JobTitle,
		e.Company,
		e.ContactEmail,
		string(e.Status),
		e.Relevance,
		e.Notes,
		date,
	}
}

func fromRecord(record []string) types.LogEntry {
	col := func(i int) string {
		if i < len(record) {
			return record[i]
		}
		return ""
	}
	return types.LogEntry{
		PostID:        col(0),
		JobTitle:      col(1),
		Company:       col(2),
		ContactEmail:  col(3),
		Status:        types.Status(col(4)),
		Relevance:     col(5),
		Notes:         col(6),
		DateProcessed: parseDate(col(7)),
	}
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
