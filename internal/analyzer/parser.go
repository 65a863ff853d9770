package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/YKarmar/RoleMatch/internal/types"
)

// ErrMalformedResponse 模型返回的内容不是合法JSON
var ErrMalformedResponse = errors.New("malformed extraction response")

// ParseResponse 解析模型返回的JSON，按顺序分配 job_id
func ParseResponse(response string) ([]types.JobRecord, error) {
	text := stripFence(response)

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if envelope == nil {
		return nil, fmt.Errorf("%w: top-level value is null", ErrMalformedResponse)
	}

	rawJobs, ok := envelope["jobs"]
	if !ok {
		return []types.JobRecord{}, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(rawJobs, &elements); err != nil {
		return nil, fmt.Errorf("%w: jobs is not a list: %v", ErrMalformedResponse, err)
	}

	jobs := make([]types.JobRecord, 0, len(elements))
	seen := make(map[string]struct{}, len(elements))
	for _, el := range elements {
		var fields map[string]any
		if err := json.Unmarshal(el, &fields); err != nil || fields == nil {
			// 非对象元素直接跳过
			continue
		}

		job := toRecord(fields)
		if key := types.NormalizeEmail(job.ApplyEmail); key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}

		job.JobID = len(jobs) + 1
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func toRecord(m map[string]any) types.JobRecord {
	return types.JobRecord{
		JobTitle:       cleanText(field(m, "job_title")),
		Company:        cleanText(field(m, "company")),
		ApplyEmail:     strings.TrimSpace(field(m, "apply_email")),
		JobType:        types.NormalizeJobType(field(m, "job_type")),
		Location:       cleanText(field(m, "location")),
		Skills:         cleanText(field(m, "skills")),
		JDSummary:      cleanText(field(m, "jd_summary")),
		EmailSubject:   cleanText(field(m, "email_subject")),
		EmailBodyDraft: strings.TrimSpace(field(m, "email_body_draft")),
	}
}

// 按字符串读取字段；缺失或 null 为空串，列表用逗号拼接
func field(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if item != nil {
				parts = append(parts, fmt.Sprint(item))
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// 去掉 ``` 代码块的首行和末行
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return ""
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}

var spaceRe = regexp.MustCompile(`\s+`)

// 清理文本，合并多余空白（邮件正文不走这里）
func cleanText(text string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}
