package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

var ErrNoScan = errors.New("no scan file found")

// 自动加载窗口和“新扫描”提示窗口
const (
	AutoLoadWindow = 2 * time.Minute
	NewScanWindow  = 5 * time.Minute
)

// 一次页面抓取的原始文本
type Blob struct {
	Label   string
	Path    string
	Content string
	ModTime time.Time
}

// Fresh 判断扫描是否在窗口期内
func (b Blob) Fresh(now time.Time, window time.Duration) bool {
	if b.ModTime.IsZero() {
		return false
	}
	age := now.Sub(b.ModTime)
	return age >= 0 && age <= window
}

// Source 提供最新的扫描文本
type Source interface {
	Latest(ctx context.Context) (Blob, error)
}

// 扫描目录；Strict 目录要求文件名像招聘网站导出的文件
type Dir struct {
	Path   string
	Strict bool
}

var jobFilePattern = regexp.MustCompile(`(?i)(_jobs_|linkedin|internshala|indeed|naukri)`)

// 从本地目录读取扫描文件
type DirSource struct {
	dirs []Dir
}

// NewDirSource 按路径创建扫描源，不叫 scanned_jobs 的目录（例如 Downloads）按严格模式匹配
func NewDirSource(paths ...string) *DirSource {
	dirs := make([]Dir, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		dirs = append(dirs, Dir{Path: p, Strict: filepath.Base(filepath.Clean(p)) != "scanned_jobs"})
	}
	return &DirSource{dirs: dirs}
}

func NewDirSourceFromDirs(dirs ...Dir) *DirSource {
	return &DirSource{dirs: dirs}
}

func (d Dir) matches(name string) bool {
	if !strings.EqualFold(filepath.Ext(name), ".txt") {
		return false
	}
	return !d.Strict || jobFilePattern.MatchString(name)
}

type candidate struct {
	path    string
	modTime time.Time
}

func (s *DirSource) candidates() []candidate {
	seen := make(map[string]bool)
	var out []candidate
	for _, d := range s.dirs {
		entries, err := os.ReadDir(d.Path)
		if err != nil {
			continue // 目录不存在时跳过
		}
		for _, e := range entries {
			if e.IsDir() || !d.matches(e.Name()) {
				continue
			}
			path := filepath.Join(d.Path, e.Name())
			abs, err := filepath.Abs(path)
			if err == nil {
				if seen[abs] {
					continue
				}
				seen[abs] = true
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			out = append(out, candidate{path: path, modTime: info.ModTime()})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].modTime.After(out[j].modTime) })
	return out
}

// List 返回所有扫描文件（不含内容），最新的在前
func (s *DirSource) List() []Blob {
	cands := s.candidates()
	blobs := make([]Blob, 0, len(cands))
	for _, c := range cands {
		blobs = append(blobs, Blob{Label: labelOf(c.path), Path: c.path, ModTime: c.modTime})
	}
	return blobs
}

// Latest 读取最新的扫描文件
func (s *DirSource) Latest(ctx context.Context) (Blob, error) {
	for _, c := range s.candidates() {
		if err := ctx.Err(); err != nil {
			return Blob{}, err
		}
		b, err := ReadFile(c.path)
		if err != nil {
			continue
		}
		return b, nil
	}
	return Blob{}, ErrNoScan
}

// ReadFile 读取一个扫描文件，非法 UTF-8 会被替换
func ReadFile(path string) (Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Blob{}, fmt.Errorf("read scan file: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Blob{}, fmt.Errorf("stat scan file: %w", err)
	}
	return Blob{
		Label:   labelOf(path),
		Path:    path,
		Content: strings.ToValidUTF8(string(data), string(utf8.RuneError)),
		ModTime: info.ModTime(),
	}, nil
}

// FromText 用上传的文本构造扫描
func FromText(label, content string) Blob {
	return Blob{
		Label:   sanitizeLabel(label),
		Content: strings.ToValidUTF8(content, string(utf8.RuneError)),
		ModTime: time.Now(),
	}
}

// Save 把扩展推送的文本保存为 <label>.txt
func Save(dir, label, content string) (Blob, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Blob{}, fmt.Errorf("create scan dir: %w", err)
	}
	label = sanitizeLabel(label)
	path := filepath.Join(dir, label+".txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Blob{}, fmt.Errorf("write scan file: %w", err)
	}
	return ReadFile(path)
}

func labelOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var unsafeLabel = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeLabel(label string) string {
	label = strings.TrimSuffix(strings.TrimSpace(label), ".txt")
	label = strings.Trim(unsafeLabel.ReplaceAllString(label, "_"), "._")
	if label == "" {
		label = "scan_jobs_" + time.Now().Format("20060102_150405")
	}
	return label
}
