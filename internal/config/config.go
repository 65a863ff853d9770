package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider  string `yaml:"provider"` // gemini | openai
		APIBase   string `yaml:"api_base"`
		APIKey    string `yaml:"api_key"`
		Model     string `yaml:"model"`
		MaxTokens int    `yaml:"max_tokens"`
	} `yaml:"llm"`
	Extract struct {
		Country string `yaml:"country"`
	} `yaml:"extract"`
	SMTP struct {
		Host     string `yaml:"host"`
		Security string `yaml:"security"` // starttls | tls | none
		Sender   string `yaml:"sender"`
		Provider string `yaml:"provider"`
	} `yaml:"smtp"`
	OAuth struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RefreshToken string `yaml:"refresh_token"`
		TokenURL     string `yaml:"token_url"`
	} `yaml:"oauth"`
	Archive struct {
		Enabled  bool   `yaml:"enabled"`
		IMAPHost string `yaml:"imap_host"`
		Folder   string `yaml:"folder"`
	} `yaml:"archive"`
	Log struct {
		File string `yaml:"file"`
	} `yaml:"log"`
	Scan struct {
		Dirs       []string `yaml:"dirs"`
		StagingDir string   `yaml:"staging_dir"`
	} `yaml:"scan"`
	Server struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Resume struct {
		Path string `yaml:"path"`
	} `yaml:"resume"`
}

// ConfigError 表示配置项错误
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

// Load 加载配置文件并替换环境变量
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse 解析配置内容并填充默认值
func Parse(b []byte) (*Config, error) {
	// 替换环境变量 ${VAR_NAME} 格式
	content := expandEnvVars(string(b))

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回只有默认值的配置（无配置文件时使用）
func Default() *Config {
	var cfg Config
	_ = cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() error {
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	switch cfg.LLM.Provider {
	case "":
		cfg.LLM.Provider = "gemini"
	case "gemini", "openai":
	default:
		return &ConfigError{Field: "llm.provider", Message: fmt.Sprintf("unsupported provider %q", cfg.LLM.Provider)}
	}
	if cfg.LLM.Model == "" {
		if cfg.LLM.Provider == "gemini" {
			cfg.LLM.Model = "gemini-2.5-flash"
		} else {
			cfg.LLM.Model = "gpt-4o-mini"
		}
	}
	if cfg.LLM.Provider == "openai" && cfg.LLM.APIBase == "" {
		cfg.LLM.APIBase = "https://api.openai.com/v1"
	}
	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = 8192
	}

	if cfg.Extract.Country == "" {
		cfg.Extract.Country = "India"
	}

	cfg.SMTP.Security = strings.ToLower(strings.TrimSpace(cfg.SMTP.Security))
	switch cfg.SMTP.Security {
	case "":
		cfg.SMTP.Security = "starttls"
	case "starttls", "tls", "none":
	default:
		return &ConfigError{Field: "smtp.security", Message: fmt.Sprintf("unsupported mode %q", cfg.SMTP.Security)}
	}
	if cfg.SMTP.Provider == "" && cfg.SMTP.Sender != "" {
		cfg.SMTP.Provider = InferEmailProvider(cfg.SMTP.Sender)
	}
	if cfg.SMTP.Host == "" && cfg.SMTP.Sender != "" {
		cfg.SMTP.Host = InferSMTPHost(cfg.SMTP.Sender)
	}

	if cfg.Archive.Enabled {
		if cfg.Archive.IMAPHost == "" {
			cfg.Archive.IMAPHost = InferIMAPHost(cfg.SMTP.Sender)
		}
		if cfg.Archive.Folder == "" {
			cfg.Archive.Folder = SentFolder(cfg.SMTP.Provider)
		}
	}

	// 默认日志文件
	if cfg.Log.File == "" {
		cfg.Log.File = "job_tracker.csv"
	}

	if cfg.Scan.StagingDir == "" {
		cfg.Scan.StagingDir = "scanned_jobs"
	}
	if len(cfg.Scan.Dirs) == 0 {
		cfg.Scan.Dirs = DefaultScanDirs(cfg.Scan.StagingDir)
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:8501"
	}
	return nil
}

// OAuthEnabled 是否配置了 OAuth 发信
func (cfg *Config) OAuthEnabled() bool {
	return cfg.OAuth.ClientID != "" && cfg.OAuth.RefreshToken != ""
}

// expandEnvVars 替换 ${VAR_NAME} 格式的环境变量
func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1] // 去掉 ${ 和 }
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return match // 如果环境变量不存在，保持原样
	})
}

// InferEmailProvider 根据邮箱地址推断提供商
func InferEmailProvider(email string) string {
	email = strings.ToLower(email)

	if strings.HasSuffix(email, "@gmail.com") || strings.HasSuffix(email, "@googlemail.com") {
		return "gmail"
	}
	if strings.HasSuffix(email, "@outlook.com") || strings.HasSuffix(email, "@hotmail.com") || strings.HasSuffix(email, "@live.com") {
		return "outlook"
	}
	if strings.HasSuffix(email, "@yahoo.com") || strings.Contains(email, "@yahoo.co.") {
		return "yahoo"
	}

	return "custom"
}

// InferSMTPHost 根据邮箱地址推断发信服务器
func InferSMTPHost(email string) string {
	switch InferEmailProvider(email) {
	case "gmail":
		return "smtp.gmail.com:587"
	case "outlook":
		return "smtp.office365.com:587"
	case "yahoo":
		return "smtp.mail.yahoo.com:587"
	default:
		return "" // 需要手动配置
	}
}

// InferIMAPHost 根据邮箱地址推断IMAP主机（用于归档已发送邮件）
func InferIMAPHost(email string) string {
	switch InferEmailProvider(email) {
	case "gmail":
		return "imap.gmail.com:993"
	case "outlook":
		return "outlook.office365.com:993"
	case "yahoo":
		return "imap.mail.yahoo.com:993"
	default:
		return ""
	}
}

// SentFolder 根据邮箱提供商返回已发送文件夹
func SentFolder(provider string) string {
	switch provider {
	case "gmail":
		return "[Gmail]/Sent Mail"
	case "outlook":
		return "Sent Items"
	default:
		return "Sent"
	}
}

// DefaultScanDirs 返回扫描文件的默认目录
func DefaultScanDirs(staging string) []string {
	dirs := []string{staging}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return dirs
	}
	downloads := filepath.Join(home, "Downloads")
	return append(dirs, filepath.Join(downloads, "scanned_jobs"), downloads)
}
