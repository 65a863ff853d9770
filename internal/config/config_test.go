package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/YKarmar/RoleMatch/internal/config"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte("smtp:\n  sender: me@gmail.com\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.LLM.Provider != "gemini" || cfg.LLM.Model != "gemini-2.5-flash" {
		t.Errorf("llm defaults = %q/%q", cfg.LLM.Provider, cfg.LLM.Model)
	}
	if cfg.Extract.Country != "India" {
		t.Errorf("country = %q, want India", cfg.Extract.Country)
	}
	if cfg.SMTP.Host != "smtp.gmail.com:587" || cfg.SMTP.Security != "starttls" {
		t.Errorf("smtp = %q/%q", cfg.SMTP.Host, cfg.SMTP.Security)
	}
	if cfg.Log.File != "job_tracker.csv" {
		t.Errorf("log file = %q", cfg.Log.File)
	}
	if cfg.Scan.Dirs[0] != "scanned_jobs" {
		t.Errorf("first scan dir = %q, want staging dir", cfg.Scan.Dirs[0])
	}
	if cfg.Server.Addr != "127.0.0.1:8501" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("ROLEMATCH_TEST_KEY", "secret-key")
	cfg, err := config.Parse([]byte("llm:\n  api_key: ${ROLEMATCH_TEST_KEY}\n  model: ${ROLEMATCH_UNSET_VAR}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.LLM.APIKey != "secret-key" {
		t.Errorf("api_key = %q, want expanded value", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "${ROLEMATCH_UNSET_VAR}" {
		t.Errorf("model = %q, unset variables must be kept verbatim", cfg.LLM.Model)
	}
}

func TestParse_ArchiveDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte("smtp:\n  sender: me@outlook.com\narchive:\n  enabled: true\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Archive.IMAPHost != "outlook.office365.com:993" {
		t.Errorf("imap host = %q", cfg.Archive.IMAPHost)
	}
	if cfg.Archive.Folder != "Sent Items" {
		t.Errorf("folder = %q", cfg.Archive.Folder)
	}
}

func TestParse_RejectsUnknownValues(t *testing.T) {
	for _, in := range []string{
		"llm:\n  provider: claude-local\n",
		"smtp:\n  security: ssl3\n",
	} {
		_, err := config.Parse([]byte(in))
		var ce *config.ConfigError
		if !errors.As(err, &ce) {
			t.Errorf("Parse(%q) error = %v, want *ConfigError", in, err)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load missing file error = %v, want os.ErrNotExist", err)
	}
}

func TestInferSMTPHost(t *testing.T) {
	cases := map[string]string{
		"a@gmail.com":   "smtp.gmail.com:587",
		"a@hotmail.com": "smtp.office365.com:587",
		"a@yahoo.co.in": "smtp.mail.yahoo.com:587",
		"a@company.io":  "",
	}
	for in, want := range cases {
		if got := config.InferSMTPHost(in); got != want {
			t.Errorf("InferSMTPHost(%q) = %q, want %q", in, got, want)
		}
	}
}
