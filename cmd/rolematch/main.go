package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/YKarmar/RoleMatch/internal/analyzer"
	"github.com/YKarmar/RoleMatch/internal/api"
	"github.com/YKarmar/RoleMatch/internal/client"
	"github.com/YKarmar/RoleMatch/internal/config"
	"github.com/YKarmar/RoleMatch/internal/filter"
	"github.com/YKarmar/RoleMatch/internal/guard"
	"github.com/YKarmar/RoleMatch/internal/scan"
	"github.com/YKarmar/RoleMatch/internal/session"
	"github.com/YKarmar/RoleMatch/internal/tracker"
	"github.com/YKarmar/RoleMatch/internal/types"
)

func usage() {
	fmt.Fprintf(os.Stderr, `用法: rolematch [-config configs/config.yaml] [-v] <命令>

命令:
  serve              启动本地服务（浏览器扩展和审阅页面）
  analyze [-file f]  分析扫描文件并列出可投递的职位（默认最新扫描）
  stats              显示投递统计
`)
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	verbose := flag.Bool("v", false, "输出调试日志")
	flag.Usage = usage
	flag.Parse()

	// .env 不存在时忽略
	_ = godotenv.Load()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "serve":
		err = runServe(ctx, cfg)
	case "analyze":
		err = runAnalyze(ctx, cfg, args[1:])
	case "stats":
		err = runStats(cfg)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s 失败: %v", args[0], err)
	}
}

// 配置文件不存在时使用默认值
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("config file not found, using defaults", "path", path)
		return config.Default(), nil
	}
	return cfg, err
}

func newExtractor(ctx context.Context, cfg *config.Config) (*analyzer.Extractor, error) {
	llmConfig := analyzer.LLMConfig{
		APIBase:   cfg.LLM.APIBase,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
	}
	if llmConfig.APIKey == "" {
		if cfg.LLM.Provider == "openai" {
			llmConfig.APIKey = os.Getenv("OPENAI_API_KEY")
		} else {
			llmConfig.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	gen, err := analyzer.NewGenerator(ctx, cfg.LLM.Provider, llmConfig)
	if err != nil {
		return nil, err
	}
	return analyzer.NewExtractor(gen, cfg.Extract.Country), nil
}

func newGuard(ctx context.Context, cfg *config.Config, l *tracker.Log) *guard.Guard {
	var auth client.Authenticator = client.PasswordAuth{}
	if cfg.OAuthEnabled() {
		auth = client.NewOAuthAuth(ctx, client.OAuthConfig{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RefreshToken: cfg.OAuth.RefreshToken,
			TokenURL:     cfg.OAuth.TokenURL,
		})
	}

	transport := client.NewSMTPClient(client.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Security: cfg.SMTP.Security,
	}, auth)

	var opts []guard.Option
	if cfg.Archive.Enabled {
		opts = append(opts, guard.WithArchiver(client.NewIMAPArchiver(client.IMAPConfig{
			Host:   cfg.Archive.IMAPHost,
			Folder: cfg.Archive.Folder,
		}, auth)))
	}
	return guard.New(l, transport, opts...)
}

func runServe(ctx context.Context, cfg *config.Config) error {
	l, err := tracker.Open(cfg.Log.File)
	if err != nil {
		return err
	}
	extractor, err := newExtractor(ctx, cfg)
	if err != nil {
		return err
	}

	sess := session.New(extractor, l, newGuard(ctx, cfg, l))

	// 凭据可以从环境变量预置，只保存在内存中
	sender := os.Getenv("SENDER_EMAIL")
	if sender == "" {
		sender = cfg.SMTP.Sender
	}
	if pw := os.Getenv("APP_PASSWORD"); sender != "" && pw != "" {
		sess.SetCredentials(client.Credentials{Username: sender, AppPassword: strings.ReplaceAll(pw, " ", "")})
	}
	if cfg.Resume.Path != "" {
		resume, err := session.ResumeFromFile(cfg.Resume.Path)
		if err != nil {
			slog.Warn("resume not loaded", "path", cfg.Resume.Path, "err", err)
		} else {
			sess.SetResume(resume)
		}
	}

	scans := scan.NewDirSource(cfg.Scan.Dirs...)
	if b, err := scans.Latest(ctx); err == nil && b.Fresh(time.Now(), scan.AutoLoadWindow) {
		sess.LoadScan(b)
	}

	fmt.Printf("RoleMatch 已启动: http://%s\n", cfg.Server.Addr)
	srv := api.NewServer(sess, l, scans, api.Options{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StagingDir:     cfg.Scan.StagingDir,
	})
	return srv.Run(ctx)
}

func runAnalyze(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	file := fs.String("file", "", "扫描文件路径（默认最新扫描）")
	style := fs.String("style", "", "邮件风格参考")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var blob scan.Blob
	var err error
	if *file != "" {
		blob, err = scan.ReadFile(*file)
	} else {
		blob, err = scan.NewDirSource(cfg.Scan.Dirs...).Latest(ctx)
	}
	if err != nil {
		return err
	}
	fmt.Printf("正在分析 %s（%d 字符）...\n", blob.Label, len(blob.Content))

	l, err := tracker.Open(cfg.Log.File)
	if err != nil {
		return err
	}
	extractor, err := newExtractor(ctx, cfg)
	if err != nil {
		return err
	}

	jobs, err := extractor.Extract(ctx, blob.Content, *style)
	if err != nil {
		return err
	}
	sent, err := l.SentSet()
	if err != nil {
		return err
	}
	res := filter.Partition(jobs, sent)

	fmt.Printf("\n共抽取 %d 个职位，可投递 %d 个（无效邮箱 %d，已投递 %d）\n\n",
		len(jobs), len(res.Eligible), res.SkippedInvalid, res.SkippedSent)
	printJobs(os.Stdout, res.Eligible)
	return nil
}

func printJobs(w io.Writer, jobs []types.JobRecord) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "没有可投递的职位")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\t职位\t公司\t类型\t地点\t邮箱")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", j.JobID, j.JobTitle, j.Company, j.JobType, j.Location, j.ApplyEmail)
	}
	tw.Flush()
}

func runStats(cfg *config.Config) error {
	l, err := tracker.Open(cfg.Log.File)
	if err != nil {
		return err
	}
	entries, err := l.Load()
	if err != nil {
		return err
	}
	tracker.PrintStatistics(os.Stdout, entries)
	return nil
}
