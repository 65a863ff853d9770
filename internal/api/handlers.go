package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YKarmar/RoleMatch/internal/analyzer"
	"github.com/YKarmar/RoleMatch/internal/client"
	"github.com/YKarmar/RoleMatch/internal/guard"
	"github.com/YKarmar/RoleMatch/internal/scan"
	"github.com/YKarmar/RoleMatch/internal/session"
	"github.com/YKarmar/RoleMatch/internal/tracker"
	"github.com/YKarmar/RoleMatch/internal/types"
)

// 简历上传大小上限
const maxResumeBytes = 10 << 20

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type scanRequest struct {
	Label   string `json:"label"`
	Content string `json:"content" binding:"required"`
}

type scanView struct {
	Label    string    `json:"label"`
	Path     string    `json:"path,omitempty"`
	ModTime  time.Time `json:"mod_time"`
	Chars    int       `json:"chars,omitempty"`
	Fresh    bool      `json:"fresh"`
	AutoLoad bool      `json:"auto_load"`
}

type sessionRequest struct {
	SenderEmail    *string `json:"sender_email"`
	AppPassword    *string `json:"app_password"`
	StyleReference *string `json:"style_reference"`
}

type sessionView struct {
	Sender         string    `json:"sender"`
	CredentialsSet bool      `json:"credentials_set"`
	StyleSet       bool      `json:"style_set"`
	ResumeSet      bool      `json:"resume_set"`
	ResumeName     string    `json:"resume_name,omitempty"`
	Scan           *scanView `json:"scan,omitempty"`
}

type logView struct {
	Entries    []types.LogEntry       `json:"entries"`
	Total      int                    `json:"total"`
	ByStatus   map[types.Status]int   `json:"by_status"`
	Companies  []tracker.CompanyCount `json:"top_companies"`
	SentToday  int                    `json:"sent_today"`
	DailyLimit int                    `json:"daily_advice"`
}

func abort(c *gin.Context, status int, code string, err error) {
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func (s *Server) view(b scan.Blob) *scanView {
	now := s.timeNow()
	return &scanView{
		Label:    b.Label,
		Path:     b.Path,
		ModTime:  b.ModTime,
		Chars:    len(b.Content),
		Fresh:    b.Fresh(now, scan.NewScanWindow),
		AutoLoad: b.Fresh(now, scan.AutoLoadWindow),
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ── 扫描 ─────────────────────────────────────────────────────────────

// POST /api/scans 浏览器扩展推送页面文本
func (s *Server) pushScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		abort(c, http.StatusBadRequest, "empty_scan", errors.New("scan content is empty"))
		return
	}

	b, err := scan.Save(s.opts.StagingDir, req.Label, req.Content)
	if err != nil {
		abort(c, http.StatusInternalServerError, "scan_write_failed", err)
		return
	}
	s.sess.LoadScan(b)
	c.JSON(http.StatusCreated, s.view(b))
}

func (s *Server) listScans(c *gin.Context) {
	blobs := s.scans.List()
	out := make([]*scanView, 0, len(blobs))
	for _, b := range blobs {
		out = append(out, s.view(b))
	}
	c.JSON(http.StatusOK, gin.H{"scans": out})
}

func (s *Server) loadLatestScan(c *gin.Context) {
	b, err := s.sess.LoadLatest(c.Request.Context(), s.scans)
	if errors.Is(err, scan.ErrNoScan) {
		abort(c, http.StatusNotFound, "no_scan", err)
		return
	}
	if err != nil {
		abort(c, http.StatusInternalServerError, "scan_read_failed", err)
		return
	}
	c.JSON(http.StatusOK, s.view(b))
}

// ── 会话 ─────────────────────────────────────────────────────────────

func (s *Server) sessionView() sessionView {
	resume, ok := s.sess.Resume()
	v := sessionView{
		Sender:         s.sess.Sender(),
		CredentialsSet: s.sess.HasCredentials(),
		StyleSet:       strings.TrimSpace(s.sess.Style()) != "",
		ResumeSet:      ok,
	}
	if ok {
		v.ResumeName = resume.Filename
	}
	if b, ok := s.sess.Scan(); ok {
		v.Scan = s.view(b)
	}
	return v
}

func (s *Server) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.sessionView())
}

// PUT /api/session 凭据只存在内存中，响应里不回显
func (s *Server) putSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.SenderEmail != nil || req.AppPassword != nil {
		password := req.AppPassword
		if password != nil {
			// 应用专用密码常带空格分组
			p := strings.ReplaceAll(*password, " ", "")
			password = &p
		}
		s.sess.UpdateCredentials(req.SenderEmail, password)
	}
	if req.StyleReference != nil {
		s.sess.SetStyle(*req.StyleReference)
	}
	c.JSON(http.StatusOK, s.sessionView())
}

// PUT /api/session/resume multipart 字段 resume
func (s *Server) putResume(c *gin.Context) {
	fh, err := c.FormFile("resume")
	if err != nil {
		abort(c, http.StatusBadRequest, "missing_resume", err)
		return
	}
	if fh.Size > maxResumeBytes {
		abort(c, http.StatusBadRequest, "resume_too_large", errors.New("resume exceeds 10 MB"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		abort(c, http.StatusBadRequest, "missing_resume", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxResumeBytes+1))
	if err != nil {
		abort(c, http.StatusBadRequest, "missing_resume", err)
		return
	}
	if len(data) == 0 {
		abort(c, http.StatusBadRequest, "missing_resume", session.ErrMissingResume)
		return
	}

	s.sess.SetResume(client.Attachment{
		Filename:    filepath.Base(fh.Filename),
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
	c.JSON(http.StatusOK, s.sessionView())
}

// ── 分析与投递 ───────────────────────────────────────────────────────

func (s *Server) analyze(c *gin.Context) {
	sum, err := s.sess.Analyze(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, sum)
	case errors.Is(err, session.ErrNoScanLoaded):
		abort(c, http.StatusBadRequest, "no_scan_loaded", err)
	case errors.Is(err, analyzer.ErrMalformedResponse):
		abort(c, http.StatusBadGateway, "malformed_response", err)
	default:
		abort(c, http.StatusBadGateway, "extraction_failed", err)
	}
}

func (s *Server) listJobs(c *gin.Context) {
	sum, err := s.sess.Refresh()
	if err != nil {
		abort(c, http.StatusInternalServerError, "log_read_failed", err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func jobID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		abort(c, http.StatusBadRequest, "invalid_job_id", err)
		return 0, false
	}
	return id, true
}

func (s *Server) getJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	job, err := s.sess.Draft(id)
	if err != nil {
		abort(c, http.StatusNotFound, "job_not_found", err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// POST /api/jobs/:id/send 发送前由用户确认并编辑
func (s *Server) sendJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	var edit session.Edit
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&edit); err != nil && !errors.Is(err, io.EOF) {
			abort(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}

	entry, err := s.sess.Send(c.Request.Context(), id, edit)
	var lw *guard.LogWriteError
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, entry)
	case errors.Is(err, session.ErrJobNotFound):
		abort(c, http.StatusNotFound, "job_not_found", err)
	case errors.Is(err, session.ErrMissingCredentials):
		abort(c, http.StatusBadRequest, "missing_credentials", err)
	case errors.Is(err, session.ErrMissingResume):
		abort(c, http.StatusBadRequest, "missing_resume", err)
	case errors.Is(err, guard.ErrInvalidRecipient):
		abort(c, http.StatusBadRequest, "invalid_recipient", err)
	case errors.Is(err, guard.ErrDuplicateRecipient):
		abort(c, http.StatusConflict, "duplicate_recipient", err)
	case errors.Is(err, guard.ErrSendFailed):
		abort(c, http.StatusBadGateway, "send_failed", err)
	case errors.As(err, &lw):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": "log_write_failed", "entry": lw.Entry})
	default:
		abort(c, http.StatusInternalServerError, "internal", err)
	}
}

func (s *Server) getLog(c *gin.Context) {
	entries, err := s.log.Load()
	if err != nil {
		abort(c, http.StatusInternalServerError, "log_read_failed", err)
		return
	}
	st := tracker.ComputeStats(entries)
	companies := st.TopCompanies
	if companies == nil {
		companies = []tracker.CompanyCount{}
	}
	c.JSON(http.StatusOK, logView{
		Entries:    entries,
		Total:      st.Total,
		ByStatus:   st.ByStatus,
		Companies:  companies,
		SentToday:  tracker.SentOn(entries, s.timeNow()),
		DailyLimit: tracker.DailySendAdvice,
	})
}
