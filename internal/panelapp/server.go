package panelapp

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/despacho-tools/despachosuite/internal/dispatch"
	"github.com/despacho-tools/despachosuite/internal/envutil"
	"github.com/despacho-tools/despachosuite/internal/export"
	"github.com/despacho-tools/despachosuite/internal/ingest"
	"github.com/despacho-tools/despachosuite/internal/middleware"
	"github.com/despacho-tools/despachosuite/internal/security"
)

const (
	sessionCookieName = "despacho_session"
	shiftDateLayout   = "2006-01-02"
	maxUploadBytes    = 8 << 20
)

type Config struct {
	Addr         string
	PasswordHash string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultConfigFromEnv() Config {
	return Config{
		Addr:         envutil.OrDefault("PANEL_ADDR", ":4000"),
		PasswordHash: envutil.OrDefault("PANEL_PASSWORD_HASH", ""),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

//go:embed templates/panel.html templates/login.html assets/app.css
var templatesFS embed.FS

type recordView struct {
	When    string
	UTC     string
	Company string
	Percent int
}

type pageData struct {
	Error     string
	Success   string
	ShiftDate string
	Rules     string
	HasShift  bool
	Records   []recordView
	Count     int
}

// panelSession is the per-browser state: the dispatch session carrying the
// day-rollover accumulator, plus the records parsed so far.
type panelSession struct {
	authed    bool
	shiftDate string
	rulesText string
	parser    *dispatch.Session
	records   []dispatch.Record
}

type server struct {
	passwordHash string
	panelTmpl    *template.Template
	loginTmpl    *template.Template

	mu       sync.Mutex
	sessions map[string]*panelSession
}

func newServer(cfg Config) *server {
	return &server{
		passwordHash: cfg.PasswordHash,
		panelTmpl:    template.Must(template.ParseFS(templatesFS, "templates/panel.html")),
		loginTmpl:    template.Must(template.ParseFS(templatesFS, "templates/login.html")),
		sessions:     map[string]*panelSession{},
	}
}

func Run(ctx context.Context, cfg Config) error {
	s := newServer(cfg)

	csp := strings.Join([]string{
		"default-src 'self'",
		"style-src 'self'",
		"img-src 'self' data:",
		"frame-ancestors 'none'",
	}, "; ")

	handler := middleware.Chain(
		s.routes(),
		middleware.RequestLog(),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{ContentSecurityPolicy: csp}),
	)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("panel listening on http://localhost%s", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.panelRoute)
	mux.HandleFunc("/login", s.login)
	mux.HandleFunc("/shift", s.setShift)
	mux.HandleFunc("/records", s.addRecords)
	mux.HandleFunc("/records/upload", s.uploadRecords)
	mux.HandleFunc("/reset", s.reset)
	mux.HandleFunc("/export/csv", s.exportHandler("csv"))
	mux.HandleFunc("/export/csv.xz", s.exportHandler("csv.xz"))
	mux.HandleFunc("/export/xlsx", s.exportHandler("xlsx"))
	mux.HandleFunc("/assets/app.css", s.appCSSFile)
	return mux
}

// session returns the panel session for the request, creating one (and
// setting the cookie) on first contact.
func (s *server) session(w http.ResponseWriter, r *http.Request) (*panelSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if sess, ok := s.sessions[cookie.Value]; ok {
			return sess, nil
		}
	}

	token, err := security.Token()
	if err != nil {
		return nil, err
	}
	sess := &panelSession{}
	s.sessions[token] = sess
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, nil
}

func (s *server) needsLogin(sess *panelSession) bool {
	if s.passwordHash == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !sess.authed
}

func (s *server) panelRoute(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, err := s.session(w, r)
	if err != nil {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	if s.needsLogin(sess) {
		data := pageData{Error: r.URL.Query().Get("error")}
		if err := renderHTMLTemplate(w, s.loginTmpl, data); err != nil {
			http.Error(w, "template render failed", http.StatusInternalServerError)
			log.Printf("login template render failed: %v", err)
		}
		return
	}

	s.mu.Lock()
	data := pageData{
		Error:     r.URL.Query().Get("error"),
		Success:   r.URL.Query().Get("success"),
		ShiftDate: sess.shiftDate,
		Rules:     sess.rulesText,
		HasShift:  sess.parser != nil,
		Count:     len(sess.records),
	}
	for _, record := range sess.records {
		data.Records = append(data.Records, recordView{
			When:    record.Timestamp.Format("2006-01-02 15:04"),
			UTC:     record.AdjustedISO(),
			Company: record.Company,
			Percent: record.Percent,
		})
	}
	s.mu.Unlock()

	if err := renderHTMLTemplate(w, s.panelTmpl, data); err != nil {
		http.Error(w, "template render failed", http.StatusInternalServerError)
		log.Printf("panel template render failed: %v", err)
	}
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := s.session(w, r)
	if err != nil {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}
	if err := r.ParseForm(); err != nil {
		redirectWithError(w, r, "Invalid form submission")
		return
	}
	if s.passwordHash == "" || security.VerifyPassword(r.FormValue("password"), s.passwordHash) {
		s.mu.Lock()
		sess.authed = true
		s.mu.Unlock()
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	redirectWithError(w, r, "Invalid password")
}

func (s *server) setShift(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.postSession(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		redirectWithError(w, r, "Invalid form submission")
		return
	}

	dateText := strings.TrimSpace(r.FormValue("shift_date"))
	if dateText == "" {
		redirectWithError(w, r, "Shift date is required")
		return
	}
	shiftDate, err := time.Parse(shiftDateLayout, dateText)
	if err != nil {
		redirectWithError(w, r, "Shift date must be in YYYY-MM-DD format")
		return
	}

	rulesText := r.FormValue("rules")
	rules, err := dispatch.ParseRules([]byte(rulesText))
	if err != nil {
		redirectWithError(w, r, "Rules are not valid YAML")
		return
	}

	parser, err := dispatch.NewSession(shiftDate, rules...)
	if err != nil {
		redirectWithError(w, r, err.Error())
		return
	}

	s.mu.Lock()
	sess.shiftDate = dateText
	sess.rulesText = rulesText
	sess.parser = parser
	sess.records = nil
	s.mu.Unlock()

	http.Redirect(w, r, "/?success="+url.QueryEscape("Shift date set to "+dateText), http.StatusFound)
}

func (s *server) addRecords(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.postSession(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		redirectWithError(w, r, "Invalid form submission")
		return
	}
	s.ingestBatch(w, r, sess, func(parser *dispatch.Session) ([]dispatch.Record, error) {
		return parser.ParseBatch(r.FormValue("lines"))
	})
}

func (s *server) uploadRecords(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.postSession(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		redirectWithError(w, r, "Invalid upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		redirectWithError(w, r, "Choose a file to upload")
		return
	}
	defer file.Close()

	lines, err := ingest.ReadLines(file, header.Filename)
	if err != nil {
		redirectWithError(w, r, "Unable to read "+header.Filename+": "+err.Error())
		return
	}
	s.ingestBatch(w, r, sess, func(parser *dispatch.Session) ([]dispatch.Record, error) {
		return parser.ParseLines(lines)
	})
}

// ingestBatch runs one sequential batch against the session's parser.
// Records parsed before a failure are kept; the failure is surfaced to the
// operator as a redirect message.
func (s *server) ingestBatch(w http.ResponseWriter, r *http.Request, sess *panelSession, parse func(*dispatch.Session) ([]dispatch.Record, error)) {
	s.mu.Lock()
	parser := sess.parser
	if parser == nil {
		s.mu.Unlock()
		redirectWithError(w, r, "Set the shift date before adding records")
		return
	}

	records, err := parse(parser)
	sess.records = append(sess.records, records...)
	s.mu.Unlock()

	if err != nil {
		redirectWithError(w, r, err.Error())
		return
	}
	http.Redirect(w, r, "/?success="+url.QueryEscape(fmt.Sprintf("Added %d records", len(records))), http.StatusFound)
}

func (s *server) reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.postSession(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	sess.shiftDate = ""
	sess.rulesText = ""
	sess.parser = nil
	sess.records = nil
	s.mu.Unlock()
	http.Redirect(w, r, "/?success="+url.QueryEscape("Session cleared"), http.StatusFound)
}

func (s *server) exportHandler(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sess, err := s.session(w, r)
		if err != nil {
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}
		if s.needsLogin(sess) {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		s.mu.Lock()
		records := make([]dispatch.Record, len(sess.records))
		copy(records, sess.records)
		s.mu.Unlock()

		if len(records) == 0 {
			redirectWithError(w, r, "No records to export")
			return
		}

		var buf bytes.Buffer
		switch format {
		case "csv":
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			err = export.WriteDelimited(&buf, records, ';')
		case "csv.xz":
			w.Header().Set("Content-Type", "application/x-xz")
			err = export.WriteDelimitedXZ(&buf, records, ';')
		case "xlsx":
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			err = export.WriteXLSX(&buf, records, export.XLSXOptions{})
		default:
			http.NotFound(w, r)
			return
		}
		if err != nil {
			log.Printf("export %s failed: %v", format, err)
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Disposition", `attachment; filename="despacho_export.`+format+`"`)
		_, _ = buf.WriteTo(w)
	}
}

func (s *server) appCSSFile(w http.ResponseWriter, r *http.Request) {
	css, err := templatesFS.ReadFile("assets/app.css")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = w.Write(css)
}

// postSession handles the shared method/auth checks for the mutating routes.
func (s *server) postSession(w http.ResponseWriter, r *http.Request) (*panelSession, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	sess, err := s.session(w, r)
	if err != nil {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return nil, false
	}
	if s.needsLogin(sess) {
		http.Redirect(w, r, "/", http.StatusFound)
		return nil, false
	}
	return sess, true
}

func redirectWithError(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, "/?error="+url.QueryEscape(message), http.StatusFound)
}

func renderHTMLTemplate(w http.ResponseWriter, tmpl *template.Template, data pageData) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}
