package web

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"contentsort/internal/dialog"
	"contentsort/internal/i18n"
	"contentsort/internal/model"
	"contentsort/internal/mutate"
	"contentsort/internal/store"

	"github.com/starfederation/datastar-go/datastar"
	"go.uber.org/zap"
)

//go:embed templates/*.html static/*.js static/*.css
var assetsFS embed.FS

type ServerConfig struct {
	Addr     string
	Dir      string
	ActorID  string
	ReadOnly bool
	AuthMode string // none|dev

	// Sort configures the dialog (base sort order, delimiter, default query).
	Sort dialog.Settings

	// DatastarURL, when set, is loaded by the page so the form posts over SSE.
	// Without it the form falls back to a plain POST and redirect.
	DatastarURL string

	Logger *zap.Logger
}

type Server struct {
	mu   sync.RWMutex
	cfg  ServerConfig
	tmpl *template.Template
	log  *zap.Logger

	// writeMu serializes load-modify-save cycles.
	writeMu sync.Mutex
	now     func() time.Time
}

func NewServer(cfg ServerConfig) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.Dir = strings.TrimSpace(cfg.Dir)
	cfg.ActorID = strings.TrimSpace(cfg.ActorID)
	cfg.AuthMode = strings.ToLower(strings.TrimSpace(cfg.AuthMode))
	cfg.DatastarURL = strings.TrimSpace(cfg.DatastarURL)
	if cfg.Addr == "" {
		return nil, errors.New("web: addr is empty")
	}
	if cfg.Dir == "" {
		return nil, errors.New("web: dir is empty")
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = "none"
	}
	if cfg.AuthMode != "none" && cfg.AuthMode != "dev" {
		return nil, errors.New("web: invalid auth mode (expected none|dev)")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"trim": strings.TrimSpace,
		"text": renderText,
	}).ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, tmpl: tmpl, log: log.Named("web"), now: time.Now}, nil
}

func (s *Server) cfgSnapshot() ServerConfig {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()
	return cfg
}

func (s *Server) readOnly() bool {
	s.mu.RLock()
	ro := s.cfg.ReadOnly
	s.mu.RUnlock()
	return ro
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /static/sort.js", s.handleStatic("static/sort.js", "application/javascript; charset=utf-8"))
	mux.HandleFunc("GET /static/sort.css", s.handleStatic("static/sort.css", "text/css; charset=utf-8"))
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /sort", s.handleSortGet)
	mux.HandleFunc("POST /sort", s.handleSortPost)
	mux.HandleFunc("POST /login", s.handleLoginPost)
	mux.HandleFunc("POST /logout", s.handleLogoutPost)
	return s.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE responses streaming through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", s.now().Sub(start)),
		)
	})
}

func (s *Server) handleStatic(name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := assetsFS.ReadFile(name)
		if err != nil || len(b) == 0 {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type baseVM struct {
	ReadOnly    bool
	ActorID     string
	AuthMode    string
	DatastarURL string
}

func (s *Server) baseVMForRequest(r *http.Request) baseVM {
	cfg := s.cfgSnapshot()
	return baseVM{
		ReadOnly:    cfg.ReadOnly,
		ActorID:     s.actorForRequest(r),
		AuthMode:    cfg.AuthMode,
		DatastarURL: cfg.DatastarURL,
	}
}

func (s *Server) renderTemplate(name string, data any) (string, error) {
	var b strings.Builder
	if err := s.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *Server) writeHTMLTemplate(w http.ResponseWriter, name string, data any) {
	html, err := s.renderTemplate(name, data)
	if err != nil {
		s.log.Error("render template", zap.String("template", name), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, html)
}

func (s *Server) load() (store.Store, *store.DB, error) {
	st := store.Store{Dir: s.cfgSnapshot().Dir}
	db, err := st.Load()
	return st, db, err
}

type homeRow struct {
	Path     string
	Name     string
	Children int
	SortURL  string
}

type homeVM struct {
	baseVM
	Rows []homeRow
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	_, db, err := s.load()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rows := make([]homeRow, 0)
	var walk func(it *model.Item)
	walk = func(it *model.Item) {
		children := db.ChildrenOf(it.ID)
		if len(children) > 0 {
			rows = append(rows, homeRow{
				Path:     db.PathOf(it),
				Name:     db.DisplayName(it),
				Children: len(children),
				SortURL:  "/sort?" + url.Values{"id": {store.ShortID(it.ID)}}.Encode(),
			})
		}
		for _, c := range children {
			walk(c)
		}
	}
	for _, root := range db.Roots() {
		walk(root)
	}
	s.writeHTMLTemplate(w, "home.html", homeVM{baseVM: s.baseVMForRequest(r), Rows: rows})
}

type sortVM struct {
	baseVM
	View      dialog.View
	Form      url.Values
	SortOrder string
	Delimiter string
	Result    string
	Saved     string
}

func (s *Server) handleSortGet(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfgSnapshot()
	opts, err := dialog.ParseOptions(r.URL.Query(), cfg.Sort.DefaultQuery)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_, db, err := s.load()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	d := dialog.New(db, cfg.Sort, s.log)
	actorID := s.actorForRequest(r)
	if actorID == "" {
		actorID = strings.TrimSpace(db.CurrentActorID)
	}
	v, err := d.Load(opts, actorID)
	if err != nil {
		writeDialogError(w, r, err)
		return
	}
	s.writeHTMLTemplate(w, "sort.html", sortVM{
		baseVM:    s.baseVMForRequest(r),
		View:      v,
		Form:      opts.Values(),
		SortOrder: d.ShortIDs(v.Items),
		Delimiter: d.Settings().Delimiter,
		Result:    strings.TrimSpace(r.URL.Query().Get("result")),
		Saved:     i18n.T(v.Language, "sort.saved"),
	})
}

func (s *Server) handleSortPost(w http.ResponseWriter, r *http.Request) {
	if s.readOnly() {
		http.Error(w, "read-only", http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	cfg := s.cfgSnapshot()
	opts, err := dialog.ParseOptions(r.Form, cfg.Sort.DefaultQuery)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	st, db, err := s.load()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	actorID := s.actorForRequest(r)
	if actorID == "" {
		actorID = strings.TrimSpace(db.CurrentActorID)
	}
	if actorID == "" {
		http.Error(w, "missing actor (start server with --actor, set a current actor, or /login in dev auth mode)", http.StatusUnauthorized)
		return
	}
	if _, ok := db.FindActor(actorID); !ok {
		http.Error(w, "unknown actor", http.StatusForbidden)
		return
	}

	d := dialog.New(db, cfg.Sort, s.log)
	out, err := d.OnOK(r.Context(), opts, actorID, r.Form.Get(dialog.SortOrderField))
	if err != nil {
		writeDialogError(w, r, err)
		return
	}
	if out.DialogValue != "" {
		if err := st.Save(db); err != nil {
			s.log.Error("save sort order", zap.String("root", opts.ItemRef), zap.Error(err))
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		s.log.Info("sort order saved",
			zap.String("actor", actorID),
			zap.String("root", opts.ItemRef),
			zap.Int("changed", len(out.Result.Changes)),
		)
	}

	switch {
	case isDatastarRequest(r):
		v, err := d.Load(opts, actorID)
		if err != nil {
			writeDialogError(w, r, err)
			return
		}
		sse := datastar.NewSSE(w, r)
		_ = sse.PatchElements(string(v.ListHTML), datastar.WithSelector("#sort-list"), datastar.WithMode(datastar.ElementPatchModeOuter))
		_ = sse.MarshalAndPatchSignals(map[string]any{
			"dialogValue": out.DialogValue,
			"message":     out.Message,
			"sortorder":   d.ShortIDs(v.Items),
		})
	case wantsJSON(r):
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(out)
	default:
		q := opts.Values()
		q.Set("result", out.DialogValue)
		http.Redirect(w, r, "/sort?"+q.Encode(), http.StatusSeeOther)
	}
}

func (s *Server) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfgSnapshot()
	if cfg.AuthMode != "dev" {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	actorID := strings.TrimSpace(r.Form.Get("actor"))
	_, db, err := s.load()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if _, ok := db.FindActor(actorID); !ok {
		http.Error(w, "unknown actor", http.StatusForbidden)
		return
	}
	secret, err := loadOrInitSecretKey(cfg.Dir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tok, err := newSessionToken(secret, actorID, s.now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	redirectBack(w, r, "/")
}

func (s *Server) handleLogoutPost(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	redirectBack(w, r, "/")
}

func (s *Server) actorForRequest(r *http.Request) string {
	cfg := s.cfgSnapshot()
	// Fixed actor override is useful for local-only usage and automation.
	if cfg.ActorID != "" {
		return cfg.ActorID
	}
	if cfg.AuthMode != "dev" {
		return ""
	}
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	secret, err := loadOrInitSecretKey(cfg.Dir)
	if err != nil {
		return ""
	}
	sp, err := verifyToken(secret, c.Value, s.now())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(sp.Sub)
}

func writeDialogError(w http.ResponseWriter, r *http.Request, err error) {
	var nf mutate.NotFoundError
	switch {
	case errors.As(err, &nf):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, dialog.ErrMissingItem):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func isDatastarRequest(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("Datastar-Request")), "true")
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func redirectBack(w http.ResponseWriter, r *http.Request, fallback string) {
	ref := strings.TrimSpace(r.Header.Get("Referer"))
	if ref != "" {
		http.Redirect(w, r, ref, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, fallback, http.StatusSeeOther)
}
