package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/roster/internal/auth"
	"github.com/MarcoPoloResearchLab/roster/internal/session"
	"github.com/MarcoPoloResearchLab/roster/internal/signin"
	"github.com/MarcoPoloResearchLab/roster/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionContextKey = "roster_session"

	NoticeSignInFailed    = "Sign in failed, please try again."
	NoticeSignInCancelled = "Sign in was cancelled."
	NoticeUnavailable     = "Something went wrong, please try again later."
)

var (
	errMissingClaimsProvider = errors.New("claims provider dependency required")
	errMissingSessions       = errors.New("session manager dependency required")
	errMissingGate           = errors.New("signin gate dependency required")
	errMissingCallbacks      = errors.New("callback handler dependency required")
	errMissingUserLister     = errors.New("user lister dependency required")
)

// ClaimsProvider starts the provider redirect and turns a callback code into claims.
type ClaimsProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (auth.Claims, error)
}

type UserLister interface {
	ListAll(ctx context.Context) ([]users.User, error)
}

// DatabasePinger is satisfied by *sql.DB.
type DatabasePinger interface {
	PingContext(ctx context.Context) error
}

type Dependencies struct {
	Provider       ClaimsProvider
	Sessions       *session.Manager
	Gate           *signin.Gate
	Callbacks      *signin.CallbackHandler
	Users          UserLister
	Database       DatabasePinger
	AllowedOrigins []string
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Provider == nil {
		return nil, errMissingClaimsProvider
	}
	if deps.Sessions == nil {
		return nil, errMissingSessions
	}
	if deps.Gate == nil {
		return nil, errMissingGate
	}
	if deps.Callbacks == nil {
		return nil, errMissingCallbacks
	}
	if deps.Users == nil {
		return nil, errMissingUserLister
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	if len(deps.AllowedOrigins) > 0 {
		router.Use(corsMiddleware(deps.AllowedOrigins))
	}
	router.SetHTMLTemplate(templates)

	handler := &httpHandler{
		provider:  deps.Provider,
		sessions:  deps.Sessions,
		gate:      deps.Gate,
		callbacks: deps.Callbacks,
		users:     deps.Users,
		database:  deps.Database,
		logger:    logger,
	}

	router.GET("/healthz", handler.handleHealth)

	browser := router.Group("/")
	browser.Use(handler.loadSession)
	browser.GET(signin.HomePath, handler.handleIndex)
	browser.GET("/auth/github", handler.handleLogin)
	browser.GET("/auth/github/callback", handler.handleCallback)
	browser.GET("/auth/callback", handler.handleCallback)
	browser.GET("/sign_out", handler.handleSignOut)

	protected := browser.Group("/")
	protected.Use(handler.requireAuthenticated)
	protected.GET(signin.UsersPath, handler.handleUsers)

	return router, nil
}

type httpHandler struct {
	provider  ClaimsProvider
	sessions  *session.Manager
	gate      *signin.Gate
	callbacks *signin.CallbackHandler
	users     UserLister
	database  DatabasePinger
	logger    *zap.Logger
}

type indexView struct {
	Notice string
	User   *users.User
}

type usersView struct {
	Notice string
	User   *users.User
	Users  []users.User
}

func (h *httpHandler) handleIndex(c *gin.Context) {
	state := h.session(c)
	current, err := h.gate.CurrentUser(c.Request.Context(), state)
	if err != nil {
		h.logger.Error("failed to resolve current user", zap.Error(err))
	}
	view := indexView{Notice: state.TakeNotice(), User: current}
	if !h.save(c, state) {
		return
	}
	c.HTML(http.StatusOK, "index.tmpl", view)
}

func (h *httpHandler) handleUsers(c *gin.Context) {
	state := h.session(c)
	listing, err := h.users.ListAll(c.Request.Context())
	if err != nil {
		h.fail(c, state, "failed to list users", err)
		return
	}
	current, err := h.gate.CurrentUser(c.Request.Context(), state)
	if err != nil {
		h.fail(c, state, "failed to resolve current user", err)
		return
	}
	view := usersView{Notice: state.TakeNotice(), User: current, Users: listing}
	if !h.save(c, state) {
		return
	}
	c.HTML(http.StatusOK, "users.tmpl", view)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	nonce := auth.NewState()
	auth.WriteStateCookie(c.Writer, nonce, h.sessions.Secure())
	c.Redirect(http.StatusFound, h.provider.AuthURL(nonce))
}

func (h *httpHandler) handleCallback(c *gin.Context) {
	state := h.session(c)
	if !auth.ConsumeState(c.Writer, c.Request, h.sessions.Secure()) {
		h.logger.Warn("oauth state mismatch", zap.String("path", c.Request.URL.Path))
		h.follow(c, state, signin.Redirect(signin.HomePath, NoticeSignInFailed))
		return
	}
	if providerErr := strings.TrimSpace(c.Query("error")); providerErr != "" {
		h.logger.Info("provider sign in declined", zap.String("error", providerErr))
		h.follow(c, state, signin.Redirect(signin.HomePath, NoticeSignInCancelled))
		return
	}

	claims, err := h.provider.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.logger.Warn("provider code exchange failed", zap.Error(err))
		h.follow(c, state, signin.Redirect(signin.HomePath, NoticeSignInFailed))
		return
	}

	outcome, err := h.callbacks.HandleCallback(c.Request.Context(), claims, state)
	if err != nil {
		h.fail(c, state, "failed to complete sign in", err)
		return
	}
	h.follow(c, state, outcome)
}

func (h *httpHandler) handleSignOut(c *gin.Context) {
	state := h.session(c)
	h.follow(c, state, h.callbacks.SignOut(state))
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	if h.database != nil {
		if err := h.database.PingContext(c.Request.Context()); err != nil {
			h.logger.Error("database ping failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) loadSession(c *gin.Context) {
	c.Set(sessionContextKey, h.sessions.Load(c.Request))
	c.Next()
}

func (h *httpHandler) requireAuthenticated(c *gin.Context) {
	state := h.session(c)
	outcome, err := h.gate.RequireAuthenticated(c.Request.Context(), state)
	if err != nil {
		h.fail(c, state, "failed to check session user", err)
		c.Abort()
		return
	}
	if !outcome.Proceeds() {
		h.follow(c, state, outcome)
		c.Abort()
		return
	}
	c.Next()
}

func (h *httpHandler) session(c *gin.Context) *session.Session {
	if value, ok := c.Get(sessionContextKey); ok {
		if state, ok := value.(*session.Session); ok {
			return state
		}
	}
	state := h.sessions.Load(c.Request)
	c.Set(sessionContextKey, state)
	return state
}

// follow applies an outcome: continue, or flash the notice and redirect.
func (h *httpHandler) follow(c *gin.Context, state *session.Session, outcome signin.Outcome) {
	if outcome.Proceeds() {
		return
	}
	state.Flash(outcome.Notice)
	if !h.save(c, state) {
		return
	}
	c.Redirect(http.StatusFound, outcome.Target)
}

func (h *httpHandler) fail(c *gin.Context, state *session.Session, message string, err error) {
	h.logger.Error(message, zap.Error(err))
	h.follow(c, state, signin.Redirect(signin.HomePath, NoticeUnavailable))
}

func (h *httpHandler) save(c *gin.Context, state *session.Session) bool {
	if err := h.sessions.Save(c.Writer, state); err != nil {
		h.logger.Error("failed to save session", zap.Error(err))
		c.String(http.StatusInternalServerError, "internal server error")
		return false
	}
	return true
}
