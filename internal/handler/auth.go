package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/piecemeal/internal/apperror"
	"github.com/sakif/piecemeal/internal/auth"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/service"
)

const stateCookieName = "oauth_state"

// AuthHandler signs users in and out.
//
//	POST /api/signup                 3 = duplicate user
//	POST /api/login                  3 = invalid credentials
//	POST /api/logout
//	GET  /api/auth/google/login      redirect to Google
//	GET  /api/auth/google/callback   3 = email belongs to a password account
//
// The session token is set as an HttpOnly cookie and also returned in the
// body for clients that prefer a Bearer header.
type AuthHandler struct {
	auth         *service.AuthService
	google       *auth.GoogleProvider // nil when Google login is off
	tokenTTL     time.Duration
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(
	authService *service.AuthService,
	google *auth.GoogleProvider,
	tokenTTL time.Duration,
	secureCookie bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:         authService,
		google:       google,
		tokenTTL:     tokenTTL,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

func (h *AuthHandler) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

type signupRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// HandleSignup creates a password account and signs it in.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.auth.Signup(r.Context(), model.NewUser{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		GivenName:  req.GivenName,
		FamilyName: req.FamilyName,
	})
	if err != nil {
		writeError(w, h.logger, err, errorCode{
			match: isKind(apperror.ErrConflict), status: http.StatusConflict, code: 3,
		})
		return
	}

	h.setSession(w, res.Token)
	writeOK(w, fields{"user": res.User, "token": res.Token})
}

type loginRequest struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin accepts the account's email or username in any of login,
// username or email.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	login := req.Login
	for _, alt := range []string{req.Username, req.Email} {
		if login == "" {
			login = alt
		}
	}
	if login == "" || req.Password == "" {
		writeFail(w, http.StatusBadRequest, CodeCorruptInput, "login and password are required")
		return
	}

	res, err := h.auth.Login(r.Context(), login, req.Password)
	if err != nil {
		writeError(w, h.logger, err, errorCode{
			match:  func(err error) bool { return errors.Is(err, service.ErrInvalidCredentials) },
			status: http.StatusUnauthorized, code: 3, message: "invalid credentials",
		})
		return
	}

	h.setSession(w, res.Token)
	writeOK(w, fields{"user": res.User, "token": res.Token})
}

// HandleLogout drops the session cookie. The token itself stays valid until
// it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	clearCookie(w, auth.CookieName)
	writeOK(w, nil)
}

// HandleGoogleLogin redirects to Google's consent page. The state value is
// kept in a short-lived cookie and checked on the way back.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback finishes the OAuth flow and redirects home.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("google callback: state mismatch")
		writeFail(w, http.StatusBadRequest, CodeCorruptInput, "invalid OAuth state")
		return
	}
	clearCookie(w, stateCookieName)

	if denied := q.Get("error"); denied != "" {
		h.logger.Info("google callback: authorization denied", slog.String("error", denied))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}
	code := q.Get("code")
	if code == "" {
		writeFail(w, http.StatusBadRequest, CodeCorruptInput, "missing OAuth code")
		return
	}

	gu, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		writeFail(w, http.StatusBadGateway, CodeGeneral, "authentication failed")
		return
	}

	res, err := h.auth.LoginOrRegisterGoogle(r.Context(), gu)
	if err != nil {
		writeError(w, h.logger, err, errorCode{
			match: isKind(apperror.ErrConflict), status: http.StatusConflict, code: 3,
			message: "email is registered to a password account",
		})
		return
	}

	h.setSession(w, res.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
