package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oguzcanoz/halisaha/internal/api/apiutil"
	"github.com/oguzcanoz/halisaha/internal/cognito"
	"github.com/oguzcanoz/halisaha/internal/config"
	dbq "github.com/oguzcanoz/halisaha/internal/db/queries"
	"github.com/oguzcanoz/halisaha/internal/matches"
	"github.com/oguzcanoz/halisaha/internal/ratelimit"
)

const otpSessionTTL = 10 * time.Minute

// authQueries is the slice of the store the auth flows need.
type authQueries interface {
	GetUserByID(ctx context.Context, id string) (dbq.User, error)
	GetUserByEmail(ctx context.Context, email string) (dbq.User, error)
	CreateUser(ctx context.Context, arg dbq.CreateUserParams) (dbq.User, error)
	ConfirmUserEmail(ctx context.Context, id string) error
	UpsertProfile(ctx context.Context, arg dbq.UpsertProfileParams) (dbq.Profile, error)
}

// otpClient is the Cognito surface used for email confirmation.
type otpClient interface {
	CreateUser(ctx context.Context, email string) error
	InitiateEmailOTP(ctx context.Context, email string) (string, error)
	VerifyEmailOTP(ctx context.Context, session, email, code string) error
}

var (
	appConfig *config.Config
	queries   authQueries
	otp       otpClient
	limiter   *ratelimit.Limiter
)

// pendingSignup tracks an in-flight email confirmation.
type pendingSignup struct {
	UserID    string
	Session   string
	ExpiresAt time.Time
}

var (
	pendingMu      sync.Mutex
	pendingSignups = make(map[string]pendingSignup)
)

// InitHandlers wires the auth handlers to their dependencies. The OTP
// client is optional; without it email addresses are confirmed on signup.
func InitHandlers(cfg *config.Config, q authQueries, rl *ratelimit.Limiter) {
	appConfig = cfg
	queries = q
	limiter = rl
	if cfg != nil && cfg.Auth.CognitoPoolID != "" && cfg.Auth.CognitoClientID != "" {
		client, err := cognito.NewClient(cfg.Auth.CognitoPoolID, cfg.Auth.CognitoClientID)
		if err != nil {
			log.Warn().Err(err).Msg("Cognito unavailable, confirming emails locally")
			return
		}
		otp = client
	}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type userResponse struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Username       string `json:"username,omitempty"`
	EmailConfirmed bool   `json:"emailConfirmed"`
}

func HandleSignup(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Auth queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var req signupRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if !strings.Contains(req.Email, "@") {
		apiutil.WriteError(w, http.StatusBadRequest, "valid email is required")
		return
	}
	if err := ValidatePassword(req.Password); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	username, err := matches.ValidatePlayerName(req.Username)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Username = username

	ip := ratelimit.GetClientIP(r, false)
	if limiter != nil && otp != nil {
		if res := limiter.CheckOTPSend(req.Email, ip); !res.Allowed {
			ratelimit.LogRateLimitExceeded("signup", req.Email, ip, res.Reason)
			apiutil.WriteError(w, http.StatusTooManyRequests, "too many signup attempts, try again later")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := queries.GetUserByEmail(ctx, req.Email); err == nil {
		apiutil.WriteError(w, http.StatusConflict, "an account with this email already exists")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		logger.Error().Err(err).Msg("Failed to check existing user")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to hash password")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user, err := queries.CreateUser(ctx, dbq.CreateUserParams{
		Email:        req.Email,
		PasswordHash: hash,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create user")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if _, err := queries.UpsertProfile(ctx, dbq.UpsertProfileParams{
		ID:       user.ID,
		Username: req.Username,
	}); err != nil {
		logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to create profile")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if otp == nil {
		// No verification backend configured; confirm immediately.
		if err := queries.ConfirmUserEmail(ctx, user.ID); err != nil {
			logger.Error().Err(err).Msg("Failed to confirm user email")
			apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		finishLogin(w, r, user.ID, user.Email, req.Username, true, http.StatusCreated)
		return
	}

	if err := otp.CreateUser(ctx, req.Email); err != nil && !errors.Is(err, cognito.ErrCognitoUserExists) {
		logger.Error().Err(err).Msg("Failed to provision verification user")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	session, err := otp.InitiateEmailOTP(ctx, req.Email)
	if err != nil {
		if errors.Is(err, cognito.ErrCognitoThrottled) {
			apiutil.WriteError(w, http.StatusTooManyRequests, "verification temporarily unavailable, try again later")
			return
		}
		logger.Error().Err(err).Msg("Failed to send verification code")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if limiter != nil {
		limiter.RecordOTPSend(req.Email, ip)
	}

	pendingMu.Lock()
	pendingSignups[req.Email] = pendingSignup{
		UserID:    user.ID,
		Session:   session,
		ExpiresAt: time.Now().Add(otpSessionTTL),
	}
	pendingMu.Unlock()

	logger.Info().Str("user_id", user.ID).Msg("Signup pending email confirmation")
	_ = apiutil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "confirmation_sent",
		"email":  req.Email,
	})
}

type confirmRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func HandleConfirm(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	var req confirmRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Code = strings.TrimSpace(req.Code)
	if req.Email == "" || req.Code == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "email and code are required")
		return
	}

	if otp == nil {
		apiutil.WriteError(w, http.StatusConflict, "email confirmation is not enabled")
		return
	}

	ip := ratelimit.GetClientIP(r, false)
	if limiter != nil {
		if res := limiter.CheckOTPVerify(req.Email, ip); !res.Allowed {
			ratelimit.LogRateLimitExceeded("confirm", req.Email, ip, res.Reason)
			apiutil.WriteError(w, http.StatusTooManyRequests, "too many attempts, try again later")
			return
		}
	}

	pendingMu.Lock()
	pending, ok := pendingSignups[req.Email]
	if ok && time.Now().After(pending.ExpiresAt) {
		delete(pendingSignups, req.Email)
		ok = false
	}
	pendingMu.Unlock()

	if !ok {
		apiutil.WriteError(w, http.StatusGone, "confirmation expired, sign up again")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := otp.VerifyEmailOTP(ctx, pending.Session, req.Email, req.Code); err != nil {
		if limiter != nil {
			if lockedOut := limiter.RecordOTPVerify(req.Email, ip); lockedOut {
				ratelimit.LogRateLimitExceeded("confirm", req.Email, ip, "lockout")
			}
		}
		switch {
		case errors.Is(err, cognito.ErrCognitoCodeMismatch):
			apiutil.WriteError(w, http.StatusUnauthorized, "invalid confirmation code")
		case errors.Is(err, cognito.ErrCognitoExpiredCode):
			apiutil.WriteError(w, http.StatusGone, "confirmation code expired")
		case errors.Is(err, cognito.ErrCognitoThrottled):
			apiutil.WriteError(w, http.StatusTooManyRequests, "too many attempts, try again later")
		default:
			logger.Error().Err(err).Msg("Failed to verify confirmation code")
			apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if err := queries.ConfirmUserEmail(ctx, pending.UserID); err != nil {
		logger.Error().Err(err).Msg("Failed to mark email confirmed")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if limiter != nil {
		limiter.ResetVerifyAttempts(req.Email)
	}
	pendingMu.Lock()
	delete(pendingSignups, req.Email)
	pendingMu.Unlock()

	finishLogin(w, r, pending.UserID, req.Email, "", true, http.StatusOK)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func HandleLogin(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Auth queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var req loginRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := queries.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		logger.Error().Err(err).Msg("Failed to look up user")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !VerifyPassword(user.PasswordHash, req.Password) {
		apiutil.WriteError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if !user.EmailConfirmedAt.Valid {
		apiutil.WriteError(w, http.StatusForbidden, "email address not confirmed")
		return
	}

	finishLogin(w, r, user.ID, user.Email, "", true, http.StatusOK)
}

func HandleLogout(w http.ResponseWriter, r *http.Request) {
	ClearSession(w, r)
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureCookie(),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

func HandleMe(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	user, err := UserFromRequest(w, r)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to resolve session user")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if user == nil {
		apiutil.WriteError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, userResponse{
		ID:             user.ID,
		Email:          user.Email,
		EmailConfirmed: user.EmailConfirmed,
	})
}

func finishLogin(w http.ResponseWriter, r *http.Request, userID, email, username string, confirmed bool, status int) {
	logger := log.Ctx(r.Context())

	if err := CreateSession(w, userID); err != nil {
		logger.Error().Err(err).Msg("Failed to create session")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	logger.Info().Str("user_id", userID).Msg("User signed in")
	_ = apiutil.WriteJSON(w, status, userResponse{
		ID:             userID,
		Email:          email,
		Username:       username,
		EmailConfirmed: confirmed,
	})
}
