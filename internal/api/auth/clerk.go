package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/clerk/clerk-sdk-go/v2/user"
	"github.com/rs/zerolog/log"

	"github.com/oguzcanoz/halisaha/internal/api/apiutil"
	dbq "github.com/oguzcanoz/halisaha/internal/db/queries"
	"github.com/oguzcanoz/halisaha/internal/matches"
)

// clerkInitialized indicates whether the Clerk SDK has been initialized
var clerkInitialized bool

// InitClerk initializes Clerk SDK with the secret key
func InitClerk(secretKey string) {
	if secretKey == "" {
		log.Warn().Msg("Clerk secret key not configured")
		return
	}
	clerk.SetKey(secretKey)
	clerkInitialized = true
	log.Info().Msg("Clerk SDK initialized")
}

// HandleClerkCallback handles the redirect after Google sign-in through Clerk.
// It validates the Clerk session, provisions a local account if needed, and
// creates a local session.
func HandleClerkCallback(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if !clerkInitialized {
		logger.Error().Msg("Clerk not configured")
		apiutil.WriteError(w, http.StatusServiceUnavailable, "authentication service not available")
		return
	}

	claims, ok := clerk.SessionClaimsFromContext(r.Context())
	if !ok {
		logger.Warn().Msg("No Clerk session claims in context")
		apiutil.WriteError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	clerkUser, err := user.Get(r.Context(), claims.Subject)
	if err != nil {
		logger.Error().Err(err).Str("clerk_user_id", claims.Subject).Msg("Failed to get Clerk user")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to verify user")
		return
	}

	email := primaryEmail(clerkUser)
	if email == "" {
		logger.Warn().Str("clerk_user_id", claims.Subject).Msg("Clerk user has no email address")
		apiutil.WriteError(w, http.StatusForbidden, "a verified email address is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	localUser, err := queries.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Error().Err(err).Msg("Failed to look up local user")
			apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		localUser, err = provisionOAuthUser(ctx, email, clerkUser)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to provision local user")
			apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		logger.Info().Str("user_id", localUser.ID).Msg("Provisioned local account from Clerk")
	}

	finishLogin(w, r, localUser.ID, localUser.Email, "", true, http.StatusOK)
}

func primaryEmail(clerkUser *clerk.User) string {
	if clerkUser.PrimaryEmailAddressID != nil {
		for _, email := range clerkUser.EmailAddresses {
			if email.ID == *clerkUser.PrimaryEmailAddressID {
				return strings.ToLower(email.EmailAddress)
			}
		}
	}
	if len(clerkUser.EmailAddresses) > 0 {
		return strings.ToLower(clerkUser.EmailAddresses[0].EmailAddress)
	}
	return ""
}

// provisionOAuthUser creates a local user and profile for a Clerk-verified
// identity. The password is random; these accounts sign in through Clerk.
func provisionOAuthUser(ctx context.Context, email string, clerkUser *clerk.User) (dbq.User, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return dbq.User{}, err
	}
	hash, err := HashPassword(base64.RawURLEncoding.EncodeToString(secret))
	if err != nil {
		return dbq.User{}, err
	}

	localUser, err := queries.CreateUser(ctx, dbq.CreateUserParams{
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return dbq.User{}, err
	}

	// Clerk already verified the address.
	if err := queries.ConfirmUserEmail(ctx, localUser.ID); err != nil {
		return dbq.User{}, err
	}

	username := oauthUsername(email, clerkUser)
	if _, err := queries.UpsertProfile(ctx, dbq.UpsertProfileParams{
		ID:       localUser.ID,
		Username: username,
	}); err != nil {
		return dbq.User{}, err
	}

	return localUser, nil
}

func oauthUsername(email string, clerkUser *clerk.User) string {
	var candidate string
	if clerkUser.FirstName != nil && *clerkUser.FirstName != "" {
		candidate = *clerkUser.FirstName
		if clerkUser.LastName != nil && *clerkUser.LastName != "" {
			candidate += " " + *clerkUser.LastName
		}
	} else if at := strings.Index(email, "@"); at > 0 {
		candidate = email[:at]
	}

	clean, err := matches.ValidatePlayerName(candidate)
	if err != nil {
		clean, err = matches.ValidatePlayerName("player " + candidate)
		if err != nil {
			clean = "player"
		}
	}
	return clean
}

// WithClerkSession is middleware that validates Clerk session tokens
// and adds session claims to the request context
func WithClerkSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !clerkInitialized {
			next.ServeHTTP(w, r)
			return
		}

		sessionToken, err := r.Cookie("__session")
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := jwt.Verify(r.Context(), &jwt.VerifyParams{
			Token: sessionToken.Value,
		})
		if err != nil {
			log.Ctx(r.Context()).Debug().Err(err).Msg("Invalid Clerk session token")
			next.ServeHTTP(w, r)
			return
		}

		ctx := clerk.ContextWithSessionClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
