package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	initdata "github.com/telegram-mini-apps/init-data-golang"
	"imagecaster/internal/models"
)

// UserContextKey is the key for the admin in the request context.
const UserContextKey = models.UserContextKey

// AdminAllowed reports whether a Telegram user may use the admin API.
type AdminAllowed func(telegramID int64) bool

// Auth validates Telegram Mini App initData and admits allowlisted admins.
type Auth struct {
	botToken string
	allowed  AdminAllowed
	maxAge   time.Duration
	logger   zerolog.Logger
}

// NewAuth builds the middleware. A zero maxAge accepts initData of any age.
func NewAuth(botToken string, allowed AdminAllowed, maxAge time.Duration, logger zerolog.Logger) *Auth {
	return &Auth{botToken: botToken, allowed: allowed, maxAge: maxAge, logger: logger}
}

// AdminFromContext returns the authenticated admin, if any.
func AdminFromContext(ctx context.Context) (*models.Admin, bool) {
	admin, ok := ctx.Value(UserContextKey).(*models.Admin)
	return admin, ok
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "tma" {
			http.Error(w, "Authorization header format must be 'tma <initData>'", http.StatusUnauthorized)
			return
		}

		if a.botToken == "" {
			a.logger.Error().Msg("TELEGRAM_BOT_TOKEN is not set")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		initData := parts[1]
		if err := initdata.Validate(initData, a.botToken, a.maxAge); err != nil {
			a.logger.Warn().Err(err).Msg("Invalid init data")
			http.Error(w, "Invalid init data", http.StatusUnauthorized)
			return
		}

		data, err := initdata.Parse(initData)
		if err != nil {
			a.logger.Warn().Err(err).Msg("Error parsing init data")
			http.Error(w, "Error parsing init data", http.StatusBadRequest)
			return
		}

		if a.allowed == nil || !a.allowed(data.User.ID) {
			a.logger.Warn().Int64("telegram_id", data.User.ID).Msg("Rejected non-admin user")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		admin := &models.Admin{TelegramID: data.User.ID, Username: data.User.Username}
		ctx := context.WithValue(r.Context(), UserContextKey, admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
