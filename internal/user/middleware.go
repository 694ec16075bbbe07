package user

import (
	"context"
	"net/http"

	"github.com/safebite/server/internal/auth"
	"github.com/safebite/server/internal/logger"
	"github.com/safebite/server/internal/logging"
	"github.com/safebite/server/internal/models"
)

type dbContextKey string

const (
	dbUserContextKey dbContextKey = "db_user"

	timezoneHeader = "X-Device-Timezone"
)

func GetDBUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(dbUserContextKey).(*models.User)
	return user, ok
}

func ContextWithDBUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, dbUserContextKey, u)
}

// UserMiddleware resolves the authenticated identity into our user record,
// provisioning it (trial anchor, billing customer) on first sight. The
// device timezone header is only honored at that first provisioning.
func UserMiddleware(userService Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authUser, ok := auth.GetUserFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized: User not found in context", http.StatusUnauthorized)
				return
			}

			dbUser, err := userService.GetOrCreate(
				r.Context(),
				authUser.ID,
				authUser.Email,
				authUser.FirstName,
				authUser.LastName,
				r.Header.Get(timezoneHeader),
			)
			if err != nil {
				logger.Log.Error("failed to get or create user", "error", err, "user_id", authUser.ID)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			logging.EnrichUser(r.Context(), dbUser.ID)

			next.ServeHTTP(w, r.WithContext(ContextWithDBUser(r.Context(), dbUser)))
		})
	}
}
