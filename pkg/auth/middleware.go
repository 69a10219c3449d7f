package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// IdentityKey is where the middleware stores the resolved user id on the
// request context.
const IdentityKey = "userId"

// Middleware resolves "Authorization: Bearer <token>" to a user id and aborts
// with 401 otherwise. Handlers downstream read the id via gctx.GetString.
func Middleware(issuer *TokenIssuer) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		scheme, token, found := strings.Cut(gctx.GetHeader("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			gctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
			return
		}

		userId, err := issuer.Verify(token)
		if err != nil {
			log.Ctx(gctx.Request.Context()).Debug().Err(err).Msg("token rejected")
			gctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})

			return
		}

		gctx.Set(IdentityKey, userId)
		gctx.Next()
	}
}
