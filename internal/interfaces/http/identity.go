package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/procurahq/procura/internal/domain/identity"
)

// Identity assertion headers. Token verification happens upstream; by the
// time a request reaches this service the gateway has already authenticated
// the caller and stamped these headers.
const (
	HeaderUser = "X-User"
	HeaderRole = "X-Role"
)

const actorContextKey = "procura.actor"

// identityMiddleware folds the identity headers into a normalized Actor and
// stores it in the request context. Requests without a usable assertion are
// rejected before any handler runs, so handlers never see raw header strings.
func identityMiddleware(normalizer *identity.Normalizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := normalizer.NormalizeActor(c.GetHeader(HeaderUser), c.GetHeader(HeaderRole))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   err.Error(),
			})
			return
		}

		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// actorFrom retrieves the normalized caller identity set by the middleware.
func actorFrom(c *gin.Context) (identity.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return identity.Actor{}, false
	}
	actor, ok := v.(identity.Actor)
	return actor, ok
}
