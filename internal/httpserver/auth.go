package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	contextKeyPrincipal = "auth_principal"
	bearerPrefix        = "Bearer "
	roleAdmin           = "admin"
)

// Principal is the authenticated caller resolved by the external auth
// layer. The core only uses it for ownership and role checks.
type Principal struct {
	UserID string
	Roles  []string
}

// IsAdmin reports whether the principal carries the admin role.
func (principal Principal) IsAdmin() bool {
	for _, role := range principal.Roles {
		if role == roleAdmin {
			return true
		}
	}
	return false
}

func authMiddleware(signingKey []byte, issuer string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing bearer token"))
			return
		}
		principal, err := parsePrincipal(strings.TrimPrefix(header, bearerPrefix), signingKey, issuer)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid token"))
			return
		}
		ctx.Set(contextKeyPrincipal, principal)
		ctx.Next()
	}
}

func parsePrincipal(tokenString string, signingKey []byte, issuer string) (Principal, error) {
	token, err := jwt.Parse(tokenString,
		func(token *jwt.Token) (interface{}, error) { return signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return Principal{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, fmt.Errorf("unexpected claims type")
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return Principal{}, fmt.Errorf("missing subject claim")
	}
	return Principal{UserID: subject, Roles: rolesClaim(claims)}, nil
}

func rolesClaim(claims jwt.MapClaims) []string {
	raw, ok := claims["roles"].([]interface{})
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(raw))
	for _, value := range raw {
		if role, ok := value.(string); ok {
			roles = append(roles, role)
		}
	}
	return roles
}

func getPrincipal(ctx *gin.Context) (Principal, bool) {
	value, exists := ctx.Get(contextKeyPrincipal)
	if !exists {
		return Principal{}, false
	}
	principal, ok := value.(Principal)
	return principal, ok
}

func requireAdmin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		principal, ok := getPrincipal(ctx)
		if !ok || !principal.IsAdmin() {
			ctx.AbortWithStatusJSON(http.StatusForbidden, errorResponse("forbidden", "admin role required"))
			return
		}
		ctx.Next()
	}
}
