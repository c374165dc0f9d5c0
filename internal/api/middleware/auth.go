package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/config"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/directory"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"go.uber.org/zap"
)

const principalKey = "principal"

// Claims carries only the registered claims. Role and tenant come from the
// directory so a stale token cannot keep a revoked role alive.
type Claims struct {
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	secret    []byte
	parser    *jwt.Parser
	directory directory.Directory
	logger    *zap.Logger
}

func NewAuthMiddleware(cfg config.SecurityConfig, dir directory.Directory, logger *zap.Logger) *AuthMiddleware {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.ClockSkew),
	}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	if cfg.JWTAudience != "" {
		opts = append(opts, jwt.WithAudience(cfg.JWTAudience))
	}
	return &AuthMiddleware{
		secret:    []byte(cfg.JWTSecret),
		parser:    jwt.NewParser(opts...),
		directory: dir,
		logger:    logger.With(zap.String("middleware", "auth")),
	}
}

func (am *AuthMiddleware) authenticate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := am.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return am.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token subject is required")
	}
	return claims, nil
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, tokenStr, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || tokenStr == "" {
			AbortJSON(c, http.StatusUnauthorized, "UNAUTHENTICATED", "missing bearer token")
			return
		}

		claims, err := am.authenticate(tokenStr)
		if err != nil {
			am.logger.Info("Rejected token",
				zap.String("request_id", RequestID(c)),
				zap.Error(err))
			AbortJSON(c, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid or expired token")
			return
		}

		principal, err := am.directory.Resolve(c.Request.Context(), claims.Subject)
		if err != nil {
			switch domain.KindOf(err) {
			case domain.KindNotFound, domain.KindForbidden:
				AbortJSON(c, http.StatusUnauthorized, "UNAUTHENTICATED", "unknown or deactivated user")
			default:
				am.logger.Error("Directory lookup failed",
					zap.String("request_id", RequestID(c)),
					zap.String("subject", claims.Subject),
					zap.Error(err))
				AbortJSON(c, http.StatusServiceUnavailable, string(domain.KindUnavailable), "directory unavailable")
			}
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func PrincipalFrom(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := v.(domain.Principal)
	return p, ok
}
