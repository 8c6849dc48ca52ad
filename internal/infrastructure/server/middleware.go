package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskhive/core/internal/application/services"
)

// authMiddleware validates JWT tokens and stores the identity claims in
// the request context. The user id is parsed here so handlers always
// see a well-formed uuid; a token whose subject does not parse is
// rejected like any other invalid token. There is no global role: all
// authorization is per-task and handled by the services.
func (s *Server) authMiddleware(authService *services.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			claims, err := authService.ValidateToken(tokenString)
			if err != nil {
				s.logger.LogSecurityEvent("invalid_token", "", c.RealIP(), map[string]interface{}{
					"error": err.Error(),
				})
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil || userID == uuid.Nil {
				s.logger.LogSecurityEvent("invalid_token_subject", claims.UserID, c.RealIP(), map[string]interface{}{
					"error": "user id claim is not a valid uuid",
				})
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			c.Set("user", userID)
			c.Set("user_email", claims.Email)

			return next(c)
		}
	}
}
