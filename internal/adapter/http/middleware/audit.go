package middleware

import (
	"encoding/json"
	"net/http"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/internal/service"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuditContext attaches the client IP to the request context so audit
// entries written by services carry it.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithClientIP(c.Request.Context(), c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AuditDenied records requests refused by authentication, role or signature
// checks. Successful writes are audited by the services themselves.
func AuditDenied(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status != http.StatusUnauthorized && status != http.StatusForbidden {
			return
		}

		actor := c.GetString(CtxSubject)
		if actor == "" {
			actor = "anonymous"
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		details, _ := json.Marshal(map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"role":       c.GetString(CtxRole),
			"request_id": c.GetString(response.RequestIDKey),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ActorID:      actor,
			Action:       domain.AuditActionAccessDenied,
			ResourceType: "route",
			ResourceID:   route,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
		})
	}
}
