package middleware

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sitesafe/hsekpi/internal/services"
)

const maxAuditBody = 2000

// AuditLog records write operations (POST/PUT/DELETE) to system_logs.
// Multipart uploads are recorded without their body.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != "POST" && method != "PUT" && method != "DELETE" {
			c.Next()
			return
		}

		var bodySnippet string
		if c.Request.Body != nil && !strings.HasPrefix(c.ContentType(), "multipart/") {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			bodySnippet = string(bodyBytes)
			if len(bodySnippet) > maxAuditBody {
				bodySnippet = bodySnippet[:maxAuditBody] + "...[truncated]"
			}
			bodySnippet = maskSensitiveFields(bodySnippet)
		}

		c.Next()

		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)

		entry := services.AuditEntry{
			Module:    module,
			Action:    action,
			Message:   formatAuditMessage(GetUsername(c), method, c.Request.URL.Path, status),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Extra: map[string]interface{}{
				"method": method,
				"path":   c.Request.URL.Path,
				"status": status,
				"body":   bodySnippet,
				"audit":  true,
			},
		}
		if uid := GetUserID(c); uid > 0 {
			entry.UserID = &uid
		}
		if pid := projectIDParam(c); pid > 0 {
			entry.ProjectID = &pid
		}

		if status >= 400 {
			services.LogWarning(entry)
			return
		}
		services.LogInfo(entry)
	}
}

// projectIDParam returns the project a /projects/:id/... route addresses.
func projectIDParam(c *gin.Context) uint {
	if !strings.Contains(c.FullPath(), "/projects/:id") {
		return 0
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// parseRouteInfo extracts module and action from a Gin route pattern.
// e.g. "/api/projects/:id/snapshots/:date/submit" + "POST" -> ("snapshots", "submit")
func parseRouteInfo(fullPath, method string) (module, action string) {
	var segments []string
	for _, s := range strings.Split(strings.TrimPrefix(fullPath, "/api/"), "/") {
		if s != "" && !strings.HasPrefix(s, ":") {
			segments = append(segments, strings.ReplaceAll(s, "-", "_"))
		}
	}

	switch method {
	case "POST":
		action = "create"
	case "PUT":
		action = "update"
	case "DELETE":
		action = "delete"
	default:
		action = strings.ToLower(method)
	}
	if len(segments) == 0 {
		return "unknown", action
	}

	module = segments[0]
	if module == "projects" && len(segments) > 1 && !isVerb(segments[1]) {
		module = segments[1]
	}
	if last := segments[len(segments)-1]; len(segments) > 1 && isVerb(last) {
		action = last
	}
	return module, action
}

func isVerb(s string) bool {
	switch s {
	case "submit", "approve", "reject", "reopen", "start", "generate", "import",
		"corrective_action", "cleanup", "export":
		return true
	}
	return false
}

// formatAuditMessage creates a human-readable audit message.
func formatAuditMessage(username, method, path string, status int) string {
	var b strings.Builder
	b.WriteString("[Audit] ")
	if username == "" {
		username = "anonymous"
	}
	b.WriteString(username)
	b.WriteString(" ")
	b.WriteString(method)
	b.WriteString(" ")
	b.WriteString(path)
	b.WriteString(" -> ")
	if status >= 200 && status < 300 {
		b.WriteString("OK")
	} else {
		b.WriteString("Failed ")
		b.WriteString(strconv.Itoa(status))
	}
	return b.String()
}

// maskSensitiveFields replaces sensitive values in JSON body
func maskSensitiveFields(body string) string {
	sensitiveKeys := []string{"password", "secret", "token", "access_token"}
	lower := strings.ToLower(body)
	for _, key := range sensitiveKeys {
		if strings.Contains(lower, key) {
			body = maskJSONValue(body, key)
		}
	}
	return body
}

// maskJSONValue does a best-effort mask of JSON string values for a given key
func maskJSONValue(body, key string) string {
	lower := strings.ToLower(body)
	idx := strings.Index(lower, "\""+key+"\"")
	if idx == -1 {
		return body
	}

	colonIdx := strings.Index(body[idx+len(key)+2:], ":")
	if colonIdx == -1 {
		return body
	}
	valueStart := idx + len(key) + 2 + colonIdx + 1

	for valueStart < len(body) && (body[valueStart] == ' ' || body[valueStart] == '\t') {
		valueStart++
	}
	if valueStart >= len(body) {
		return body
	}

	if body[valueStart] == '"' {
		endQuote := strings.Index(body[valueStart+1:], "\"")
		if endQuote == -1 {
			return body
		}
		return body[:valueStart+1] + "***" + body[valueStart+1+endQuote:]
	}
	return body
}
