package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"medstay/internal/logger"
	"medstay/internal/metrics"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderGuestID   = "X-Guest-ID"
	HeaderGuestRole = "X-Guest-Role"

	RoleGuest = "guest"
	RoleOwner = "owner"
	RoleAdmin = "admin"
)

// Ключи gin.Context
const (
	guestIDKey = "guest_id"
	roleKey    = "role"
)

// Claims - полезная нагрузка JWT: subject содержит внешний id гостя
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func GuestIDFromContext(c *gin.Context) (string, bool) {
	id := c.GetString(guestIDKey)
	return id, id != ""
}

func RoleFromContext(c *gin.Context) string {
	if role := c.GetString(roleKey); role != "" {
		return role
	}
	return RoleGuest
}

// CORS middleware для обработки CORS запросов
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Guest-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}

		c.Next()
	}
}

// RequestID присваивает запросу идентификатор и кладет его в контекст логгера
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = logger.NewRequestID()
		}

		c.Set("request_id", requestID)
		c.Header(HeaderRequestID, requestID)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// Timeout ограничивает время жизни контекста запроса
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Metrics пишет длительность запроса в Prometheus
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Logger middleware для структурированного логирования запросов
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Записываем время начала
		start := time.Now()

		// Выполняем запрос
		c.Next()

		// Логируем результат
		latency := time.Since(start)

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}

		log := logger.WithContext(c.Request.Context())

		if c.Writer.Status() >= 500 {
			if len(c.Errors) > 0 {
				logFields = append(logFields, "error", c.Errors.String())
			}
			log.Error("Request completed with error", logFields...)
			return
		}

		if c.Writer.Status() >= 400 {
			log.Warn("Request rejected", logFields...)
			return
		}

		log.Debug("Request completed", logFields...)
	}
}

// Recovery middleware для восстановления после паники с детальным логированием
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		// Логируем панику с максимумом информации
		slog.Error("PANIC recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		)

		// Отправляем правильный HTTP ответ клиенту
		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
				"code":  "internal",
			})
		}
	})
}

// GuestAuth извлекает id гостя и роль из bearer JWT. Личность не проверяется
// дальше подписи. Без секрета (разработка) id берется из заголовка X-Guest-ID.
func GuestAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var guestID, role string

		if secret == "" {
			guestID = strings.TrimSpace(c.GetHeader(HeaderGuestID))
			role = strings.TrimSpace(c.GetHeader(HeaderGuestRole))
		} else {
			claims, err := parseToken(c.GetHeader("Authorization"), secret)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "unauthorized"})
				return
			}
			guestID = claims.Subject
			role = claims.Role
		}

		if guestID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing guest identity", "code": "unauthorized"})
			return
		}
		if role == "" {
			role = RoleGuest
		}

		c.Set(guestIDKey, guestID)
		c.Set(roleKey, role)
		c.Request = c.Request.WithContext(logger.ContextWithGuestID(c.Request.Context(), guestID))

		c.Next()
	}
}

func parseToken(header, secret string) (*Claims, error) {
	if header == "" {
		return nil, errors.New("missing authorization")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, errors.New("invalid authorization format")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return []byte(secret), nil
	}, jwt.WithLeeway(5*time.Second))
	if err != nil {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// RequireRole пропускает только запросы с одной из указанных ролей
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := RoleFromContext(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role", "code": "forbidden"})
	}
}
