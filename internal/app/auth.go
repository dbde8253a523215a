package app

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagebot/pagebot-go/internal/config"
	"github.com/pagebot/pagebot-go/internal/metrics"
)

// metricsRealm is announced to scrapers that arrive without credentials.
const metricsRealm = `Basic realm="pagebot-go metrics", charset="UTF-8"`

// metricsAuthMiddleware guards /metrics with Basic Auth once
// PAGEBOT_METRICS_PASSWORD is set. Without a password the endpoint is open.
// Rejections are counted so a misconfigured scraper shows up on dashboards.
func metricsAuthMiddleware(cfg *config.Config, m *metrics.Metrics) gin.HandlerFunc {
	if !cfg.MetricsAuthEnabled() {
		return func(c *gin.Context) { c.Next() }
	}

	wantUser := []byte(cfg.MetricsUsername)
	wantPass := []byte(cfg.MetricsPassword)

	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		// Compare both fields every time so timing does not reveal which one failed
		userOK := subtle.ConstantTimeCompare([]byte(user), wantUser) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), wantPass) == 1
		if ok && userOK && passOK {
			c.Next()
			return
		}

		if m != nil {
			m.RecordHTTPError("unauthorized", "metrics")
		}
		c.Header("WWW-Authenticate", metricsRealm)
		c.AbortWithStatus(http.StatusUnauthorized)
	}
}
