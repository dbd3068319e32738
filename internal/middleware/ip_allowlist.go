package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// IPAllowlist restricts owner endpoints to listed IPs or CIDR ranges.
// Loopback is always allowed; an empty list allows everyone.
type IPAllowlist struct {
	logger *logrus.Logger
	ips    []net.IP
	nets   []*net.IPNet
	open   bool
}

// NewIPAllowlist parses allowed entries, skipping malformed ones
func NewIPAllowlist(logger *logrus.Logger, allowed []string) *IPAllowlist {
	l := &IPAllowlist{logger: logger, open: len(allowed) == 0}
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"allowed": entry,
					"error":   err.Error(),
				}).Warn("Invalid CIDR in allowedIPs")
				continue
			}
			l.nets = append(l.nets, ipNet)
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			l.ips = append(l.ips, ip)
		} else {
			logger.WithField("allowed", entry).Warn("Invalid IP in allowedIPs")
		}
	}
	return l
}

// Restrict rejects clients outside the allowlist
func (l *IPAllowlist) Restrict() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !l.Allowed(clientIP) {
			l.logger.WithFields(logrus.Fields{
				"client_ip":  clientIP,
				"path":       c.Request.URL.Path,
				"method":     c.Request.Method,
				"user_agent": c.GetHeader("User-Agent"),
			}).Warn("Reject non-whitelisted access to owner API")

			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "This API is only accessible from allowed IP addresses",
				"code":    "IP_NOT_ALLOWED",
			})
			return
		}
		c.Next()
	}
}

// Allowed reports whether ip may reach owner endpoints
func (l *IPAllowlist) Allowed(ip string) bool {
	if l.open {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	if parsed.IsLoopback() {
		return true
	}
	for _, allowed := range l.ips {
		if allowed.Equal(parsed) {
			return true
		}
	}
	for _, ipNet := range l.nets {
		if ipNet.Contains(parsed) {
			return true
		}
	}
	return false
}
