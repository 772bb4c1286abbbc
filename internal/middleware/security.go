// security.go sets protective response headers on every route. The log
// center serves JSON to API clients authenticated by X-Admin-API-Key or
// X-API-Key headers; there is no browser-facing HTML surface, so the shipped
// profile locks the document-oriented headers all the way down instead of
// carving out script or style allowances.
package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// SecurityHeadersConfig selects which protective headers the middleware
// emits. Boolean Enable* fields gate headers whose absence is meaningful;
// string fields emit their header only when non-empty.
type SecurityHeadersConfig struct {
	// EnableHSTS emits Strict-Transport-Security. Only meaningful when the
	// server terminates TLS itself or sits behind a TLS-terminating proxy.
	EnableHSTS bool
	// HSTSMaxAge is the max-age directive in seconds.
	HSTSMaxAge int
	// HSTSIncludeSubdomains extends the HSTS pin to subdomains.
	HSTSIncludeSubdomains bool
	// HSTSPreload opts into browser preload lists. Irreversible in
	// practice, so off unless explicitly requested.
	HSTSPreload bool
	// EnableFrameOptions emits X-Frame-Options with FrameOptionsValue
	// (DENY or SAMEORIGIN).
	EnableFrameOptions bool
	FrameOptionsValue  string
	// EnableContentTypeOptions emits X-Content-Type-Options: nosniff so
	// clients never content-sniff log payloads echoed back in responses.
	EnableContentTypeOptions bool
	// EnableXSSProtection emits the legacy X-XSS-Protection header. Off in
	// the shipped profile; it only affects HTML rendering.
	EnableXSSProtection bool
	// ContentSecurityPolicy, ReferrerPolicy, and PermissionsPolicy are
	// emitted verbatim when non-empty.
	ContentSecurityPolicy string
	ReferrerPolicy        string
	PermissionsPolicy     string
}

// APISecurityHeadersConfig is the profile the router installs. Log queries
// can echo attacker-supplied message text back in JSON, so CSP denies every
// source and frame ancestor outright; no-referrer keeps request paths, which
// can carry owner emails and process names, out of outbound Referer headers.
func APISecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		EnableHSTS:               true,
		HSTSMaxAge:               31536000,
		HSTSIncludeSubdomains:    true,
		HSTSPreload:              false,
		EnableFrameOptions:       true,
		FrameOptionsValue:        "DENY",
		EnableContentTypeOptions: true,
		EnableXSSProtection:      false,
		ContentSecurityPolicy:    "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:           "no-referrer",
		PermissionsPolicy:        "",
	}
}

// SecurityHeadersMiddleware emits the configured headers before the request
// reaches auth or any handler, so even rejected requests carry them.
func SecurityHeadersMiddleware(config SecurityHeadersConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.EnableHSTS {
			hstsValue := "max-age=" + strconv.Itoa(config.HSTSMaxAge)
			if config.HSTSIncludeSubdomains {
				hstsValue += "; includeSubDomains"
			}
			if config.HSTSPreload {
				hstsValue += "; preload"
			}
			c.Header("Strict-Transport-Security", hstsValue)
		}

		if config.EnableFrameOptions && config.FrameOptionsValue != "" {
			c.Header("X-Frame-Options", config.FrameOptionsValue)
		}

		if config.EnableContentTypeOptions {
			c.Header("X-Content-Type-Options", "nosniff")
		}

		if config.EnableXSSProtection {
			c.Header("X-XSS-Protection", "1; mode=block")
		}

		if config.ContentSecurityPolicy != "" {
			c.Header("Content-Security-Policy", config.ContentSecurityPolicy)
		}

		if config.ReferrerPolicy != "" {
			c.Header("Referrer-Policy", config.ReferrerPolicy)
		}

		if config.PermissionsPolicy != "" {
			c.Header("Permissions-Policy", config.PermissionsPolicy)
		}

		// Unconditional isolation headers. Admin tokens travel in request
		// headers, so cross-origin embedding of any response is refused.
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Header("Cross-Origin-Embedder-Policy", "require-corp")
		c.Header("Cross-Origin-Opener-Policy", "same-origin")
		c.Header("Cross-Origin-Resource-Policy", "same-origin")

		c.Next()
	}
}
