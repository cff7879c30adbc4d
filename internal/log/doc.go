// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// The SecureHandler masks values before they reach the output:
//   - Session cookies of the crawled site (li_at, JSESSIONID, bcookie, csrf tokens),
//     whether logged under their own key or inside a cookie string
//   - HTTP credentials and values that look like tokens or keys
//   - Harvested email addresses, which are partially masked so log lines
//     stay readable without leaking contacts
//
// Even in verbose mode, sensitive values are masked to prevent accidental
// exposure of secrets in logs that may be shared or stored.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	logger.Info("lookup finished",
//	    "email", "jane@example.com", // logged as "j***@example.com"
//	    "cookie", "li_at=AQED...",   // logged as "***REDACTED***"
//	)
package log
