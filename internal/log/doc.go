// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// A crawler handles credentials of its own (the cookie and headers from the
// target configuration, proxy passwords) and reads secrets from the sites it
// inspects. The SecureHandler masks both before a record reaches the output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Secret values detected by pattern matching (bearer tokens, JWTs,
//     cloud keys, PEM private key blocks)
//   - Passwords embedded in URLs such as proxy addresses
//
// Even at the highest verbosity, sensitive values are masked so that logs can
// be shared when reporting a problem.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, 2) // -vv
//	logger.Info("request sent",
//	    "cookie", "session=abc123", // written as ***REDACTED***
//	    "url", "https://example.com/",
//	)
//	slog.SetDefault(logger)
package log
