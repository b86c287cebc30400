// Package log provides secure logging for torgate, built on log/slog.
//
// SecureHandler wraps any slog.Handler and masks values that would leak
// session secrets when logs are shared:
//   - control port passwords and their hashed torrc form ("16:...")
//   - AUTHENTICATE commands sent to the control port
//   - bridge lines carrying obfs4 certificates
//   - attributes whose key looks like a password, token, secret or cookie
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Debug("control command", "command", `AUTHENTICATE "s3cret"`)
//	// command=***REDACTED***
//
// Tor's own output is forwarded through the same logger by the process
// package, so anything tor prints passes through the sanitiser too.
package log
