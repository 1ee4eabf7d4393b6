package logging

import "go.uber.org/zap"

// New returns a zap logger. Debug mode uses the development config (console
// encoding, debug level); otherwise the production JSON config at info level.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// MaskSecret keeps the first and last four characters of secret.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	masked := make([]byte, len(secret)-8)
	for i := range masked {
		masked[i] = '*'
	}
	return secret[:4] + string(masked) + secret[len(secret)-4:]
}
