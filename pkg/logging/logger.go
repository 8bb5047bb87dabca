package logging

import "go.uber.org/zap"

// NewLogger builds the service logger. Production environments get JSON
// output at INFO; everything else gets the human-readable development
// config at DEBUG.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
