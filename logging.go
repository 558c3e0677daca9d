package boardshelf

import (
	"os"

	"go.uber.org/zap"
)

const (
	// Service is the name of this service.
	Service = "boardshelf"
)

var log = NewLogger()

// NewLogger builds the zap logger used across the service. Set
// SHELF_ENV=development for human readable output.
func NewLogger() *zap.SugaredLogger {
	var cfg zap.Config
	if os.Getenv("SHELF_ENV") == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}

	return l.Sugar().Named(Service)
}
