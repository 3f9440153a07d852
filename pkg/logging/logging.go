// Package logging builds the process logger.
package logging

import (
	"go.uber.org/zap"
)

// New builds a development logger when debug is set and a production logger
// otherwise. The returned level can be raised or lowered after construction.
func New(debug bool, appName, appVersion string) (*zap.Logger, zap.AtomicLevel, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	// Add default fields
	cfg.InitialFields = map[string]interface{}{
		"appName":    appName,
		"appVersion": appVersion,
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, cfg.Level, err
	}
	return logger, cfg.Level, nil
}
