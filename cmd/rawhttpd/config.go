/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"fmt"
	"strings"

	"github.com/acronis/go-rawhttp/config"
	"github.com/acronis/go-rawhttp/httpserver"
	"github.com/acronis/go-rawhttp/log"
	"github.com/acronis/go-rawhttp/profserver"
	"github.com/acronis/go-rawhttp/webapp"
)

// AppConfig holds configuration of all units of the application.
type AppConfig struct {
	Server     *httpserver.Config
	WebApp     *webapp.Config
	Log        *log.Config
	ProfServer *profserver.Config
}

// NewAppConfig creates a new instance of the AppConfig.
func NewAppConfig() *AppConfig {
	return &AppConfig{
		Server:     httpserver.NewConfig(),
		WebApp:     webapp.NewConfig(),
		Log:        log.NewConfig(),
		ProfServer: profserver.NewConfig(),
	}
}

// loadAppConfig reads the configuration file (if any) and environment variables.
// Without a file, defaults are used.
func loadAppConfig(path string, envPrefix string) (*AppConfig, error) {
	cfg := NewAppConfig()
	cfgLoader := config.NewDefaultLoader(envPrefix)
	if path == "" {
		if err := cfgLoader.LoadDefaults(cfg.Server, cfg.WebApp, cfg.Log, cfg.ProfServer); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	dataType, err := dataTypeFromPath(path)
	if err != nil {
		return nil, err
	}
	if err = cfgLoader.LoadFromFile(path, dataType, cfg.Server, cfg.WebApp, cfg.Log, cfg.ProfServer); err != nil {
		return nil, err
	}
	return cfg, nil
}

func dataTypeFromPath(path string) (config.DataType, error) {
	lowerPath := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lowerPath, ".yml"), strings.HasSuffix(lowerPath, ".yaml"):
		return config.DataTypeYAML, nil
	case strings.HasSuffix(lowerPath, ".json"):
		return config.DataTypeJSON, nil
	}
	return "", fmt.Errorf("unsupported configuration file format %q, yaml or json is expected", path)
}
