/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package webapp

import (
	"fmt"
	"strings"

	"github.com/acronis/go-rawhttp/config"
)

const cfgDefaultKeyPrefix = "webapp"

const (
	cfgKeyPublicDir     = "publicDir"
	cfgKeySessionCookie = "sessionCookie"
	cfgKeyMimeTypes     = "mimeTypes"
)

const (
	defaultPublicDir     = "public"
	defaultSessionCookie = "session_id"
)

// Config represents a set of configuration parameters for the web application handlers.
type Config struct {
	// PublicDir is the root of served files. A relative path is resolved against the working directory.
	PublicDir string `mapstructure:"publicDir" yaml:"publicDir" json:"publicDir"`
	// SessionCookie is the name of the cookie issued to clients that send no cookies.
	SessionCookie string `mapstructure:"sessionCookie" yaml:"sessionCookie" json:"sessionCookie"`
	// MimeTypes maps file extensions (without the leading dot) to content types.
	// It extends and overrides the system MIME table.
	MimeTypes map[string]string `mapstructure:"mimeTypes" yaml:"mimeTypes" json:"mimeTypes"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return &Config{}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		PublicDir:     defaultPublicDir,
		SessionCookie: defaultSessionCookie,
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return cfgDefaultKeyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyPublicDir, defaultPublicDir)
	dp.SetDefault(cfgKeySessionCookie, defaultSessionCookie)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.PublicDir, err = dp.GetString(cfgKeyPublicDir); err != nil {
		return err
	}
	if c.PublicDir == "" {
		return dp.WrapKeyErr(cfgKeyPublicDir, fmt.Errorf("cannot be empty"))
	}

	if c.SessionCookie, err = dp.GetString(cfgKeySessionCookie); err != nil {
		return err
	}
	if c.SessionCookie == "" || strings.ContainsAny(c.SessionCookie, "=;, \t\r\n") {
		return dp.WrapKeyErr(cfgKeySessionCookie, fmt.Errorf("invalid cookie name %q", c.SessionCookie))
	}

	var mimeTypes map[string]string
	if err = dp.UnmarshalKey(cfgKeyMimeTypes, &mimeTypes); err != nil {
		return err
	}
	c.MimeTypes = nil
	for ext, contentType := range mimeTypes {
		if contentType == "" {
			return dp.WrapKeyErr(cfgKeyMimeTypes, fmt.Errorf("empty content type for extension %q", ext))
		}
		if c.MimeTypes == nil {
			c.MimeTypes = make(map[string]string, len(mimeTypes))
		}
		c.MimeTypes[strings.ToLower(strings.TrimPrefix(ext, "."))] = contentType
	}
	return nil
}
