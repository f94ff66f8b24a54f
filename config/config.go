/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package config loads the server configuration from YAML/JSON files and environment variables.
// Every component owns a small configuration struct implementing the Config interface,
// and Loader fills all of them from a single DataProvider.
package config

// Config is a common interface for configuration objects that may be used by Loader.
type Config interface {
	SetProviderDefaults(dp DataProvider)
	Set(dp DataProvider) error
}

// KeyPrefixProvider is an interface for providing key prefix that will be used for configuration parameters.
type KeyPrefixProvider interface {
	KeyPrefix() string
}
