/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package logtest provides loggers for tests: a synchronous JSON logger whose output can be inspected
// and a Recorder that keeps entries in memory, so tests can assert on what components logged.
package logtest
