/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package httpserver provides a connection-per-request HTTP/1.1 server.
// The accept loop hands every connection to a worker pool; a worker checks the client against
// the rate limiter, parses the request off the wire, serves it with an http.Handler
// (a chi router by default) and closes the connection.
package httpserver
