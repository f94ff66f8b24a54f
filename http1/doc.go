/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package http1 reads a single HTTP/1.1 request from a raw byte stream and writes minimal responses back.
//
// Only the subset needed for one request per connection is supported: no keep-alive,
// no chunked transfer coding and no trailers. The request body is delimited by Content-Length only.
package http1
