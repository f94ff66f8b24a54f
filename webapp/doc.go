/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package webapp provides the default set of request handlers of the server:
// a status API, a stub for multipart uploads and a small file store rooted at the public directory
// that supports reading, echoing, overwriting and deleting files.
package webapp
