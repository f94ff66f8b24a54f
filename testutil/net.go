/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// GetLocalFreeTCPPort returns a TCP port on 127.0.0.1 that nobody listens on.
func GetLocalFreeTCPPort() int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	if err = listener.Close(); err != nil {
		panic(err)
	}
	return port
}

// GetLocalAddrWithFreeTCPPort returns 127.0.0.1:<free-tcp-port> address.
func GetLocalAddrWithFreeTCPPort() string {
	return fmt.Sprintf("127.0.0.1:%d", GetLocalFreeTCPPort())
}

// WaitPort polls getPort until it returns a positive value.
// Unlike dialing, it does not open a connection the server would have to serve.
func WaitPort(getPort func() int, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for {
		if port := getPort(); port > 0 {
			return port, nil
		}
		if time.Now().After(deadline) {
			return 0, errors.New("waiting for listening port timed out")
		}
		time.Sleep(time.Millisecond * 10)
	}
}

// RawExchange dials addr, writes the raw request and reads everything the server sends until it closes
// the connection.
func RawExchange(addr string, rawRequest string, timeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return "", err
	}
	defer conn.Close() // nolint: errcheck
	if err = conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	if _, err = io.WriteString(conn, rawRequest); err != nil {
		return "", err
	}
	resp, err := io.ReadAll(conn)
	return string(resp), err
}
