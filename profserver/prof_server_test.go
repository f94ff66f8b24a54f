/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package profserver

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-rawhttp/log/logtest"
	"github.com/acronis/go-rawhttp/testutil"
)

func TestProfServer_Start(t *testing.T) {
	addr := testutil.GetLocalAddrWithFreeTCPPort()
	profServer, err := New(&Config{Enabled: true, Address: addr}, logtest.NewLogger())
	require.NoError(t, err)

	fatalErr := make(chan error, 1)
	go profServer.Start(fatalErr)
	_, err = testutil.WaitPort(profServer.GetPort, time.Second*3)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, profServer.Stop(true))
		require.Len(t, fatalErr, 0)
	}()

	resp, err := testutil.RawExchange(addr, "GET /debug/pprof/ HTTP/1.1\r\n\r\n", 5*time.Second)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n"))
	require.Contains(t, resp, "goroutine")
}
