// Package tnet opens listeners from address strings
package tnet

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/ridge/must/v2"
)

var lc = net.ListenConfig{
	KeepAlive: 3 * time.Minute,
}

// Listen installs a listener on the specified address.
//
// "unix:/path" listens on a UNIX domain socket. "tcp:host:port" and a bare
// "host:port" listen on TCP with keep-alive enabled.
func Listen(ctx context.Context, address string) (net.Listener, error) {
	network := "tcp"
	if proto, rest, ok := strings.Cut(address, ":"); ok {
		switch proto {
		case "unix":
			network = "unix"
			address = rest
		case "tcp":
			address = rest
		}
	}
	return lc.Listen(ctx, network, address)
}

// ListenOnRandomPort selects a random local TCP port and installs a listener on
// it with TCP keep-alive enabled
func ListenOnRandomPort() net.Listener {
	return must.OK1(Listen(context.Background(), "localhost:"))
}
