//go:build !unix

package server

import "net"

func listenConfig() *net.ListenConfig {
	return &net.ListenConfig{}
}
