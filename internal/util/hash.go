// Package util provides shared logging, statistics and identification helpers.
package util

import (
	"hash/fnv"
	"net"
)

// ConnIDFromAddrs computes a 4-byte hash from a connection's local and remote
// addresses. The hash is used solely to tag log lines and does not need to be
// reversible.
func ConnIDFromAddrs(local, remote net.Addr) uint32 {
	h := fnv.New32a()
	if local != nil {
		h.Write([]byte(local.String()))
	}
	if remote != nil {
		h.Write([]byte(remote.String()))
	}
	return h.Sum32()
}

// ConnID computes ConnIDFromAddrs for an established connection.
func ConnID(conn net.Conn) uint32 {
	return ConnIDFromAddrs(conn.LocalAddr(), conn.RemoteAddr())
}
