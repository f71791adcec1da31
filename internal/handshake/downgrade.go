package handshake

import (
	"github.com/go-hitls/tlscore/internal/codec"
	"github.com/go-hitls/tlscore/internal/collab"
)

// WriteDowngradeSentinel overwrites the last 8 bytes of a 1.3-capable
// server's negotiated-<=1.2 server_random with the RFC 8446 §4.1.3
// sentinel. No-op (random unchanged) when the server did not itself
// support 1.3, since the sentinel only signals an intentional
// downgrade by a capable server.
func WriteDowngradeSentinel(random *[32]byte, serverSupportsTLS13 bool, negotiated codec12OrBelow) {
	if !serverSupportsTLS13 {
		return
	}
	sentinel := codec.DowngradeSentinelTLS11orBelow
	if negotiated == codecTLS12 {
		sentinel = codec.DowngradeSentinelTLS12
	}
	copy(random[24:32], sentinel[:])
}

// codec12OrBelow distinguishes TLS 1.2 from everything below it for
// sentinel selection, without requiring this file to import codec just
// to compare codec.Version constants by value at call sites.
type codec12OrBelow int

const (
	codecTLS12 codec12OrBelow = iota
	codecBelowTLS12
)

// CheckDowngradeSentinel implements the 1.3-capable client's half: if
// the client offered 1.3 and the server negotiated <=1.2, the last 8
// random bytes must NOT match either sentinel; a match means a
// downgrade attack and the client must abort with illegal_parameter.
func CheckDowngradeSentinel(clientOfferedTLS13 bool, serverRandom [32]byte) error {
	if !clientOfferedTLS13 {
		return nil
	}
	var tail [8]byte
	copy(tail[:], serverRandom[24:32])
	if tail == codec.DowngradeSentinelTLS12 || tail == codec.DowngradeSentinelTLS11orBelow {
		return protocolErr(collab.AlertIllegalParameter, "downgrade sentinel present in server_random but client offered TLS 1.3")
	}
	return nil
}
