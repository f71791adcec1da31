// Package keyschedule maintains the running handshake transcript hash
// and derives every secret the handshake needs from it: Finished
// verify_data, PSK binders, and (for TLS 1.3) the full HKDF secret
// ladder. It mirrors how crypto/tls's own key_schedule.go structures
// this work — one running hash.Hash per connection, label-driven
// Expand calls — generalized to the TLCP/DTLS variants this core also
// speaks.
package keyschedule

import (
	"crypto"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
)

// HashAlg identifies the transcript/PRF hash algorithm a cipher suite
// selects. SM3 is modeled as an externally supplied hash.Hash factory
// (via WithSM3) rather than a built-in constant, since no SM3
// implementation exists anywhere in this module's dependency set; a
// deployment that enables TLCP suites must supply one.
type HashAlg int

const (
	HashSHA256 HashAlg = iota
	HashSHA384
	HashSM3 // requires WithSM3 to be called before use
)

var sm3Factory func() hash.Hash

// WithSM3 registers the hash.Hash constructor TLCP suites should use.
// The core has no opinion on which SM3 implementation is linked in;
// this is the seam a deployment enabling GM/T suites must fill.
func WithSM3(factory func() hash.Hash) {
	sm3Factory = factory
}

func (h HashAlg) new() hash.Hash {
	switch h {
	case HashSHA256:
		return sha256.New()
	case HashSHA384:
		return sha512.New384()
	case HashSM3:
		if sm3Factory == nil {
			panic("keyschedule: HashSM3 selected but WithSM3 was never called")
		}
		return sm3Factory()
	default:
		panic("keyschedule: unknown HashAlg")
	}
}

func (h HashAlg) Size() int {
	switch h {
	case HashSHA256:
		return sha256.Size
	case HashSHA384:
		return sha512.Size384
	case HashSM3:
		return 32
	default:
		panic("keyschedule: unknown HashAlg")
	}
}

func (h HashAlg) cryptoHash() crypto.Hash {
	return h.CryptoHash()
}

// CryptoHash exposes the stdlib crypto.Hash a HashAlg corresponds to,
// for collaborators outside this package that need to label a derived
// secret (collab.TrafficSecret.Hash) rather than hash with it directly.
// Zero for HashSM3, which crypto.Hash has no registry entry for.
func (h HashAlg) CryptoHash() crypto.Hash {
	switch h {
	case HashSHA256:
		return crypto.SHA256
	case HashSHA384:
		return crypto.SHA384
	default:
		return 0
	}
}
