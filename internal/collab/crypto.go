package collab

import (
	"crypto"
	"io"
)

// NamedGroup identifies an (EC)DHE/FFDHE group or a TLS 1.3 hybrid KEM,
// using the IANA "TLS Supported Groups" code points plus the TLCP
// curve id in the legacy namedcurve space.
type NamedGroup uint16

const (
	GroupSecp256r1     NamedGroup = 23
	GroupSecp384r1     NamedGroup = 24
	GroupSecp521r1     NamedGroup = 25
	GroupX25519        NamedGroup = 29
	GroupX448          NamedGroup = 30
	GroupFFDHE2048     NamedGroup = 256
	GroupFFDHE3072     NamedGroup = 257
	GroupX25519Kyber768 NamedGroup = 0x6399 // draft hybrid code point, reused here for the pack's Kyber768-X25519 wiring
	GroupSM2           NamedGroup = 0x0041  // GM/T 0024 sm2p256v1, used by TLCP ClientKeyExchange
)

// KeyExchanger performs one (EC)DHE/KEM operation for a single group.
// handshake.Config.KeyExchangers holds one KeyExchanger per NamedGroup
// the local side supports; the handshake core never touches curve math
// directly.
type KeyExchanger interface {
	Group() NamedGroup

	// GenerateKeyPair returns an ephemeral private handle and the
	// encoded public key-share value to place on the wire.
	GenerateKeyPair(rand io.Reader) (priv KeyExchangePrivate, pub []byte, err error)

	// Derive completes the exchange: given the local private handle
	// and the peer's encoded public value, returns the shared secret.
	// For a KEM acting as the ClientHello sender, Derive instead takes
	// the role of Encapsulate/Decapsulate via the same shape, since
	// the KEM's shared secret derivation is symmetrically exposed by
	// the KeyExchangePrivate handle.
	Derive(priv KeyExchangePrivate, peerPublic []byte) (sharedSecret []byte, err error)
}

// KeyExchangePrivate is an opaque ephemeral private key/decapsulation
// handle. Implementations must zeroize on Destroy.
type KeyExchangePrivate interface {
	Destroy()
}

// SignatureScheme mirrors the IANA TLS SignatureScheme registry plus
// the TLCP SM2 scheme the source's provider plumbing exposes alongside it.
type SignatureScheme uint16

const (
	SigSchemeRSAPKCS1SHA256  SignatureScheme = 0x0401
	SigSchemeRSAPKCS1SHA384  SignatureScheme = 0x0501
	SigSchemeRSAPKCS1SHA512  SignatureScheme = 0x0601
	SigSchemeECDSASecp256r1  SignatureScheme = 0x0403
	SigSchemeECDSASecp384r1  SignatureScheme = 0x0503
	SigSchemeECDSASecp521r1  SignatureScheme = 0x0603
	SigSchemeRSAPSSRSAESHA256 SignatureScheme = 0x0804
	SigSchemeRSAPSSRSAESHA384 SignatureScheme = 0x0805
	SigSchemeRSAPSSRSAESHA512 SignatureScheme = 0x0806
	SigSchemeEd25519         SignatureScheme = 0x0807
	SigSchemeSM2SM3          SignatureScheme = 0x0708
)

// KeyKind classifies the public-key algorithm family a SignatureScheme
// requires, used to check the selected certificate's key is compatible.
type KeyKind int

const (
	KeyKindRSA KeyKind = iota
	KeyKindECDSA
	KeyKindEd25519
	KeyKindSM2
)

func (s SignatureScheme) KeyKind() KeyKind {
	switch s {
	case SigSchemeRSAPKCS1SHA256, SigSchemeRSAPKCS1SHA384, SigSchemeRSAPKCS1SHA512,
		SigSchemeRSAPSSRSAESHA256, SigSchemeRSAPSSRSAESHA384, SigSchemeRSAPSSRSAESHA512:
		return KeyKindRSA
	case SigSchemeECDSASecp256r1, SigSchemeECDSASecp384r1, SigSchemeECDSASecp521r1:
		return KeyKindECDSA
	case SigSchemeEd25519:
		return KeyKindEd25519
	case SigSchemeSM2SM3:
		return KeyKindSM2
	default:
		return KeyKindRSA
	}
}

// IsPSS reports whether the scheme requires RSA-PSS padding, which
// carries the RFC 4055 §3.3 mdId/mgfId/saltLen consistency obligations.
func (s SignatureScheme) IsPSS() bool {
	switch s {
	case SigSchemeRSAPSSRSAESHA256, SigSchemeRSAPSSRSAESHA384, SigSchemeRSAPSSRSAESHA512:
		return true
	default:
		return false
	}
}

func (s SignatureScheme) Hash() crypto.Hash {
	switch s {
	case SigSchemeRSAPKCS1SHA256, SigSchemeECDSASecp256r1, SigSchemeRSAPSSRSAESHA256:
		return crypto.SHA256
	case SigSchemeRSAPKCS1SHA384, SigSchemeECDSASecp384r1, SigSchemeRSAPSSRSAESHA384:
		return crypto.SHA384
	case SigSchemeRSAPKCS1SHA512, SigSchemeECDSASecp521r1, SigSchemeRSAPSSRSAESHA512:
		return crypto.SHA512
	case SigSchemeSM2SM3:
		return 0 // SM3 is not a crypto.Hash constant; the SM2 signer owns its own digest
	default:
		return crypto.SHA256
	}
}

// Signer is implemented by a certificate's private key handle, as
// returned by CertificateManager. For RSA-PSS schemes the PSS salt
// length used must be >= the key's own minimum salt length (RFC 4055
// §3.3); the handshake core checks this against LocalIdentity.PSSSaltLen
// (SelectLocalSignatureScheme) before calling Sign.
type Signer interface {
	Sign(rand io.Reader, scheme SignatureScheme, digest []byte) (signature []byte, err error)
	Public() crypto.PublicKey
}

// Verifier verifies a handshake signature against a peer's public key.
type Verifier interface {
	Verify(scheme SignatureScheme, digest []byte, signature []byte) error
}

// AEAD is the record-protection primitive a direction's traffic secret
// is expanded into. The handshake core never calls Seal/Open itself;
// it hands the derived TrafficSecret to the RecordLayer via CtrlCCS,
// and the record layer (or its own crypto provider binding) expands
// key/iv and performs the cipher operations.
type AEAD interface {
	Name() string
	KeySize() int
	NonceSize() int
	TagSize() int
}

// DRBG is the shared, re-entrant random source used for nonces,
// randoms, and ephemeral key generation. The core treats it as opaque.
type DRBG interface {
	io.Reader
}
