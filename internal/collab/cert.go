package collab

// CertificateRequestParams describes what the handshake needs when
// asking the CertificateManager to select a local certificate: the
// acceptable signature schemes (from the peer's signature_algorithms
// extension), acceptable key types for legacy cipher suites, and SNI.
type CertificateRequestParams struct {
	ServerName       string
	SignatureSchemes []SignatureScheme
	// AcceptableCAs lists DER-encoded distinguished names the peer
	// advertised in CertificateRequest (TLS <=1.2 and 1.3 client auth).
	AcceptableCAs [][]byte
}

// LocalIdentity is a selected local certificate chain plus its signer,
// as returned by CertificateManager.SelectCertificate.
type LocalIdentity struct {
	// CertificateChain holds DER-encoded certificates, leaf first.
	CertificateChain [][]byte
	Signer           Signer
	KeyKind          KeyKind
	// PSSSaltLen is the minimum RSA-PSS salt length carried by the
	// key, consulted per RFC 4055 §3.3 before a PSS scheme is chosen.
	PSSSaltLen int
}

// PeerIdentity is what CertificateManager reports after validating an
// inbound certificate chain: the leaf's public key wrapped as a
// Verifier, plus usage flags the state machine consults (e.g. whether
// the key supports the negotiated scheme).
type PeerIdentity struct {
	Verifier Verifier
	KeyKind  KeyKind
	RawChain [][]byte
}

// CertificateManager selects local identities and validates peer
// chains. Path building (trust anchors, revocation) happens entirely
// inside the implementation; the core only sees pass/fail plus the
// resulting PeerIdentity.
type CertificateManager interface {
	// SelectCertificate returns the best local identity for params,
	// or an error if none is available (the caller maps this to
	// handshake_failure or unrecognized_name as appropriate).
	SelectCertificate(params CertificateRequestParams) (*LocalIdentity, error)

	// ValidatePeerChain verifies chain (leaf first, DER-encoded)
	// against the manager's trust store and usage policy. On success
	// it returns the PeerIdentity the state machine needs to check
	// signature-scheme compatibility and continue the handshake.
	ValidatePeerChain(chain [][]byte, expectedServerName string) (*PeerIdentity, error)
}
