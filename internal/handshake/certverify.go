package handshake

import "github.com/go-hitls/tlscore/internal/collab"

// legacySignedContentDigest builds the RFC 5246 §7.4.3
// digitally-signed content a <=1.2 ServerKeyExchange signs:
// client_random || server_random || params, hashed with the chosen
// scheme's own hash (no fixed transcript-hash indirection, unlike
// TLS 1.3's CertificateVerify).
func legacySignedContentDigest(scheme collab.SignatureScheme, clientRandom, serverRandom, params []byte) []byte {
	h := scheme.Hash().New()
	h.Write(clientRandom)
	h.Write(serverRandom)
	h.Write(params)
	return h.Sum(nil)
}

// VerifyCertificateSignature checks the peer's advertised signature
// scheme is compatible with its certificate's key type, then delegates
// the actual cryptographic verification to peer.Verifier — the core
// never touches RSA/ECDSA/SM2 math directly, only the compatibility
// gate RFC 8446 §4.4.3 (and its <=1.2/RFC 5246 §7.4.8 analogue)
// requires before a signature is even attempted.
func VerifyCertificateSignature(peer *collab.PeerIdentity, scheme collab.SignatureScheme, digest []byte, signature []byte) error {
	if peer.KeyKind != scheme.KeyKind() {
		return protocolErr(collab.AlertIllegalParameter, "signature scheme %#x incompatible with peer key type", uint16(scheme))
	}
	if err := peer.Verifier.Verify(scheme, digest, signature); err != nil {
		return protocolErr(collab.AlertDecryptError, "certificate_verify signature check failed: %v", err)
	}
	return nil
}

// SelectLocalSignatureScheme combines extension.SelectSignatureScheme's
// key-kind match with the RFC 4055 §3.3 PSS salt-length floor: TLS
// fixes a PSS scheme's salt length to its hash's output size (RFC 8446
// §4.2.3), so a scheme is only usable when the local key's own minimum
// salt length does not exceed that.
func SelectLocalSignatureScheme(candidates []collab.SignatureScheme, identity *collab.LocalIdentity) (collab.SignatureScheme, bool) {
	for _, s := range candidates {
		if s.KeyKind() != identity.KeyKind {
			continue
		}
		if s.IsPSS() && identity.PSSSaltLen > s.Hash().Size() {
			continue
		}
		return s, true
	}
	return 0, false
}
