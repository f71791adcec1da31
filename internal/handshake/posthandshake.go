package handshake

import (
	"context"

	"github.com/go-hitls/tlscore/internal/codec"
	"github.com/go-hitls/tlscore/internal/collab"
	"github.com/go-hitls/tlscore/internal/keyschedule"
)

// SendKeyUpdate implements the sending half of RFC 8446 §7.2's traffic
// secret ratchet: write the KeyUpdate message, then immediately ratchet
// this side's own write-direction application traffic secret. The
// caller must not write any further application data under the old key.
func (h *ServerHandshake) SendKeyUpdate(ctx context.Context, requestPeerUpdate bool) error {
	ku := &codec.KeyUpdate{UpdateRequested: requestPeerUpdate}
	wire := codec.EncodeHeader(h.cc.Negotiated.Version, codec.TypeKeyUpdate, ku.Encode(), 0, 0)
	if err := h.rl.WriteHandshakeMessage(ctx, wire); err != nil {
		return internalErr(err, "writing key_update")
	}
	if err := h.rl.Flush(ctx); err != nil {
		return err
	}
	h.cc.Scratch.Ladder.ServerAppTraffic = RatchetTrafficSecret(h.cc.Scratch.Ladder, h.cc.Scratch.Ladder.ServerAppTraffic)
	return h.rl.CtrlCCS(collab.DirWrite, collab.TrafficSecret{
		Secret: h.cc.Scratch.Ladder.ServerAppTraffic,
		Hash:   cipherSuiteHash(h.cc.Negotiated.CipherSuite).CryptoHash(),
		AEAD:   cipherSuiteAEAD(h.cc.Negotiated.CipherSuite),
	})
}

// HandleKeyUpdate processes a peer's KeyUpdate: ratchet the read
// secret, and if the peer asked for a reciprocal update, send one back
// (ratcheting this side's write secret too) before returning.
func (h *ServerHandshake) HandleKeyUpdate(ctx context.Context) error {
	msg, _, err := h.readMessage(ctx, codec.TypeKeyUpdate)
	if err != nil {
		return err
	}
	h.cc.Scratch.Ladder.ClientAppTraffic = RatchetTrafficSecret(h.cc.Scratch.Ladder, h.cc.Scratch.Ladder.ClientAppTraffic)
	if err := h.rl.CtrlCCS(collab.DirRead, collab.TrafficSecret{
		Secret: h.cc.Scratch.Ladder.ClientAppTraffic,
		Hash:   cipherSuiteHash(h.cc.Negotiated.CipherSuite).CryptoHash(),
		AEAD:   cipherSuiteAEAD(h.cc.Negotiated.CipherSuite),
	}); err != nil {
		return internalErr(err, "activating ratcheted client application read keys")
	}
	if msg.KeyUpdate.UpdateRequested {
		return h.SendKeyUpdate(ctx, false)
	}
	return nil
}

// RequestPostHandshakeAuth emits a CertificateRequest outside the main
// handshake flight (RFC 8446 §4.6.2), remembering the context value so
// the client's eventual Certificate can be matched to this request.
func (h *ServerHandshake) RequestPostHandshakeAuth(ctx context.Context) error {
	if err := RequestPostHandshakeAuth(&h.cc.Negotiated); err != nil {
		return err
	}
	reqCtx := make([]byte, 32)
	if _, err := h.cc.Config.DRBG.Read(reqCtx); err != nil {
		return internalErr(err, "reading post-handshake certificate_request context")
	}
	h.phaContext = reqCtx

	cr := &codec.CertificateRequest{CertificateRequestContext: reqCtx, Extensions: codec.NewExtensionList()}
	wireSchemes := make([]uint16, len(h.cc.Config.Policy.SignatureSchemes))
	for i, s := range h.cc.Config.Policy.SignatureSchemes {
		wireSchemes[i] = uint16(s)
	}
	cr.Extensions.Add(codec.ExtSignatureAlgorithms, codec.EncodeSignatureSchemeList(wireSchemes))
	body, err := cr.Encode(codec.VersionTLS13)
	if err != nil {
		return internalErr(err, "encoding post-handshake certificate_request")
	}
	wire := codec.EncodeHeader(codec.VersionTLS13, codec.TypeCertificateRequest, body, 0, 0)
	h.cc.Scratch.Transcript.Update(wire)
	if err := h.rl.WriteHandshakeMessage(ctx, wire); err != nil {
		return internalErr(err, "writing post-handshake certificate_request")
	}
	if err := h.rl.Flush(ctx); err != nil {
		return err
	}
	return NotePostHandshakeCertificateRequestSent(&h.cc.Negotiated)
}

// ProcessPostHandshakeClientAuth reads the client's post-handshake
// Certificate and CertificateVerify and validates both against the
// outstanding request context, completing the PHA round.
func (h *ServerHandshake) ProcessPostHandshakeClientAuth(ctx context.Context) error {
	certMsg, err := h.readMessageAndCommit(ctx, codec.TypeCertificate)
	if err != nil {
		return err
	}
	if !keyschedule.ConstantTimeCompare(certMsg.Certificate.CertificateRequestContext, h.phaContext) {
		return protocolErr(collab.AlertIllegalParameter, "post-handshake certificate does not echo the outstanding request context")
	}
	if len(certMsg.Certificate.Entries) == 0 {
		// The client declined PHA by sending an empty chain; that's a
		// valid response, just not an authenticated one.
		return CompletePostHandshakeAuth(&h.cc.Negotiated)
	}
	chain := make([][]byte, 0, len(certMsg.Certificate.Entries))
	for _, e := range certMsg.Certificate.Entries {
		chain = append(chain, e.Data)
	}
	peer, err := h.cc.Config.Certificates.ValidatePeerChain(chain, "")
	if err != nil {
		return protocolErr(collab.AlertBadCertificate, "post-handshake client certificate chain: %v", err)
	}

	preCVHash := h.cc.Scratch.Transcript.Hash()
	cvMsg, err := h.readMessageAndCommit(ctx, codec.TypeCertificateVerify)
	if err != nil {
		return err
	}
	scheme := collab.SignatureScheme(cvMsg.CertificateVerify.Algorithm)
	digest := keyschedule.CertificateVerifyContext(h.cc.Scratch.Transcript.Alg(), preCVHash, true /* isClient */)
	if err := VerifyCertificateSignature(peer, scheme, digest, cvMsg.CertificateVerify.Signature); err != nil {
		return err
	}
	return CompletePostHandshakeAuth(&h.cc.Negotiated)
}

// SendKeyUpdate is the client-side mirror of
// ServerHandshake.SendKeyUpdate.
func (h *ClientHandshake) SendKeyUpdate(ctx context.Context, requestPeerUpdate bool) error {
	ku := &codec.KeyUpdate{UpdateRequested: requestPeerUpdate}
	wire := codec.EncodeHeader(h.cc.Negotiated.Version, codec.TypeKeyUpdate, ku.Encode(), 0, 0)
	if err := h.rl.WriteHandshakeMessage(ctx, wire); err != nil {
		return internalErr(err, "writing key_update")
	}
	if err := h.rl.Flush(ctx); err != nil {
		return err
	}
	h.cc.Scratch.Ladder.ClientAppTraffic = RatchetTrafficSecret(h.cc.Scratch.Ladder, h.cc.Scratch.Ladder.ClientAppTraffic)
	return h.rl.CtrlCCS(collab.DirWrite, collab.TrafficSecret{
		Secret: h.cc.Scratch.Ladder.ClientAppTraffic,
		Hash:   cipherSuiteHash(h.cc.Negotiated.CipherSuite).CryptoHash(),
		AEAD:   cipherSuiteAEAD(h.cc.Negotiated.CipherSuite),
	})
}

// HandleKeyUpdate is the client-side mirror of
// ServerHandshake.HandleKeyUpdate.
func (h *ClientHandshake) HandleKeyUpdate(ctx context.Context) error {
	msg, _, err := h.readMessage(ctx, codec.TypeKeyUpdate)
	if err != nil {
		return err
	}
	h.cc.Scratch.Ladder.ServerAppTraffic = RatchetTrafficSecret(h.cc.Scratch.Ladder, h.cc.Scratch.Ladder.ServerAppTraffic)
	if err := h.rl.CtrlCCS(collab.DirRead, collab.TrafficSecret{
		Secret: h.cc.Scratch.Ladder.ServerAppTraffic,
		Hash:   cipherSuiteHash(h.cc.Negotiated.CipherSuite).CryptoHash(),
		AEAD:   cipherSuiteAEAD(h.cc.Negotiated.CipherSuite),
	}); err != nil {
		return internalErr(err, "activating ratcheted server application read keys")
	}
	if msg.KeyUpdate.UpdateRequested {
		return h.SendKeyUpdate(ctx, false)
	}
	return nil
}

// HandlePostHandshakeCertificateRequest responds to a server-initiated
// PHA CertificateRequest. If cfg yields no client identity, it replies
// with an empty Certificate, which RFC 8446 §4.6.2 treats as a valid
// decline. When an identity is selected, its Certificate is sent first;
// if no scheme in Policy.SignatureSchemes fits the identity's key, it
// then fails with handshake_failure. The signature_algorithms the
// server's request carries are not consulted.
func (h *ClientHandshake) HandlePostHandshakeCertificateRequest(ctx context.Context) error {
	crMsg, err := h.readMessageAndCommit(ctx, codec.TypeCertificateRequest)
	if err != nil {
		return err
	}
	reqCtx := crMsg.CertificateRequest.CertificateRequestContext

	cert := &codec.Certificate{CertificateRequestContext: reqCtx}
	var ident *collab.LocalIdentity
	if h.cc.Config.Certificates != nil {
		ident, _ = h.cc.Config.Certificates.SelectCertificate(collab.CertificateRequestParams{ServerName: h.offer.serverName})
	}
	if ident != nil {
		for _, der := range ident.CertificateChain {
			cert.Entries = append(cert.Entries, codec.CertificateEntry{Data: der, Extensions: codec.NewExtensionList()})
		}
	}
	certBody, err := cert.Encode(codec.VersionTLS13)
	if err != nil {
		return internalErr(err, "encoding post-handshake certificate")
	}
	certWire := codec.EncodeHeader(codec.VersionTLS13, codec.TypeCertificate, certBody, 0, 0)
	h.cc.Scratch.Transcript.Update(certWire)
	if err := h.rl.WriteHandshakeMessage(ctx, certWire); err != nil {
		return internalErr(err, "writing post-handshake certificate")
	}
	if ident == nil {
		return h.rl.Flush(ctx)
	}

	scheme, ok := SelectLocalSignatureScheme(h.cc.Config.Policy.SignatureSchemes, ident)
	if !ok {
		return protocolErr(collab.AlertHandshakeFailure, "no signature scheme compatible with post-handshake client certificate")
	}
	digest := keyschedule.CertificateVerifyContext(h.cc.Scratch.Transcript.Alg(), h.cc.Scratch.Transcript.Hash(), true /* isClient */)
	sig, err := ident.Signer.Sign(h.cc.Config.DRBG, scheme, digest)
	if err != nil {
		return cryptoErr("signing post-handshake certificate_verify: %v", err)
	}
	cv := &codec.CertificateVerify{Algorithm: codec.SignatureSchemeWire(scheme), Signature: sig}
	cvBody, err := cv.Encode()
	if err != nil {
		return internalErr(err, "encoding post-handshake certificate_verify")
	}
	cvWire := codec.EncodeHeader(codec.VersionTLS13, codec.TypeCertificateVerify, cvBody, 0, 0)
	h.cc.Scratch.Transcript.Update(cvWire)
	if err := h.rl.WriteHandshakeMessage(ctx, cvWire); err != nil {
		return internalErr(err, "writing post-handshake certificate_verify")
	}
	return h.rl.Flush(ctx)
}
