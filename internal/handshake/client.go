package handshake

import (
	"context"

	"github.com/go-hitls/tlscore/internal/codec"
	"github.com/go-hitls/tlscore/internal/collab"
	"github.com/go-hitls/tlscore/internal/keyschedule"
)

// clientPhase enumerates the client state machine's TRY_SEND_*/
// TRY_RECV_* states from spec.md §4.5, abridged to the phases this
// core actually drives a step at a time.
type clientPhase int

const (
	clientSendHello clientPhase = iota
	clientRecvServerHello
	clientRecv13Flight // EncryptedExtensions, [CertReq], Certificate, CertificateVerify, Finished, as one flight of reads
	clientSend13Finished
	clientRecvServerHelloDone12
	clientSend12KeyExchange
	clientRecvServerFinished12
	clientRecvAbbrevFinished12 // resumed <=1.2: server's [CCS, Finished] arrives right after ServerHello
	clientSendAbbrevFinished12
	clientEstablished
)

// ClientHandshake drives one client-side handshake. Construct with
// NewClientHandshake and call Step repeatedly until it returns Done or
// Failed.
type ClientHandshake struct {
	cc    *ConnectionContext
	rl    collab.RecordLayer
	group collab.NamedGroup
	phase clientPhase
	offer clientOffer
	priv  collab.KeyExchangePrivate
	pub   []byte // this side's most recent key_share public value, kept for wire re-use (<=1.2 ClientKeyExchange)

	// resume is a <=1.2 session the caller wants this handshake to try
	// to resume, supplied out-of-band (the handshake core keeps no
	// name-to-session cache of its own); nil means offer no session_id.
	resume *SessionView

	// dtls is fixed at construction from cfg.Policy.MaxVersion; it
	// decides ClientHello's legacy_version and whether a
	// HelloVerifyRequest cookie round trip is expected before the real
	// ServerHello.
	dtls bool
	// dtlsCookie is the cookie echoed from the server's
	// HelloVerifyRequest, carried into the retried ClientHello2; empty
	// until one arrives.
	dtlsCookie []byte
}

// SetResumeSession arms a <=1.2 session-id resumption attempt: the
// next ClientHello offers sv.SessionID, and if the server echoes it
// back with a matching cipher suite the handshake takes the
// abbreviated path instead of a full one.
func (h *ClientHandshake) SetResumeSession(sv *SessionView) {
	h.resume = sv
}

type clientOffer struct {
	versions     []codec.Version
	cipherSuites []codec.CipherSuite
	groups       []collab.NamedGroup
	schemes      []collab.SignatureScheme
	serverName   string
	alpn         []string
	pskOffers    []collab.ClientPSKOffer
}

// NewClientHandshake allocates a client handshake bound to rl, using
// cfg's Policy to build the initial offer.
func NewClientHandshake(cfg *Config, rl collab.RecordLayer, serverName string) *ClientHandshake {
	cc := &ConnectionContext{Role: RoleClient, Config: cfg, Scratch: NewHandshakeScratch()}
	offer := clientOffer{
		cipherSuites: cfg.TLS13CipherSuites,
		groups:       cfg.Policy.Groups,
		schemes:      cfg.Policy.SignatureSchemes,
		serverName:   serverName,
		alpn:         cfg.Policy.ALPNProtocols,
	}
	dtls := cfg.Policy.MaxVersion.IsDTLS()
	if dtls || cfg.Policy.MinVersion <= codec.VersionTLS12 {
		// DTLS only ever negotiates <=1.2-style cipher suites; its
		// MinVersion/MaxVersion numerically exceed VersionTLS12 despite
		// representing an older wire revision, so dtls is checked
		// explicitly rather than folded into the numeric comparison.
		offer.cipherSuites = append(append([]codec.CipherSuite{}, cfg.TLS13CipherSuites...), cfg.CipherSuites...)
	}
	if dtls {
		// DTLS version numbers count down as the protocol advances
		// (1.2 < 1.0 numerically), and this core negotiates DTLS the
		// way it negotiates TLS <=1.2: via legacy_version, not
		// supported_versions. A single offered value keeps that
		// negotiation unambiguous.
		offer.versions = []codec.Version{cfg.Policy.MaxVersion}
	} else {
		for v := cfg.Policy.MaxVersion; v >= cfg.Policy.MinVersion; v-- {
			offer.versions = append(offer.versions, v)
			if v == cfg.Policy.MinVersion {
				break
			}
		}
	}
	if cfg.PSK != nil {
		offer.pskOffers = cfg.PSK.ClientIdentities()
	}
	return &ClientHandshake{cc: cc, rl: rl, offer: offer, dtls: dtls}
}

// Step advances the handshake by at most one record-layer I/O
// operation, looping internally over phases that require no I/O
// (deriving keys, validating a just-received message) until it either
// needs more input (WantRead), has queued output the caller must flush
// (WantWrite, already flushed internally via rl.Flush — returned only
// so callers can observe progress), completes (Done), or fails
// (Failed, with the fatal alert already sent).
func (h *ClientHandshake) Step(ctx context.Context) (StepResult, error) {
	for {
		switch h.phase {
		case clientSendHello:
			if err := h.sendClientHello(ctx); err != nil {
				return h.fail(err)
			}
			h.phase = clientRecvServerHello
			return WantWrite, nil

		case clientRecvServerHello:
			msg, raw, err := h.readServerHelloOrHelloVerifyRequest(ctx)
			if err == collab.ErrWantRead {
				return WantRead, nil
			}
			if err != nil {
				return h.fail(err)
			}
			if msg.HelloVerifyRequest != nil {
				// Neither this message nor the ClientHello1 it answers
				// enters the transcript (RFC 6347 §4.2.1).
				h.dtlsCookie = msg.HelloVerifyRequest.Cookie
				h.phase = clientSendHello
				continue
			}
			h.cc.Scratch.Transcript.Update(raw)
			if err := h.processServerHello(msg.ServerHello); err != nil {
				return h.fail(err)
			}
			if h.cc.Scratch.HelloRetryRequestSent && h.cc.Negotiated.Version == 0 {
				// HRR received: re-send ClientHello2 with an updated
				// key_share for the server's selected group, then wait
				// for the real ServerHello.
				h.phase = clientSendHello
				continue
			}
			if h.cc.Negotiated.Version == codec.VersionTLS13 {
				h.phase = clientRecv13Flight
			} else if h.cc.Negotiated.Resumption.Resumed {
				h.phase = clientRecvAbbrevFinished12
			} else {
				h.phase = clientRecvServerHelloDone12
			}

		case clientRecv13Flight:
			if err := h.recv13Flight(ctx); err == collab.ErrWantRead {
				return WantRead, nil
			} else if err != nil {
				return h.fail(err)
			}
			h.phase = clientSend13Finished

		case clientSend13Finished:
			if err := h.send13Finished(ctx); err != nil {
				return h.fail(err)
			}
			h.phase = clientEstablished
			return WantWrite, nil

		case clientRecvServerHelloDone12:
			if err := h.recv12ServerFlight(ctx); err == collab.ErrWantRead {
				return WantRead, nil
			} else if err != nil {
				return h.fail(err)
			}
			h.phase = clientSend12KeyExchange

		case clientSend12KeyExchange:
			if err := h.send12ClientFlight(ctx); err != nil {
				return h.fail(err)
			}
			h.phase = clientRecvServerFinished12
			return WantWrite, nil

		case clientRecvServerFinished12:
			if err := h.recv12ServerFinished(ctx); err == collab.ErrWantRead {
				return WantRead, nil
			} else if err != nil {
				return h.fail(err)
			}
			h.phase = clientEstablished

		case clientRecvAbbrevFinished12:
			if err := h.recvAbbrevServerFinished12(ctx); err == collab.ErrWantRead {
				return WantRead, nil
			} else if err != nil {
				return h.fail(err)
			}
			h.phase = clientSendAbbrevFinished12

		case clientSendAbbrevFinished12:
			if err := h.sendAbbrevClientFinished12(ctx); err != nil {
				return h.fail(err)
			}
			h.phase = clientEstablished
			return WantWrite, nil

		case clientEstablished:
			return Done, nil
		}
	}
}

func (h *ClientHandshake) fail(err error) (StepResult, error) {
	if herr, ok := err.(*Error); ok {
		_ = h.rl.SendAlert(collab.AlertLevelFatal, herr.Alert)
		return Failed, herr
	}
	_ = h.rl.SendAlert(collab.AlertLevelFatal, collab.AlertInternalError)
	return Failed, internalErr(err, "unclassified handshake failure")
}

// readMessage reads and decodes the next handshake message but does
// NOT append it to the transcript. Callers that need the
// pre-this-message transcript hash (Finished verification) capture
// h.cc.Scratch.Transcript.Hash() before calling readMessage, then
// commit the raw bytes themselves once they're done comparing;
// everyone else calls readMessageAndCommit, which commits immediately.
func (h *ClientHandshake) readMessage(ctx context.Context, want codec.HandshakeType) (*codec.Message, []byte, error) {
	raw, err := h.rl.ReadHandshakeMessage(ctx)
	if err != nil {
		return nil, nil, err
	}
	dctx := codec.DecodeContext{Version: h.cc.Negotiated.Version, Role: RoleClient}
	hdr, body, err := codec.DecodeHeader(dctx.Version, raw)
	if err != nil {
		return nil, nil, protocolErr(collab.AlertDecodeError, "%v", err)
	}
	if hdr.Type != want {
		return nil, nil, protocolErr(collab.AlertUnexpectedMessage, "expected handshake type %d, got %d", want, hdr.Type)
	}
	msg, err := codec.DecodeMessage(dctx, hdr.Type, body[:hdr.Length])
	if err != nil {
		return nil, nil, protocolErr(collab.AlertDecodeError, "%v", err)
	}
	return msg, raw, nil
}

// readServerHelloOrHelloVerifyRequest reads the first message of a
// flight that, under DTLS, may be either the real ServerHello or a
// HelloVerifyRequest demanding a cookie retry; both share the same
// position in the state machine, so the type is discovered rather than
// asserted up front the way readMessage does for every other message.
func (h *ClientHandshake) readServerHelloOrHelloVerifyRequest(ctx context.Context) (*codec.Message, []byte, error) {
	raw, err := h.rl.ReadHandshakeMessage(ctx)
	if err != nil {
		return nil, nil, err
	}
	version := h.cc.Negotiated.Version
	if version == 0 && h.dtls {
		version = codec.VersionDTLS12
	}
	dctx := codec.DecodeContext{Version: version, Role: RoleClient}
	hdr, body, err := codec.DecodeHeader(dctx.Version, raw)
	if err != nil {
		return nil, nil, protocolErr(collab.AlertDecodeError, "%v", err)
	}
	if hdr.Type != codec.TypeServerHello && hdr.Type != codec.TypeHelloVerifyRequest {
		return nil, nil, protocolErr(collab.AlertUnexpectedMessage, "expected server_hello or hello_verify_request, got %d", hdr.Type)
	}
	msg, err := codec.DecodeMessage(dctx, hdr.Type, body[:hdr.Length])
	if err != nil {
		return nil, nil, protocolErr(collab.AlertDecodeError, "%v", err)
	}
	return msg, raw, nil
}

func (h *ClientHandshake) readMessageAndCommit(ctx context.Context, want codec.HandshakeType) (*codec.Message, error) {
	msg, raw, err := h.readMessage(ctx, want)
	if err != nil {
		return nil, err
	}
	h.cc.Scratch.Transcript.Update(raw)
	return msg, nil
}

func (h *ClientHandshake) sendClientHello(ctx context.Context) error {
	// A DTLS cookie retry must carry the exact same random the server
	// computed ClientHello1's cookie over (RFC 6347 §4.2.1); every
	// other path (including a TLS 1.3 HRR resend) draws a fresh one.
	random := h.cc.Scratch.ClientRandom
	if !(h.dtls && len(h.dtlsCookie) > 0) {
		if _, err := h.cc.Config.DRBG.Read(random[:]); err != nil {
			return internalErr(err, "reading client random")
		}
		h.cc.Scratch.ClientRandom = random
	}

	legacyVersion := codec.VersionTLS12
	if h.dtls {
		legacyVersion = h.offer.versions[0]
	}
	ch := &codec.ClientHello{
		LegacyVersion:   legacyVersion,
		Random:          random,
		LegacySessionID: nil,
		Cookie:          h.dtlsCookie,
		Extensions:      codec.NewExtensionList(),
	}
	if h.resume != nil && !h.cc.Scratch.HelloRetryRequestSent {
		ch.LegacySessionID = h.resume.SessionID
	}
	ch.CipherSuites = append(ch.CipherSuites, h.offer.cipherSuites...)
	if h.dtls || h.cc.Config.Policy.MinVersion <= codec.VersionTLS12 {
		// DTLS version numbers count down, so comparing a DTLS value
		// against the TLS 1.2 constant directly would never hold;
		// h.dtls already means "this is a <=1.2-style handshake".
		ch.Extensions.Add(codec.ExtExtendedMasterSecret, nil)
	}
	ch.Extensions.Add(codec.ExtRenegotiationInfo, codec.EncodeRenegotiationInfo(h.cc.SavedClientVerifyData))
	if !h.dtls {
		// DTLS negotiates off legacy_version alone (see offer.versions
		// construction in NewClientHandshake); TLS offers the precise
		// list so 1.3 is reachable at all.
		ch.Extensions.Add(codec.ExtSupportedVersions, codec.EncodeSupportedVersionsClient(h.offer.versions))
	}

	if len(h.offer.groups) > 0 {
		g := h.offer.groups[0]
		kex, ok := h.cc.Config.KeyExchangers[g]
		if !ok {
			return configErr("no key exchanger wired for preferred group %d", g)
		}
		priv, pub, err := kex.GenerateKeyPair(h.cc.Config.DRBG)
		if err != nil {
			return internalErr(err, "generating key_share for group %d", g)
		}
		h.priv = priv
		h.group = g
		ch.Extensions.Add(codec.ExtKeyShare, codec.EncodeKeyShareClientHello([]codec.KeyShareEntry{{Group: uint16(g), KeyExchange: pub}}))
	}

	// pre_shared_key must be the final extension (RFC 8446 §4.2.11), so
	// it is added last, after a first encode/binder-compute pass fixes
	// every earlier byte in place.
	var pskAlgs []keyschedule.HashAlg
	if len(h.offer.pskOffers) > 0 {
		identities := make([]codec.PSKIdentityEntry, len(h.offer.pskOffers))
		zeroBinders := make([][]byte, len(h.offer.pskOffers))
		for i, o := range h.offer.pskOffers {
			identities[i] = codec.PSKIdentityEntry{Identity: o.Identity, ObfuscatedTicketAge: o.ObfuscatedTicketAge}
			alg := hashAlgFromCrypto(o.Hash)
			pskAlgs = append(pskAlgs, alg)
			zeroBinders[i] = make([]byte, alg.Size())
		}
		psk := &codec.PSKExtension{Identities: identities, Binders: zeroBinders}
		pskBody, err := psk.Encode()
		if err != nil {
			return internalErr(err, "encoding pre_shared_key placeholder")
		}
		ch.Extensions.Add(codec.ExtPSKKeyExchangeModes, codec.EncodePSKKeyExchangeModes([]codec.PSKKeyExchangeMode{codec.PSKDHEKE}))
		ch.Extensions.Add(codec.ExtPreSharedKey, pskBody)
	}

	raw, err := ch.Encode()
	if err != nil {
		return internalErr(err, "encoding client_hello")
	}

	if len(h.offer.pskOffers) > 0 {
		truncated := raw[:ch.TruncatedHelloLen]
		binders := make([][]byte, len(h.offer.pskOffers))
		for i, o := range h.offer.pskOffers {
			binders[i] = keyschedule.ComputePSKBinder(pskAlgs[i], o.Secret, o.IsExternal, truncated)
		}
		psk := &codec.PSKExtension{Identities: nil, Binders: binders}
		for _, o := range h.offer.pskOffers {
			psk.Identities = append(psk.Identities, codec.PSKIdentityEntry{Identity: o.Identity, ObfuscatedTicketAge: o.ObfuscatedTicketAge})
		}
		pskBody, err := psk.Encode()
		if err != nil {
			return internalErr(err, "encoding pre_shared_key")
		}
		ch.Extensions.Add(codec.ExtPreSharedKey, pskBody)
		raw, err = ch.Encode()
		if err != nil {
			return internalErr(err, "re-encoding client_hello with psk binders")
		}
	}

	wire := codec.EncodeHeader(legacyVersion, codec.TypeClientHello, raw, 0, 0)
	if h.dtls && len(h.dtlsCookie) == 0 {
		// ClientHello1: the server hasn't issued a cookie yet, so this
		// message is excluded from the transcript per RFC 6347 §4.2.1.
		if err := h.rl.WriteHandshakeMessage(ctx, wire); err != nil {
			return internalErr(err, "writing client_hello")
		}
		return h.rl.Flush(ctx)
	}
	if !h.cc.Scratch.HelloRetryRequestSent {
		h.cc.Scratch.FirstClientHello = ch
		h.cc.Scratch.FirstClientHelloBytes = wire
	}
	h.cc.Scratch.Transcript.Update(wire)
	if err := h.rl.WriteHandshakeMessage(ctx, wire); err != nil {
		return internalErr(err, "writing client_hello")
	}
	return h.rl.Flush(ctx)
}

func (h *ClientHandshake) processServerHello(sh *codec.ServerHello) error {
	if sh.IsHelloRetryRequest() {
		h.cc.Scratch.HelloRetryRequestSent = true
		if h.cc.Scratch.Transcript.Initialized() {
			h.cc.Scratch.Transcript.RewriteForHRR(h.cc.Scratch.FirstClientHelloBytes)
		}
		if ksData, ok := sh.Extensions.Get(codec.ExtKeyShare); ok {
			if group, err := codec.DecodeHelloRetryRequestKeyShare(ksData); err == nil {
				kex, ok := h.cc.Config.KeyExchangers[collab.NamedGroup(group)]
				if ok {
					priv, pub, genErr := kex.GenerateKeyPair(h.cc.Config.DRBG)
					if genErr == nil {
						h.priv = priv
						h.group = collab.NamedGroup(group)
						h.offer.groups = []collab.NamedGroup{collab.NamedGroup(group)}
						_ = pub // unused: the resend in sendClientHello generates its own key pair for h.offer.groups[0]
					}
				}
			}
		}
		return nil
	}
	h.cc.Negotiated.Version = sh.LegacyVersion
	h.cc.Negotiated.CipherSuite = sh.CipherSuite
	// A DTLS client never sends supported_versions (see sendClientHello),
	// so it never puts TLS 1.3 on offer and has nothing to check here.
	clientOfferedTLS13 := !h.dtls && h.cc.Config.Policy.MaxVersion == codec.VersionTLS13
	if err := CheckDowngradeSentinel(clientOfferedTLS13, sh.Random); err != nil {
		return err
	}
	h.cc.Negotiated.DowngradeSentinelExpected = clientOfferedTLS13 && h.cc.Negotiated.Version != codec.VersionTLS13
	if h.cc.Negotiated.Version != codec.VersionTLS13 {
		h.cc.Scratch.ServerRandom = sh.Random
		if _, ok := sh.Extensions.Get(codec.ExtExtendedMasterSecret); ok {
			h.cc.Negotiated.ExtendedMasterSecret = true
		}
		if !h.cc.Scratch.Transcript.Initialized() {
			h.cc.Scratch.Transcript.Init(cipherSuiteHash(sh.CipherSuite))
		}
		if !h.cc.IsRenegotiation {
			if _, ok := sh.Extensions.Get(codec.ExtRenegotiationInfo); !ok {
				if allow := h.cc.Config.NoSecRenegotiationPolicy; allow == nil || !allow() {
					return protocolErr(collab.AlertHandshakeFailure, "server_hello missing renegotiation_info on initial handshake")
				}
			}
		}
		if h.resume != nil && sh.CipherSuite == h.resume.CipherSuite &&
			keyschedule.ConstantTimeCompare(sh.LegacySessionIDEcho, h.resume.SessionID) && len(h.resume.SessionID) > 0 {
			h.cc.Negotiated.Resumption = ResumptionState{Attempted: true, Resumed: true, Session: h.resume}
			h.cc.Negotiated.ExtendedMasterSecret = h.resume.ExtendedMasterSecret
		} else if h.resume != nil {
			h.cc.Negotiated.Resumption = ResumptionState{Attempted: true, Resumed: false, PSKIndex: -1}
		}
		return nil
	}

	alg := cipherSuiteHash(sh.CipherSuite)
	if !h.cc.Scratch.Transcript.Initialized() {
		h.cc.Scratch.Transcript.Init(alg)
	}
	h.cc.Scratch.Ladder = keyschedule.NewTLS13Ladder(alg)

	ksData, ok := sh.Extensions.Get(codec.ExtKeyShare)
	if !ok {
		return protocolErr(collab.AlertMissingExtension, "server_hello missing key_share for (e)psk_dhe_ke-less TLS 1.3")
	}
	entry, err := codec.DecodeKeyShareServerHello(ksData)
	if err != nil {
		return protocolErr(collab.AlertDecodeError, "%v", err)
	}
	if collab.NamedGroup(entry.Group) != h.group {
		return protocolErr(collab.AlertIllegalParameter, "server key_share group does not match client's offered group")
	}
	kex := h.cc.Config.KeyExchangers[h.group]
	shared, err := kex.Derive(h.priv, entry.KeyExchange)
	if err != nil {
		return cryptoErr("deriving (e)cdhe shared secret: %v", err)
	}
	h.cc.Scratch.SharedSecret = shared

	var pskSecret []byte
	if selData, ok := sh.Extensions.Get(codec.ExtPreSharedKey); ok {
		idx, ierr := codec.DecodePSKSelectedIdentity(selData)
		if ierr != nil {
			return protocolErr(collab.AlertDecodeError, "%v", ierr)
		}
		if int(idx) >= len(h.offer.pskOffers) {
			return protocolErr(collab.AlertIllegalParameter, "server selected_identity out of range")
		}
		offer := h.offer.pskOffers[idx]
		pskSecret = offer.Secret
		h.cc.Negotiated.Resumption = ResumptionState{Attempted: true, Resumed: true, PSKIndex: int(idx), IsExternal: offer.IsExternal}
	} else if len(h.offer.pskOffers) > 0 {
		h.cc.Negotiated.Resumption = ResumptionState{Attempted: true, Resumed: false, PSKIndex: -1}
	}

	h.cc.Scratch.Ladder.EarlySecret(pskSecret)
	h.cc.Scratch.Ladder.HandshakeSecret(shared, h.cc.Scratch.Transcript.Hash())

	aead := cipherSuiteAEAD(h.cc.Negotiated.CipherSuite)
	if err := h.rl.CtrlCCS(collab.DirRead, collab.TrafficSecret{
		Secret: h.cc.Scratch.Ladder.ServerHandshakeTraffic, Hash: alg.CryptoHash(), AEAD: aead,
	}); err != nil {
		return internalErr(err, "activating server handshake read keys")
	}
	if err := h.rl.CtrlCCS(collab.DirWrite, collab.TrafficSecret{
		Secret: h.cc.Scratch.Ladder.ClientHandshakeTraffic, Hash: alg.CryptoHash(), AEAD: aead,
	}); err != nil {
		return internalErr(err, "activating client handshake write keys")
	}
	return nil
}

func (h *ClientHandshake) recv13Flight(ctx context.Context) error {
	eeMsg, err := h.readMessageAndCommit(ctx, codec.TypeEncryptedExtensions)
	if err != nil {
		return err
	}
	if raw, ok := eeMsg.EncryptedExtensions.Extensions.Get(codec.ExtALPN); ok {
		protos, aerr := codec.DecodeALPNProtocolList(raw)
		if aerr == nil && len(protos) == 1 {
			h.cc.Negotiated.ALPNProtocol = protos[0]
		}
	}

	// A PSK-resumed 1.3 handshake skips Certificate/CertificateVerify
	// entirely (RFC 8446 §4.4): the binder already authenticated the
	// peer's possession of the PSK.
	if !h.cc.Negotiated.Resumption.Resumed {
		certMsg, err := h.readMessageAndCommit(ctx, codec.TypeCertificate)
		if err != nil {
			return err
		}
		chain := make([][]byte, 0, len(certMsg.Certificate.Entries))
		for _, e := range certMsg.Certificate.Entries {
			chain = append(chain, e.Data)
		}
		peer, err := h.cc.Config.Certificates.ValidatePeerChain(chain, h.offer.serverName)
		if err != nil {
			return protocolErr(collab.AlertBadCertificate, "server certificate chain: %v", err)
		}

		preCVHash := h.cc.Scratch.Transcript.Hash()
		cvMsg, err := h.readMessageAndCommit(ctx, codec.TypeCertificateVerify)
		if err != nil {
			return err
		}
		scheme := collab.SignatureScheme(cvMsg.CertificateVerify.Algorithm)
		digest := keyschedule.CertificateVerifyContext(h.cc.Scratch.Transcript.Alg(), preCVHash, false /* isClient */)
		if err := peer.Verifier.Verify(scheme, digest, cvMsg.CertificateVerify.Signature); err != nil {
			return protocolErr(collab.AlertDecryptError, "server certificate_verify: %v", err)
		}
	}

	// The server Finished's verify_data is an HMAC over the transcript
	// of every message up to but excluding Finished itself, so the hash
	// must be snapshotted before this message's raw bytes are
	// committed to the transcript.
	preFinishedHash := h.cc.Scratch.Transcript.Hash()
	finMsg, raw, err := h.readMessage(ctx, codec.TypeFinished)
	if err != nil {
		return err
	}
	serverFinishedKey := h.cc.Scratch.Ladder.FinishedKey(h.cc.Scratch.Ladder.ServerHandshakeTraffic)
	expected := keyschedule.VerifyDataTLS13(h.cc.Scratch.Transcript.Alg(), serverFinishedKey, preFinishedHash)
	if !keyschedule.ConstantTimeCompare(expected, finMsg.Finished.VerifyData) {
		return protocolErr(collab.AlertDecryptError, "server finished verify_data mismatch")
	}
	h.cc.Scratch.Transcript.Update(raw)
	h.cc.Scratch.Ladder.MasterSecret(h.cc.Scratch.Transcript.Hash())
	h.cc.SavedServerVerifyData = finMsg.Finished.VerifyData

	hashAlg := h.cc.Scratch.Transcript.Alg()
	aead := cipherSuiteAEAD(h.cc.Negotiated.CipherSuite)
	if err := h.rl.CtrlCCS(collab.DirRead, collab.TrafficSecret{
		Secret: h.cc.Scratch.Ladder.ServerAppTraffic, Hash: hashAlg.CryptoHash(), AEAD: aead,
	}); err != nil {
		return internalErr(err, "activating server application read keys")
	}
	return nil
}

func (h *ClientHandshake) send13Finished(ctx context.Context) error {
	alg := h.cc.Scratch.Transcript.Alg()
	finishedKey := h.cc.Scratch.Ladder.FinishedKey(h.cc.Scratch.Ladder.ClientHandshakeTraffic)
	verifyData := keyschedule.VerifyDataTLS13(alg, finishedKey, h.cc.Scratch.Transcript.Hash())
	fin := &codec.Finished{VerifyData: verifyData}
	body := fin.Encode()
	wire := codec.EncodeHeader(h.cc.Negotiated.Version, codec.TypeFinished, body, 0, 0)
	h.cc.Scratch.Transcript.Update(wire)
	if err := h.rl.WriteHandshakeMessage(ctx, wire); err != nil {
		return internalErr(err, "writing client finished")
	}
	h.cc.SavedClientVerifyData = verifyData
	h.cc.Scratch.Ladder.ResumptionMasterSecret(h.cc.Scratch.Transcript.Hash())

	aead := cipherSuiteAEAD(h.cc.Negotiated.CipherSuite)
	if err := h.rl.CtrlCCS(collab.DirWrite, collab.TrafficSecret{
		Secret: h.cc.Scratch.Ladder.ClientAppTraffic, Hash: alg.CryptoHash(), AEAD: aead,
	}); err != nil {
		return internalErr(err, "activating client application write keys")
	}
	return h.rl.Flush(ctx)
}

func (h *ClientHandshake) recv12ServerFlight(ctx context.Context) error {
	certMsg, err := h.readMessageAndCommit(ctx, codec.TypeCertificate)
	if err != nil {
		return err
	}
	chain := make([][]byte, 0, len(certMsg.Certificate.Entries))
	for _, e := range certMsg.Certificate.Entries {
		chain = append(chain, e.Data)
	}
	peer, err := h.cc.Config.Certificates.ValidatePeerChain(chain, h.offer.serverName)
	if err != nil {
		return protocolErr(collab.AlertBadCertificate, "server certificate chain: %v", err)
	}
	h.cc.Scratch.PeerCertificate = peer

	if cipherSuiteIsECDHE(h.cc.Negotiated.CipherSuite) {
		dctx := codec.DecodeContext{Version: h.cc.Negotiated.Version, Role: RoleClient, ServerKeyExchangeHasSignature: true}
		raw, err := h.rl.ReadHandshakeMessage(ctx)
		if err != nil {
			return err
		}
		hdr, body, derr := codec.DecodeHeader(dctx.Version, raw)
		if derr != nil {
			return protocolErr(collab.AlertDecodeError, "%v", derr)
		}
		if hdr.Type != codec.TypeServerKeyExchange {
			return protocolErr(collab.AlertUnexpectedMessage, "expected server_key_exchange, got %d", hdr.Type)
		}
		msg, derr := codec.DecodeMessage(dctx, hdr.Type, body[:hdr.Length])
		if derr != nil {
			return protocolErr(collab.AlertDecodeError, "%v", derr)
		}
		ske := msg.ServerKeyExchange
		scheme := collab.SignatureScheme(ske.SignatureAlg)
		params, perr := ske.Encode(h.cc.Negotiated.Version, false)
		if perr != nil {
			return internalErr(perr, "re-encoding server_key_exchange params for verification")
		}
		digest := legacySignedContentDigest(scheme, h.cc.Scratch.ClientRandom[:], h.cc.Scratch.ServerRandom[:], params)
		if err := VerifyCertificateSignature(peer, scheme, digest, ske.Signature); err != nil {
			return err
		}
		kex, ok := h.cc.Config.KeyExchangers[collab.NamedGroup(ske.Group)]
		if !ok {
			return configErr("no key exchanger wired for server's chosen group %d", ske.Group)
		}
		priv, pub, gerr := kex.GenerateKeyPair(h.cc.Config.DRBG)
		if gerr != nil {
			return internalErr(gerr, "generating client ECDHE key pair")
		}
		h.priv = priv
		h.pub = pub
		h.group = collab.NamedGroup(ske.Group)
		h.cc.Scratch.PeerKeyShare = ske.PublicKey
		h.cc.Scratch.Transcript.Update(raw)
	}

	doneRaw, err := h.rl.ReadHandshakeMessage(ctx)
	if err != nil {
		return err
	}
	hdr, _, derr := codec.DecodeHeader(h.cc.Negotiated.Version, doneRaw)
	if derr != nil {
		return protocolErr(collab.AlertDecodeError, "%v", derr)
	}
	if hdr.Type != codec.TypeServerHelloDone {
		return protocolErr(collab.AlertUnexpectedMessage, "expected server_hello_done, got %d", hdr.Type)
	}
	h.cc.Scratch.Transcript.Update(doneRaw)
	return nil
}

func (h *ClientHandshake) send12ClientFlight(ctx context.Context) error {
	cke := &codec.ClientKeyExchange{}
	var pms []byte
	if cipherSuiteIsECDHE(h.cc.Negotiated.CipherSuite) {
		kex := h.cc.Config.KeyExchangers[h.group]
		shared, err := kex.Derive(h.priv, h.cc.Scratch.PeerKeyShare)
		if err != nil {
			return cryptoErr("ecdhe client_key_exchange: %v", err)
		}
		pms = shared
		cke.Kind = codec.CKEECDHE
		cke.ECPoint = h.pub
	} else {
		pub, err := rsaPublicKeyFromChain(h.cc.Scratch.PeerCertificate.RawChain)
		if err != nil {
			return protocolErr(collab.AlertBadCertificate, "server certificate is not a usable RSA key: %v", err)
		}
		var rawPMS [48]byte
		rawPMS[0] = byte(h.cc.Negotiated.Version >> 8)
		rawPMS[1] = byte(h.cc.Negotiated.Version)
		if _, err := h.cc.Config.DRBG.Read(rawPMS[2:]); err != nil {
			return internalErr(err, "reading pre_master_secret randomness")
		}
		enc, err := rsaEncryptPreMasterSecret(h.cc.Config.DRBG, pub, rawPMS[:])
		if err != nil {
			return cryptoErr("rsa-encrypting pre_master_secret: %v", err)
		}
		pms = rawPMS[:]
		cke.Kind = codec.CKERSA
		cke.EncryptedPreMasterSecret = enc
	}

	body, err := cke.Encode()
	if err != nil {
		return internalErr(err, "encoding client_key_exchange")
	}
	wire := codec.EncodeHeader(h.cc.Negotiated.Version, codec.TypeClientKeyExchange, body, 0, 0)
	h.cc.Scratch.Transcript.Update(wire)
	if err := h.rl.WriteHandshakeMessage(ctx, wire); err != nil {
		return internalErr(err, "writing client_key_exchange")
	}

	alg := cipherSuiteHash(h.cc.Negotiated.CipherSuite)
	master := keyschedule.MasterSecretLegacy(alg, pms, h.cc.Scratch.ClientRandom[:], h.cc.Scratch.ServerRandom[:], h.cc.Negotiated.ExtendedMasterSecret, h.cc.Scratch.Transcript.Hash())
	h.cc.Scratch.PendingMasterSecret = master

	if err := h.rl.CtrlCCS(collab.DirWrite, collab.TrafficSecret{
		Secret: master, Hash: alg.CryptoHash(), AEAD: cipherSuiteAEAD(h.cc.Negotiated.CipherSuite),
	}); err != nil {
		return internalErr(err, "activating client write keys")
	}

	verifyData := keyschedule.VerifyDataLegacy(alg, master, "client finished", h.cc.Scratch.Transcript.Hash())
	fin := &codec.Finished{VerifyData: verifyData}
	finWire := codec.EncodeHeader(h.cc.Negotiated.Version, codec.TypeFinished, fin.Encode(), 0, 0)
	h.cc.Scratch.Transcript.Update(finWire)
	if err := h.rl.WriteHandshakeMessage(ctx, finWire); err != nil {
		return internalErr(err, "writing client finished")
	}
	h.cc.SavedClientVerifyData = verifyData
	return h.rl.Flush(ctx)
}

func (h *ClientHandshake) recvAbbrevServerFinished12(ctx context.Context) error {
	alg := cipherSuiteHash(h.cc.Negotiated.CipherSuite)
	master := h.cc.Negotiated.Resumption.Session.MasterSecret
	if err := h.rl.CtrlCCS(collab.DirRead, collab.TrafficSecret{
		Secret: master, Hash: alg.CryptoHash(), AEAD: cipherSuiteAEAD(h.cc.Negotiated.CipherSuite),
	}); err != nil {
		return internalErr(err, "activating client read keys for abbreviated handshake")
	}
	preFinishedHash := h.cc.Scratch.Transcript.Hash()
	finMsg, raw, err := h.readMessage(ctx, codec.TypeFinished)
	if err != nil {
		return err
	}
	expected := keyschedule.VerifyDataLegacy(alg, master, "server finished", preFinishedHash)
	if !keyschedule.ConstantTimeCompare(expected, finMsg.Finished.VerifyData) {
		return protocolErr(collab.AlertDecryptError, "server finished verify_data mismatch")
	}
	h.cc.Scratch.Transcript.Update(raw)
	h.cc.SavedServerVerifyData = finMsg.Finished.VerifyData
	return nil
}

func (h *ClientHandshake) sendAbbrevClientFinished12(ctx context.Context) error {
	alg := cipherSuiteHash(h.cc.Negotiated.CipherSuite)
	master := h.cc.Negotiated.Resumption.Session.MasterSecret
	if err := h.rl.CtrlCCS(collab.DirWrite, collab.TrafficSecret{
		Secret: master, Hash: alg.CryptoHash(), AEAD: cipherSuiteAEAD(h.cc.Negotiated.CipherSuite),
	}); err != nil {
		return internalErr(err, "activating client write keys for abbreviated handshake")
	}
	verifyData := keyschedule.VerifyDataLegacy(alg, master, "client finished", h.cc.Scratch.Transcript.Hash())
	fin := &codec.Finished{VerifyData: verifyData}
	wire := codec.EncodeHeader(h.cc.Negotiated.Version, codec.TypeFinished, fin.Encode(), 0, 0)
	h.cc.Scratch.Transcript.Update(wire)
	if err := h.rl.WriteHandshakeMessage(ctx, wire); err != nil {
		return internalErr(err, "writing client finished")
	}
	h.cc.SavedClientVerifyData = verifyData
	return h.rl.Flush(ctx)
}

func (h *ClientHandshake) recv12ServerFinished(ctx context.Context) error {
	alg := cipherSuiteHash(h.cc.Negotiated.CipherSuite)
	if err := h.rl.CtrlCCS(collab.DirRead, collab.TrafficSecret{
		Secret: h.cc.Scratch.PendingMasterSecret, Hash: alg.CryptoHash(), AEAD: cipherSuiteAEAD(h.cc.Negotiated.CipherSuite),
	}); err != nil {
		return internalErr(err, "activating client read keys")
	}
	preFinishedHash := h.cc.Scratch.Transcript.Hash()
	finMsg, raw, err := h.readMessage(ctx, codec.TypeFinished)
	if err != nil {
		return err
	}
	expected := keyschedule.VerifyDataLegacy(alg, h.cc.Scratch.PendingMasterSecret, "server finished", preFinishedHash)
	if !keyschedule.ConstantTimeCompare(expected, finMsg.Finished.VerifyData) {
		return protocolErr(collab.AlertDecryptError, "server finished verify_data mismatch")
	}
	h.cc.Scratch.Transcript.Update(raw)
	h.cc.SavedServerVerifyData = finMsg.Finished.VerifyData
	return nil
}
