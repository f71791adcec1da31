package handshake

import (
	"context"
	"time"

	"github.com/go-hitls/tlscore/internal/codec"
	"github.com/go-hitls/tlscore/internal/collab"
	"github.com/go-hitls/tlscore/internal/extension"
	"github.com/go-hitls/tlscore/internal/keyschedule"
)

// serverPhase enumerates the server's TRY_SEND_*/TRY_RECV_* states,
// abridged the same way clientPhase is.
type serverPhase int

const (
	serverRecvClientHello serverPhase = iota
	serverSendHello13     // ServerHello, EncryptedExtensions, Certificate, CertificateVerify, Finished
	serverRecvClientFinished13
	serverSendHello12 // ServerHello, Certificate, [ServerKeyExchange], ServerHelloDone
	serverRecvClientKeyExchange12
	serverSendServerFinished12
	serverSendAbbrevFinished12   // resumed <=1.2: ServerHello already sent, jump straight to [CCS, Finished]
	serverRecvAbbrevFinished12
	serverEstablished
)

// ServerHandshake drives one server-side handshake. Construct with
// NewServerHandshake and call Step repeatedly until it returns Done or
// Failed.
type ServerHandshake struct {
	cc    *ConnectionContext
	rl    collab.RecordLayer
	phase serverPhase

	group          collab.NamedGroup
	priv           collab.KeyExchangePrivate
	ident          *collab.LocalIdentity
	ch             *codec.ClientHello
	serverKeyShare codec.KeyShareEntry

	// phaContext is the certificate_request_context of the most
	// recently issued post-handshake CertificateRequest, used to match
	// the client's eventual Certificate response.
	phaContext []byte

	// dtls is fixed at construction from cfg.Policy.MaxVersion. Until
	// the first ClientHello is negotiated, h.cc.Negotiated.Version is
	// still zero, so readMessage needs this to pick DTLS's 12-byte
	// handshake header over TLS's 4-byte one.
	dtls bool
}

// NewServerHandshake allocates a server handshake bound to rl.
func NewServerHandshake(cfg *Config, rl collab.RecordLayer) *ServerHandshake {
	cc := &ConnectionContext{Role: RoleServer, Config: cfg, Scratch: NewHandshakeScratch()}
	return &ServerHandshake{cc: cc, rl: rl, dtls: cfg.Policy.MaxVersion.IsDTLS()}
}

func (h *ServerHandshake) Step(ctx context.Context) (StepResult, error) {
	for {
		switch h.phase {
		case serverRecvClientHello:
			msg, raw, err := h.readMessage(ctx, codec.TypeClientHello)
			if err == collab.ErrWantRead {
				return WantRead, nil
			}
			if err != nil {
				return h.fail(err)
			}
			if msg.ClientHello.LegacyVersion.IsDTLS() {
				verified, cerr := h.checkDTLSCookie(msg.ClientHello)
				if cerr != nil {
					return h.fail(cerr)
				}
				if !verified {
					if werr := h.sendHelloVerifyRequest(ctx, msg.ClientHello); werr != nil {
						return h.fail(werr)
					}
					// ClientHello1/HelloVerifyRequest are excluded from
					// the transcript (RFC 6347 §4.2.1); stay in this
					// phase and wait for the cookie-bearing ClientHello2.
					return WantWrite, nil
				}
			}
			if !h.cc.Scratch.HelloRetryRequestSent {
				h.cc.Scratch.FirstClientHelloBytes = raw
			} else {
				h.cc.Scratch.Transcript.Update(raw)
			}
			retry, err := h.processClientHello(msg.ClientHello, raw)
			if err != nil {
				return h.fail(err)
			}
			if !h.cc.Scratch.HelloRetryRequestSent && !retry {
				// No HRR occurred: the hash algorithm is now known
				// (cipher suite just selected), so commit ClientHello1
				// to the transcript now, in its proper position before
				// ServerHello.
				h.cc.Scratch.Transcript.Update(raw)
			}
			if retry {
				// HelloRetryRequest already queued by
				// processClientHello; wait for ClientHello2.
				h.phase = serverRecvClientHello
				return WantWrite, nil
			}
			if h.cc.Negotiated.Version == codec.VersionTLS13 {
				h.phase = serverSendHello13
			} else {
				h.phase = serverSendHello12
			}

		case serverSendHello13:
			if err := h.sendServerFlight13(ctx); err != nil {
				return h.fail(err)
			}
			h.phase = serverRecvClientFinished13
			return WantWrite, nil

		case serverRecvClientFinished13:
			if err := h.recvClientFinished13(ctx); err == collab.ErrWantRead {
				return WantRead, nil
			} else if err != nil {
				return h.fail(err)
			}
			h.phase = serverEstablished

		case serverSendHello12:
			if err := h.sendServerFlight12(ctx); err != nil {
				return h.fail(err)
			}
			if h.cc.Negotiated.Resumption.Resumed {
				h.phase = serverSendAbbrevFinished12
			} else {
				h.phase = serverRecvClientKeyExchange12
			}
			return WantWrite, nil

		case serverSendAbbrevFinished12:
			if err := h.sendAbbrevFinished12(ctx); err != nil {
				return h.fail(err)
			}
			h.phase = serverRecvAbbrevFinished12
			return WantWrite, nil

		case serverRecvAbbrevFinished12:
			if err := h.recvAbbrevFinished12(ctx); err == collab.ErrWantRead {
				return WantRead, nil
			} else if err != nil {
				return h.fail(err)
			}
			h.phase = serverEstablished

		case serverRecvClientKeyExchange12:
			if err := h.recvClientKeyExchange12(ctx); err == collab.ErrWantRead {
				return WantRead, nil
			} else if err != nil {
				return h.fail(err)
			}
			h.phase = serverSendServerFinished12

		case serverSendServerFinished12:
			if err := h.sendServerFinished12(ctx); err != nil {
				return h.fail(err)
			}
			h.phase = serverEstablished
			return WantWrite, nil

		case serverEstablished:
			return Done, nil
		}
	}
}

func (h *ServerHandshake) fail(err error) (StepResult, error) {
	if herr, ok := err.(*Error); ok {
		_ = h.rl.SendAlert(collab.AlertLevelFatal, herr.Alert)
		return Failed, herr
	}
	_ = h.rl.SendAlert(collab.AlertLevelFatal, collab.AlertInternalError)
	return Failed, internalErr(err, "unclassified handshake failure")
}

// readMessage mirrors ClientHandshake.readMessage: decode without
// committing to the transcript, so the few callers that need a
// pre-message snapshot (client Finished verification) can take it.
func (h *ServerHandshake) readMessage(ctx context.Context, want codec.HandshakeType) (*codec.Message, []byte, error) {
	raw, err := h.rl.ReadHandshakeMessage(ctx)
	if err != nil {
		return nil, nil, err
	}
	version := h.cc.Negotiated.Version
	if version == 0 && h.dtls {
		version = codec.VersionDTLS12
	}
	dctx := codec.DecodeContext{Version: version, Role: RoleServer}
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

func (h *ServerHandshake) readMessageAndCommit(ctx context.Context, want codec.HandshakeType) (*codec.Message, error) {
	msg, raw, err := h.readMessage(ctx, want)
	if err != nil {
		return nil, err
	}
	h.cc.Scratch.Transcript.Update(raw)
	return msg, nil
}

// processClientHello negotiates version/cipher-suite/group/ALPN/SNI and
// either queues a HelloRetryRequest (returning retry=true, leaving
// h.phase waiting on ClientHello2) or a real ServerHello.
func (h *ServerHandshake) processClientHello(ch *codec.ClientHello, raw []byte) (retry bool, err error) {
	cfg := h.cc.Config
	policy := cfg.Policy

	var supportedVersions []codec.Version
	if raw, ok := ch.Extensions.Get(codec.ExtSupportedVersions); ok {
		supportedVersions, err = codec.DecodeSupportedVersionsClient(raw)
		if err != nil {
			return false, protocolErr(collab.AlertDecodeError, "%v", err)
		}
	}
	version, err := extension.SelectVersion(policy, supportedVersions, ch.LegacyVersion, cfg.PSK != nil || cfg.Certificates != nil)
	if err != nil {
		nerr := err.(*extension.NegotiationError)
		return false, protocolErr(nerr.Alert, "%s", nerr.Error())
	}

	if name, ok, sniErr := decodeSNI(ch); sniErr == nil && ok {
		sniOK, nerr := extension.NegotiateSNI(policy, name)
		if nerr != nil {
			ne := nerr.(*extension.NegotiationError)
			return false, protocolErr(ne.Alert, "%s", ne.Error())
		}
		h.cc.Negotiated.ServerName = name
		h.cc.Negotiated.SNIOK = sniOK
	}

	if alpn, ok := ch.Extensions.Get(codec.ExtALPN); ok {
		offered, aerr := codec.DecodeALPNProtocolList(alpn)
		if aerr != nil {
			return false, protocolErr(collab.AlertDecodeError, "%v", aerr)
		}
		chosen, nerr := extension.NegotiateALPN(policy, offered)
		if nerr != nil {
			ne := nerr.(*extension.NegotiationError)
			return false, protocolErr(ne.Alert, "%s", ne.Error())
		}
		h.cc.Negotiated.ALPNProtocol = chosen
	}

	var renegValue []byte
	peerSupportsSecureRenego := false
	if v, ok := ch.Extensions.Get(codec.ExtRenegotiationInfo); ok {
		decoded, derr := codec.DecodeRenegotiationInfo(v)
		if derr != nil {
			return false, protocolErr(collab.AlertDecodeError, "%v", derr)
		}
		renegValue = decoded
		peerSupportsSecureRenego = true
	} else {
		for _, cs := range ch.CipherSuites {
			if cs == codec.CipherSuiteEmptyRenegotiationInfoSCSV {
				peerSupportsSecureRenego = true
				break
			}
		}
	}
	if err := CheckRenegotiationAllowed(cfg, h.cc.IsRenegotiation, peerSupportsSecureRenego, renegValue, h.cc.SavedClientVerifyData); err != nil {
		return false, err
	}

	h.ch = ch
	h.cc.Negotiated.Version = version

	if version == codec.VersionTLS13 {
		if _, ok := ch.Extensions.Get(codec.ExtPostHandshakeAuth); ok {
			NotePostHandshakeAuthExtension(&h.cc.Negotiated, true)
		}
		return h.processClientHello13(ch, raw)
	}
	return false, h.processClientHello12(ch)
}

func decodeSNI(ch *codec.ClientHello) (string, bool, error) {
	raw, ok := ch.Extensions.Get(codec.ExtServerName)
	if !ok {
		return "", false, nil
	}
	return codec.DecodeServerName(raw)
}

func (h *ServerHandshake) processClientHello13(ch *codec.ClientHello, raw []byte) (retry bool, err error) {
	cfg := h.cc.Config

	cs, err := extension.SelectCipherSuite(cfg.Policy, ch.CipherSuites, func(candidate codec.CipherSuite) bool {
		for _, allowed := range cfg.TLS13CipherSuites {
			if candidate == allowed {
				return true
			}
		}
		return false
	})
	if err != nil {
		nerr := err.(*extension.NegotiationError)
		return false, protocolErr(nerr.Alert, "%s", nerr.Error())
	}
	h.cc.Negotiated.CipherSuite = cs

	var clientGroups []collab.NamedGroup
	if raw, ok := ch.Extensions.Get(codec.ExtSupportedGroups); ok {
		wire, gerr := codec.DecodeSupportedGroups(raw)
		if gerr != nil {
			return false, protocolErr(collab.AlertDecodeError, "%v", gerr)
		}
		for _, g := range wire {
			clientGroups = append(clientGroups, collab.NamedGroup(g))
		}
	}
	group, err := extension.SelectGroup(cfg.Policy, clientGroups, func(g collab.NamedGroup) bool {
		_, ok := cfg.KeyExchangers[g]
		return ok
	})
	if err != nil {
		nerr := err.(*extension.NegotiationError)
		return false, protocolErr(nerr.Alert, "%s", nerr.Error())
	}

	var clientShares []codec.KeyShareEntry
	if raw, ok := ch.Extensions.Get(codec.ExtKeyShare); ok {
		clientShares, err = codec.DecodeKeyShareClientHello(raw)
		if err != nil {
			return false, protocolErr(collab.AlertDecodeError, "%v", err)
		}
	}
	var peerShare []byte
	for _, e := range clientShares {
		if collab.NamedGroup(e.Group) == group {
			peerShare = e.KeyExchange
			break
		}
	}
	if peerShare == nil {
		// The client didn't pre-send a share for our chosen group:
		// HelloRetryRequest asking for exactly that group.
		if h.cc.Scratch.HelloRetryRequestSent {
			return false, protocolErr(collab.AlertIllegalParameter, "client's second key_share still missing selected group")
		}
		return true, h.sendHelloRetryRequest(group)
	}

	h.group = group
	kex := cfg.KeyExchangers[group]
	priv, pub, err := kex.GenerateKeyPair(cfg.DRBG)
	if err != nil {
		return false, internalErr(err, "generating server key_share for group %d", group)
	}
	h.priv = priv

	var random [32]byte
	if _, err := cfg.DRBG.Read(random[:]); err != nil {
		return false, internalErr(err, "reading server random")
	}
	h.cc.Scratch.ServerRandom = random

	alg := cipherSuiteHash(h.cc.Negotiated.CipherSuite)
	if !h.cc.Scratch.Transcript.Initialized() {
		h.cc.Scratch.Transcript.Init(alg)
	}
	h.cc.Scratch.Ladder = keyschedule.NewTLS13Ladder(alg)

	shared, err := kex.Derive(priv, peerShare)
	if err != nil {
		return false, cryptoErr("deriving (e)cdhe shared secret: %v", err)
	}
	h.cc.Scratch.SharedSecret = shared
	h.cc.Scratch.KeyExchangePrivate = priv
	h.cc.Scratch.PeerKeyShare = peerShare

	h.serverKeyShare = codec.KeyShareEntry{Group: uint16(group), KeyExchange: pub}

	if pskData, ok := ch.Extensions.Get(codec.ExtPreSharedKey); ok {
		if _, ok := ch.Extensions.Get(codec.ExtPSKKeyExchangeModes); !ok {
			return false, protocolErr(collab.AlertMissingExtension, "pre_shared_key offered without psk_key_exchange_modes")
		}
		psk, perr := codec.DecodePSKExtension(pskData)
		if perr != nil {
			return false, protocolErr(collab.AlertDecodeError, "%v", perr)
		}
		// raw carries the 4-byte TLS handshake header; TruncatedHelloLen
		// counts from the start of the body, the same prefix the client
		// computes its binders over.
		body := raw[4:]
		if ch.TruncatedHelloLen == 0 || ch.TruncatedHelloLen > len(body) {
			return false, protocolErr(collab.AlertDecodeError, "pre_shared_key truncated binder offset invalid")
		}
		res, rerr := ResolvePSKBinder(cfg, psk, body[:ch.TruncatedHelloLen])
		if rerr != nil {
			return false, rerr
		}
		if res.Resumed && res.Session.CipherSuite != 0 && cipherSuiteHash(res.Session.CipherSuite) != alg {
			// RFC 8446 §4.2.11: a PSK's hash must match the negotiated
			// cipher suite's hash, or the binder can't be recomputed
			// consistently; treat as not-resumed rather than aborting.
			res = ResumptionState{Attempted: true, Resumed: false, PSKIndex: -1}
		}
		h.cc.Negotiated.Resumption = res
	}
	return false, nil
}

func (h *ServerHandshake) processClientHello12(ch *codec.ClientHello) error {
	cfg := h.cc.Config

	// During renegotiation, a peer that signals neither renegotiation_info
	// nor the SCSV gets a full handshake, whatever ResumptionOnRenego says.
	secureRenego := !h.cc.IsRenegotiation
	if _, ok := ch.Extensions.Get(codec.ExtRenegotiationInfo); ok {
		secureRenego = true
	}
	for _, cs := range ch.CipherSuites {
		if cs == codec.CipherSuiteEmptyRenegotiationInfoSCSV {
			secureRenego = true
		}
	}
	if len(ch.LegacySessionID) > 0 && cfg.Sessions != nil && secureRenego && CanResumeWhileRenegotiating(cfg, h.cc.IsRenegotiation) {
		if sv, ok := FindSessionByID(cfg.Sessions, ch.LegacySessionID); ok &&
			MatchResumption(sv, ch.CipherSuites, h.cc.Negotiated.Version, cfg.SessionIDContext) {
			h.cc.Negotiated.CipherSuite = sv.CipherSuite
			h.cc.Negotiated.ExtendedMasterSecret = sv.ExtendedMasterSecret
			h.cc.Negotiated.Resumption = ResumptionState{Attempted: true, Resumed: true, Session: sv}
			if !h.cc.Scratch.Transcript.Initialized() {
				h.cc.Scratch.Transcript.Init(cipherSuiteHash(sv.CipherSuite))
			}
			var random [32]byte
			if _, err := cfg.DRBG.Read(random[:]); err != nil {
				return internalErr(err, "reading server random")
			}
			WriteDowngradeSentinel(&random, cfg.Policy.MaxVersion == codec.VersionTLS13, codecTLS12)
			h.cc.Scratch.ServerRandom = random
			h.cc.Scratch.ClientRandom = ch.Random
			h.cc.Scratch.ClientHelloSessionIDEcho = ch.LegacySessionID
			h.cc.Scratch.PendingMasterSecret = sv.MasterSecret
			return nil
		}
		h.cc.Negotiated.Resumption = ResumptionState{Attempted: true, Resumed: false, PSKIndex: -1}
	}

	cs, err := extension.SelectCipherSuite(cfg.Policy, ch.CipherSuites, func(codec.CipherSuite) bool { return true })
	if err != nil {
		nerr := err.(*extension.NegotiationError)
		return protocolErr(nerr.Alert, "%s", nerr.Error())
	}
	h.cc.Negotiated.CipherSuite = cs
	if !h.cc.Scratch.Transcript.Initialized() {
		h.cc.Scratch.Transcript.Init(cipherSuiteHash(cs))
	}

	var random [32]byte
	if _, err := cfg.DRBG.Read(random[:]); err != nil {
		return internalErr(err, "reading server random")
	}
	WriteDowngradeSentinel(&random, cfg.Policy.MaxVersion == codec.VersionTLS13, codecTLS12)
	h.cc.Scratch.ServerRandom = random
	h.cc.Scratch.ClientRandom = ch.Random
	if cfg.Sessions != nil && cfg.SessionLifetimeSeconds > 0 {
		newID := make([]byte, 32)
		if _, err := cfg.DRBG.Read(newID); err == nil {
			h.cc.Scratch.ClientHelloSessionIDEcho = newID
		}
	} else {
		h.cc.Scratch.ClientHelloSessionIDEcho = ch.LegacySessionID
	}
	if _, ok := ch.Extensions.Get(codec.ExtExtendedMasterSecret); ok {
		h.cc.Negotiated.ExtendedMasterSecret = true
	} else if cfg.Policy.RequireExtendedMasterSecret {
		return protocolErr(collab.AlertHandshakeFailure, "peer did not offer extended_master_secret but policy requires it")
	}

	var clientGroups []collab.NamedGroup
	if raw, ok := ch.Extensions.Get(codec.ExtSupportedGroups); ok {
		wire, gerr := codec.DecodeSupportedGroups(raw)
		if gerr != nil {
			return protocolErr(collab.AlertDecodeError, "%v", gerr)
		}
		for _, g := range wire {
			clientGroups = append(clientGroups, collab.NamedGroup(g))
		}
	}
	group, gerr := extension.SelectGroup(cfg.Policy, clientGroups, func(g collab.NamedGroup) bool {
		_, ok := cfg.KeyExchangers[g]
		return ok
	})
	if gerr == nil {
		h.group = group
	}
	return nil
}

func (h *ServerHandshake) sendHelloRetryRequest(group collab.NamedGroup) error {
	h.cc.Scratch.HelloRetryRequestSent = true
	sh := &codec.ServerHello{
		LegacyVersion:       codec.VersionTLS12,
		Random:              codec.HelloRetryRequestRandom,
		LegacySessionIDEcho: h.ch.LegacySessionID,
		CipherSuite:         h.cc.Negotiated.CipherSuite,
		Extensions:          codec.NewExtensionList(),
	}
	sh.Extensions.Add(codec.ExtSupportedVersions, codec.EncodeSupportedVersionsServer(codec.VersionTLS13))
	sh.Extensions.Add(codec.ExtKeyShare, codec.EncodeHelloRetryRequestKeyShare(uint16(group)))
	raw, err := sh.Encode()
	if err != nil {
		return internalErr(err, "encoding hello_retry_request")
	}
	wire := codec.EncodeHeader(codec.VersionTLS12, codec.TypeServerHello, raw, 0, 0)
	if !h.cc.Scratch.Transcript.Initialized() {
		h.cc.Scratch.Transcript.Init(cipherSuiteHash(h.cc.Negotiated.CipherSuite))
	}
	h.cc.Scratch.Transcript.RewriteForHRR(h.cc.Scratch.FirstClientHelloBytes)
	h.cc.Scratch.Transcript.Update(wire)
	if err := h.rl.WriteHandshakeMessage(context.Background(), wire); err != nil {
		return internalErr(err, "writing hello_retry_request")
	}
	return h.rl.Flush(context.Background())
}

func (h *ServerHandshake) sendServerFlight13(ctx context.Context) error {
	cfg := h.cc.Config

	sh := &codec.ServerHello{
		LegacyVersion:       codec.VersionTLS12,
		Random:              h.cc.Scratch.ServerRandom,
		LegacySessionIDEcho: h.ch.LegacySessionID,
		CipherSuite:         h.cc.Negotiated.CipherSuite,
		Extensions:          codec.NewExtensionList(),
	}
	sh.Extensions.Add(codec.ExtSupportedVersions, codec.EncodeSupportedVersionsServer(codec.VersionTLS13))
	sh.Extensions.Add(codec.ExtKeyShare, codec.EncodeKeyShareServerHello(h.serverKeyShare))

	resumption := h.cc.Negotiated.Resumption
	var pskSecret []byte
	if resumption.Resumed {
		pskSecret = resumption.Session.MasterSecret
		sh.Extensions.Add(codec.ExtPreSharedKey, codec.EncodePSKSelectedIdentity(uint16(resumption.PSKIndex)))
	}

	raw, err := sh.Encode()
	if err != nil {
		return internalErr(err, "encoding server_hello")
	}
	wire := codec.EncodeHeader(codec.VersionTLS12, codec.TypeServerHello, raw, 0, 0)
	h.cc.Scratch.Transcript.Update(wire)
	if err := h.rl.WriteHandshakeMessage(ctx, wire); err != nil {
		return internalErr(err, "writing server_hello")
	}

	h.cc.Scratch.Ladder.EarlySecret(pskSecret)
	h.cc.Scratch.Ladder.HandshakeSecret(h.cc.Scratch.SharedSecret, h.cc.Scratch.Transcript.Hash())

	hashAlg := cipherSuiteHash(h.cc.Negotiated.CipherSuite)
	aead := cipherSuiteAEAD(h.cc.Negotiated.CipherSuite)
	if err := h.rl.CtrlCCS(collab.DirWrite, collab.TrafficSecret{
		Secret: h.cc.Scratch.Ladder.ServerHandshakeTraffic, Hash: hashAlg.CryptoHash(), AEAD: aead,
	}); err != nil {
		return internalErr(err, "activating server handshake write keys")
	}
	if err := h.rl.CtrlCCS(collab.DirRead, collab.TrafficSecret{
		Secret: h.cc.Scratch.Ladder.ClientHandshakeTraffic, Hash: hashAlg.CryptoHash(), AEAD: aead,
	}); err != nil {
		return internalErr(err, "activating client handshake read keys")
	}

	ee := &codec.EncryptedExtensions{Extensions: codec.NewExtensionList()}
	if h.cc.Negotiated.ALPNProtocol != "" {
		ee.Extensions.Add(codec.ExtALPN, codec.EncodeALPNProtocolList([]string{h.cc.Negotiated.ALPNProtocol}))
	}
	eeWire := codec.EncodeHeader(codec.VersionTLS13, codec.TypeEncryptedExtensions, ee.Encode(), 0, 0)
	h.cc.Scratch.Transcript.Update(eeWire)
	if err := h.rl.WriteHandshakeMessage(ctx, eeWire); err != nil {
		return internalErr(err, "writing encrypted_extensions")
	}

	if !resumption.Resumed {
		// RFC 8446 §4.4: a PSK-resumed handshake carries no certificate
		// message in either direction.
		ident, err := cfg.Certificates.SelectCertificate(collab.CertificateRequestParams{ServerName: h.cc.Negotiated.ServerName})
		if err != nil {
			return protocolErr(collab.AlertHandshakeFailure, "no certificate available for %q: %v", h.cc.Negotiated.ServerName, err)
		}
		h.ident = ident

		cert := &codec.Certificate{}
		for _, der := range ident.CertificateChain {
			cert.Entries = append(cert.Entries, codec.CertificateEntry{Data: der, Extensions: codec.NewExtensionList()})
		}
		certBody, err := cert.Encode(codec.VersionTLS13)
		if err != nil {
			return internalErr(err, "encoding certificate")
		}
		certWire := codec.EncodeHeader(codec.VersionTLS13, codec.TypeCertificate, certBody, 0, 0)
		h.cc.Scratch.Transcript.Update(certWire)
		if err := h.rl.WriteHandshakeMessage(ctx, certWire); err != nil {
			return internalErr(err, "writing certificate")
		}

		scheme, ok := SelectLocalSignatureScheme(h.cc.Config.Policy.SignatureSchemes, ident)
		if !ok {
			return protocolErr(collab.AlertHandshakeFailure, "no signature scheme compatible with selected certificate")
		}
		h.cc.Negotiated.SignatureScheme = scheme
		digest := keyschedule.CertificateVerifyContext(h.cc.Scratch.Transcript.Alg(), h.cc.Scratch.Transcript.Hash(), false /* isClient */)
		sig, err := ident.Signer.Sign(cfg.DRBG, scheme, digest)
		if err != nil {
			return cryptoErr("signing certificate_verify: %v", err)
		}
		cv := &codec.CertificateVerify{Algorithm: codec.SignatureSchemeWire(scheme), Signature: sig}
		cvBody, err := cv.Encode()
		if err != nil {
			return internalErr(err, "encoding certificate_verify")
		}
		cvWire := codec.EncodeHeader(codec.VersionTLS13, codec.TypeCertificateVerify, cvBody, 0, 0)
		h.cc.Scratch.Transcript.Update(cvWire)
		if err := h.rl.WriteHandshakeMessage(ctx, cvWire); err != nil {
			return internalErr(err, "writing certificate_verify")
		}
	}

	finishedKey := h.cc.Scratch.Ladder.FinishedKey(h.cc.Scratch.Ladder.ServerHandshakeTraffic)
	verifyData := keyschedule.VerifyDataTLS13(h.cc.Scratch.Transcript.Alg(), finishedKey, h.cc.Scratch.Transcript.Hash())
	fin := &codec.Finished{VerifyData: verifyData}
	finWire := codec.EncodeHeader(codec.VersionTLS13, codec.TypeFinished, fin.Encode(), 0, 0)
	h.cc.Scratch.Transcript.Update(finWire)
	if err := h.rl.WriteHandshakeMessage(ctx, finWire); err != nil {
		return internalErr(err, "writing server finished")
	}
	h.cc.SavedServerVerifyData = verifyData

	// master_secret and the application traffic secrets derive over the
	// transcript through server Finished, one message earlier than
	// where client Finished verification runs.
	h.cc.Scratch.Ladder.MasterSecret(h.cc.Scratch.Transcript.Hash())
	if err := h.rl.CtrlCCS(collab.DirWrite, collab.TrafficSecret{
		Secret: h.cc.Scratch.Ladder.ServerAppTraffic, Hash: hashAlg.CryptoHash(), AEAD: aead,
	}); err != nil {
		return internalErr(err, "activating server application write keys")
	}

	return h.rl.Flush(ctx)
}

func (h *ServerHandshake) recvClientFinished13(ctx context.Context) error {
	preFinishedHash := h.cc.Scratch.Transcript.Hash()
	finMsg, raw, err := h.readMessage(ctx, codec.TypeFinished)
	if err != nil {
		return err
	}
	clientFinishedKey := h.cc.Scratch.Ladder.FinishedKey(h.cc.Scratch.Ladder.ClientHandshakeTraffic)
	expected := keyschedule.VerifyDataTLS13(h.cc.Scratch.Transcript.Alg(), clientFinishedKey, preFinishedHash)
	if !keyschedule.ConstantTimeCompare(expected, finMsg.Finished.VerifyData) {
		return protocolErr(collab.AlertDecryptError, "client finished verify_data mismatch")
	}
	h.cc.Scratch.Transcript.Update(raw)
	h.cc.SavedClientVerifyData = finMsg.Finished.VerifyData

	hashAlg := cipherSuiteHash(h.cc.Negotiated.CipherSuite)
	aead := cipherSuiteAEAD(h.cc.Negotiated.CipherSuite)
	if err := h.rl.CtrlCCS(collab.DirRead, collab.TrafficSecret{
		Secret: h.cc.Scratch.Ladder.ClientAppTraffic, Hash: hashAlg.CryptoHash(), AEAD: aead,
	}); err != nil {
		return internalErr(err, "activating client application read keys")
	}
	h.cc.Scratch.Ladder.ResumptionMasterSecret(h.cc.Scratch.Transcript.Hash())
	return nil
}

func (h *ServerHandshake) sendServerFlight12(ctx context.Context) error {
	sh := &codec.ServerHello{
		LegacyVersion:       h.cc.Negotiated.Version,
		Random:              h.cc.Scratch.ServerRandom,
		LegacySessionIDEcho: h.cc.Scratch.ClientHelloSessionIDEcho,
		CipherSuite:         h.cc.Negotiated.CipherSuite,
		Extensions:          codec.NewExtensionList(),
	}
	if h.cc.Negotiated.ExtendedMasterSecret {
		sh.Extensions.Add(codec.ExtExtendedMasterSecret, nil)
	}
	var renegInfo []byte
	if h.cc.IsRenegotiation {
		renegInfo = append(append([]byte(nil), h.cc.SavedClientVerifyData...), h.cc.SavedServerVerifyData...)
	}
	sh.Extensions.Add(codec.ExtRenegotiationInfo, codec.EncodeRenegotiationInfo(renegInfo))
	raw, err := sh.Encode()
	if err != nil {
		return internalErr(err, "encoding server_hello")
	}
	wire := codec.EncodeHeader(h.cc.Negotiated.Version, codec.TypeServerHello, raw, 0, 0)
	h.cc.Scratch.Transcript.Update(wire)
	if err := h.rl.WriteHandshakeMessage(ctx, wire); err != nil {
		return internalErr(err, "writing server_hello")
	}

	if h.cc.Negotiated.Resumption.Resumed {
		// Abbreviated handshake (RFC 5246 §7.3): no Certificate,
		// [ServerKeyExchange], or ServerHelloDone, straight to [CCS,
		// Finished] using the cached master secret.
		return h.rl.Flush(ctx)
	}

	ident, err := h.cc.Config.Certificates.SelectCertificate(collab.CertificateRequestParams{ServerName: h.cc.Negotiated.ServerName})
	if err != nil {
		return protocolErr(collab.AlertHandshakeFailure, "no certificate available for %q: %v", h.cc.Negotiated.ServerName, err)
	}
	h.ident = ident
	cert := &codec.Certificate{}
	for _, der := range ident.CertificateChain {
		cert.Entries = append(cert.Entries, codec.CertificateEntry{Data: der})
	}
	certBody, err := cert.Encode(h.cc.Negotiated.Version)
	if err != nil {
		return internalErr(err, "encoding certificate")
	}
	certWire := codec.EncodeHeader(h.cc.Negotiated.Version, codec.TypeCertificate, certBody, 0, 0)
	h.cc.Scratch.Transcript.Update(certWire)
	if err := h.rl.WriteHandshakeMessage(ctx, certWire); err != nil {
		return internalErr(err, "writing certificate")
	}

	if ident.KeyKind != collab.KeyKindRSA {
		kex, ok := h.cc.Config.KeyExchangers[h.group]
		if !ok {
			return configErr("no key exchanger wired for selected group %d", h.group)
		}
		priv, pub, err := kex.GenerateKeyPair(h.cc.Config.DRBG)
		if err != nil {
			return internalErr(err, "generating server_key_exchange ephemeral key for group %d", h.group)
		}
		h.priv = priv
		ske := &codec.ServerKeyExchangeECDHE{Group: uint16(h.group), PublicKey: pub}
		params, err := ske.Encode(h.cc.Negotiated.Version, false)
		if err != nil {
			return internalErr(err, "encoding server_key_exchange params")
		}
		scheme, ok := SelectLocalSignatureScheme(h.cc.Config.Policy.SignatureSchemes, ident)
		if !ok {
			return protocolErr(collab.AlertHandshakeFailure, "no signature scheme compatible with selected certificate")
		}
		ske.SignatureAlg = codec.SignatureSchemeWire(scheme)
		digest := legacySignedContentDigest(scheme, h.cc.Scratch.ClientRandom[:], h.cc.Scratch.ServerRandom[:], params)
		sig, err := ident.Signer.Sign(h.cc.Config.DRBG, scheme, digest)
		if err != nil {
			return cryptoErr("signing server_key_exchange: %v", err)
		}
		ske.Signature = sig
		skeBody, err := ske.Encode(h.cc.Negotiated.Version, true)
		if err != nil {
			return internalErr(err, "encoding server_key_exchange")
		}
		skeWire := codec.EncodeHeader(h.cc.Negotiated.Version, codec.TypeServerKeyExchange, skeBody, 0, 0)
		h.cc.Scratch.Transcript.Update(skeWire)
		if err := h.rl.WriteHandshakeMessage(ctx, skeWire); err != nil {
			return internalErr(err, "writing server_key_exchange")
		}
	}

	doneWire := codec.EncodeHeader(h.cc.Negotiated.Version, codec.TypeServerHelloDone, nil, 0, 0)
	h.cc.Scratch.Transcript.Update(doneWire)
	if err := h.rl.WriteHandshakeMessage(ctx, doneWire); err != nil {
		return internalErr(err, "writing server_hello_done")
	}
	return h.rl.Flush(ctx)
}

func (h *ServerHandshake) recvClientKeyExchange12(ctx context.Context) error {
	kind := codec.CKERSA
	if h.ident != nil && h.ident.KeyKind != collab.KeyKindRSA {
		kind = codec.CKEECDHE
	}
	dctx := codec.DecodeContext{Version: h.cc.Negotiated.Version, Role: RoleServer, ClientKeyExchangeKind: kind}
	raw, err := h.rl.ReadHandshakeMessage(ctx)
	if err != nil {
		return err
	}
	hdr, body, err := codec.DecodeHeader(dctx.Version, raw)
	if err != nil {
		return protocolErr(collab.AlertDecodeError, "%v", err)
	}
	if hdr.Type != codec.TypeClientKeyExchange {
		return protocolErr(collab.AlertUnexpectedMessage, "expected client_key_exchange, got %d", hdr.Type)
	}
	cke := &codec.ClientKeyExchange{}
	if err := cke.Decode(kind, body[:hdr.Length]); err != nil {
		return protocolErr(collab.AlertDecodeError, "%v", err)
	}
	h.cc.Scratch.Transcript.Update(raw)

	var pms []byte
	if kind == codec.CKERSA {
		signer, ok := h.ident.Signer.(rsaSigner)
		if !ok {
			return configErr("selected RSA certificate has no RSA private key handle")
		}
		pms, err = ProcessRSAClientKeyExchange(signer.RSAPrivateKey(), cke.EncryptedPreMasterSecret, uint16(h.cc.Negotiated.Version))
		if err != nil {
			return cryptoErr("rsa client_key_exchange: %v", err)
		}
	} else {
		kex := h.cc.Config.KeyExchangers[h.group]
		pms, err = kex.Derive(h.priv, cke.ECPoint)
		if err != nil {
			return cryptoErr("ecdhe client_key_exchange: %v", err)
		}
	}

	alg := cipherSuiteHash(h.cc.Negotiated.CipherSuite)
	master := keyschedule.MasterSecretLegacy(alg, pms, h.cc.Scratch.ClientRandom[:], h.cc.Scratch.ServerRandom[:], h.cc.Negotiated.ExtendedMasterSecret, h.cc.Scratch.Transcript.Hash())
	h.cc.Scratch.PendingMasterSecret = master
	return nil
}

func (h *ServerHandshake) sendAbbrevFinished12(ctx context.Context) error {
	alg := cipherSuiteHash(h.cc.Negotiated.CipherSuite)
	master := h.cc.Negotiated.Resumption.Session.MasterSecret
	if err := h.rl.CtrlCCS(collab.DirWrite, collab.TrafficSecret{
		Secret: master, Hash: alg.CryptoHash(), AEAD: cipherSuiteAEAD(h.cc.Negotiated.CipherSuite),
	}); err != nil {
		return internalErr(err, "activating server write keys for abbreviated handshake")
	}
	verifyData := keyschedule.VerifyDataLegacy(alg, master, "server finished", h.cc.Scratch.Transcript.Hash())
	fin := &codec.Finished{VerifyData: verifyData}
	wire := codec.EncodeHeader(h.cc.Negotiated.Version, codec.TypeFinished, fin.Encode(), 0, 0)
	h.cc.Scratch.Transcript.Update(wire)
	if err := h.rl.WriteHandshakeMessage(ctx, wire); err != nil {
		return internalErr(err, "writing server finished")
	}
	h.cc.SavedServerVerifyData = verifyData
	return h.rl.Flush(ctx)
}

func (h *ServerHandshake) recvAbbrevFinished12(ctx context.Context) error {
	alg := cipherSuiteHash(h.cc.Negotiated.CipherSuite)
	master := h.cc.Negotiated.Resumption.Session.MasterSecret
	if err := h.rl.CtrlCCS(collab.DirRead, collab.TrafficSecret{
		Secret: master, Hash: alg.CryptoHash(), AEAD: cipherSuiteAEAD(h.cc.Negotiated.CipherSuite),
	}); err != nil {
		return internalErr(err, "activating server read keys for abbreviated handshake")
	}
	preFinishedHash := h.cc.Scratch.Transcript.Hash()
	finMsg, raw, err := h.readMessage(ctx, codec.TypeFinished)
	if err != nil {
		return err
	}
	expected := keyschedule.VerifyDataLegacy(alg, master, "client finished", preFinishedHash)
	if !keyschedule.ConstantTimeCompare(expected, finMsg.Finished.VerifyData) {
		return protocolErr(collab.AlertDecryptError, "client finished verify_data mismatch")
	}
	h.cc.Scratch.Transcript.Update(raw)
	h.cc.SavedClientVerifyData = finMsg.Finished.VerifyData
	return nil
}

func (h *ServerHandshake) sendServerFinished12(ctx context.Context) error {
	alg := cipherSuiteHash(h.cc.Negotiated.CipherSuite)
	verifyData := keyschedule.VerifyDataLegacy(alg, h.cc.Scratch.PendingMasterSecret, "server finished", h.cc.Scratch.Transcript.Hash())
	fin := &codec.Finished{VerifyData: verifyData}
	wire := codec.EncodeHeader(h.cc.Negotiated.Version, codec.TypeFinished, fin.Encode(), 0, 0)
	h.cc.Scratch.Transcript.Update(wire)
	if err := h.rl.WriteHandshakeMessage(ctx, wire); err != nil {
		return internalErr(err, "writing server finished")
	}
	h.cc.SavedServerVerifyData = verifyData

	cfg := h.cc.Config
	if cfg.Sessions != nil && cfg.SessionLifetimeSeconds > 0 && len(h.cc.Scratch.ClientHelloSessionIDEcho) > 0 {
		cfg.Sessions.Insert(&SessionView{
			Version:              h.cc.Negotiated.Version,
			CipherSuite:          h.cc.Negotiated.CipherSuite,
			MasterSecret:         h.cc.Scratch.PendingMasterSecret,
			SessionID:            h.cc.Scratch.ClientHelloSessionIDEcho,
			ExtendedMasterSecret: h.cc.Negotiated.ExtendedMasterSecret,
			SessionIDContext:     cfg.SessionIDContext,
			CreatedAt:            time.Now(),
			LifetimeSeconds:      cfg.SessionLifetimeSeconds,
		})
	}
	return h.rl.Flush(ctx)
}
