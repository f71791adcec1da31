package handshake

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"

	"github.com/go-hitls/tlscore/internal/codec"
	"github.com/go-hitls/tlscore/internal/keyschedule"
)

// dtlsCookieLen is the cookie length this core issues: 20 bytes,
// matching RFC 6347 §4.2.1's worked example and leaving comfortable
// room under the wire format's 32-byte ceiling.
const dtlsCookieLen = 20

// computeDTLSCookie derives a stateless HelloVerifyRequest cookie (RFC
// 6347 §4.2.1) as an HMAC over the fields of ch a client must
// reproduce verbatim on its cookie-bearing retry: random,
// legacy_session_id, and the offered cipher suites. Without a
// collaborator exposing the peer's source address, binding to those
// fields is the strongest replay property this core can offer on its
// own; deployments that need per-source-address binding fold the
// address into Config.CookieSecret's rotation instead.
func computeDTLSCookie(secret []byte, ch *codec.ClientHello) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(ch.Random[:])
	mac.Write(ch.LegacySessionID)
	for _, cs := range ch.CipherSuites {
		mac.Write([]byte{byte(cs >> 8), byte(cs)})
	}
	return mac.Sum(nil)[:dtlsCookieLen]
}

// checkDTLSCookie reports whether ch carries a cookie matching the one
// this server would issue for it. A ClientHello with no cookie at all
// (ClientHello1) always fails the check.
func (h *ServerHandshake) checkDTLSCookie(ch *codec.ClientHello) (bool, error) {
	if len(h.cc.Config.CookieSecret) == 0 {
		return false, configErr("DTLS handshake started with no Config.CookieSecret")
	}
	if len(ch.Cookie) == 0 {
		return false, nil
	}
	expected := computeDTLSCookie(h.cc.Config.CookieSecret, ch)
	return keyschedule.ConstantTimeCompare(expected, ch.Cookie), nil
}

// sendHelloVerifyRequest answers a cookie-less or stale-cookie
// ClientHello with a fresh HelloVerifyRequest. Per RFC 6347 §4.2.1
// neither this message nor the ClientHello that provoked it enters the
// transcript; the caller achieves that simply by never passing either
// one to h.cc.Scratch.Transcript.Update.
func (h *ServerHandshake) sendHelloVerifyRequest(ctx context.Context, ch *codec.ClientHello) error {
	hvr := &codec.HelloVerifyRequest{
		ServerVersion: codec.VersionDTLS12,
		Cookie:        computeDTLSCookie(h.cc.Config.CookieSecret, ch),
	}
	wire := codec.EncodeHeader(codec.VersionDTLS12, codec.TypeHelloVerifyRequest, hvr.Encode(), 0, 0)
	if err := h.rl.WriteHandshakeMessage(ctx, wire); err != nil {
		return internalErr(err, "writing hello_verify_request")
	}
	return h.rl.Flush(ctx)
}
