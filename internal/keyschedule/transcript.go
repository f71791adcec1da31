package keyschedule

import (
	"hash"

	"github.com/go-hitls/tlscore/internal/codec"
)

// Transcript is the running handshake-message hash. Cipher-suite
// selection (and therefore the hash algorithm) is only known after
// ServerHello is chosen, so bytes seen before Init buffers them and
// Init replays the buffer through the real hash — the same deferred-
// init pattern spec.md §4.2 calls out ("transcript_init may be
// deferred until cipher suite is chosen; earlier bytes are buffered
// and replayed").
type Transcript struct {
	alg      HashAlg
	h        hash.Hash
	buffered []byte
}

// NewTranscript returns a Transcript with no hash algorithm chosen
// yet; Update buffers raw bytes until Init is called.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Init selects the hash algorithm and replays any buffered bytes
// through it. Calling Init a second time is a programmer error (the
// state machine must pick the hash algorithm exactly once, at
// ServerHello).
func (t *Transcript) Init(alg HashAlg) {
	if t.h != nil {
		panic("keyschedule: transcript already initialized")
	}
	t.alg = alg
	t.h = alg.new()
	if len(t.buffered) > 0 {
		t.h.Write(t.buffered)
		t.buffered = nil
	}
}

// Initialized reports whether Init has been called.
func (t *Transcript) Initialized() bool { return t.h != nil }

// Update appends raw, already-encoded handshake message bytes (header
// included) to the transcript, in on-the-wire order. Called exactly
// once per successfully decoded message — never on a failed parse,
// never rolled back (spec.md §4.5 "Ordering guarantees").
func (t *Transcript) Update(msgBytes []byte) {
	if t.h == nil {
		t.buffered = append(t.buffered, msgBytes...)
		return
	}
	t.h.Write(msgBytes)
}

// Hash returns a snapshot digest of the transcript so far without
// consuming it (hash.Hash.Sum(nil) already has this property; Hash
// just documents the contract callers rely on).
func (t *Transcript) Hash() []byte {
	if t.h == nil {
		panic("keyschedule: transcript read before Init")
	}
	return t.h.Sum(nil)
}

// Alg returns the selected hash algorithm. Panics if Init has not run.
func (t *Transcript) Alg() HashAlg {
	if t.h == nil {
		panic("keyschedule: Alg read before Init")
	}
	return t.alg
}

// RewriteForHRR implements RFC 8446 §4.4.1's HelloRetryRequest rule:
// once a HelloRetryRequest has been sent/received, the buffered
// ClientHello1 bytes are discarded from the running transcript and
// replaced by a synthetic message_hash(ClientHello1) entry, so the
// rest of the transcript proceeds as if CH1 had never been sent in
// full. Must be called after Init (the hash algorithm that applies to
// CH1's digest is the one negotiated from CH1/SH1, which by the time
// HRR is decided is already fixed) and before ClientHello2 is
// appended.
func (t *Transcript) RewriteForHRR(clientHello1Bytes []byte) {
	if t.h == nil {
		panic("keyschedule: RewriteForHRR before Init")
	}
	digest := t.alg.new()
	digest.Write(clientHello1Bytes)
	ch1Hash := digest.Sum(nil)

	t.h = t.alg.new()
	t.h.Write(codec.MessageHashEntry(ch1Hash))
}
