package keyschedule

import (
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/hkdf"
)

// TLS13Ladder holds the secret derived at each rung of the RFC 8446
// §7.1 key schedule for one connection. x/crypto/hkdf supplies
// Extract/Expand; HKDF-Expand-Label's wire format (the
// HkdfLabel struct RFC 8446 §7.1 defines) has no library implementation
// anywhere in this module's dependency set — it is a thirteen-line,
// protocol-specific framing over a generic primitive, the same reason
// crypto/tls's own key_schedule.go hand-rolls it rather than reaching
// for a package — so ExpandLabel below is the one hand-rolled piece of
// this file.
type TLS13Ladder struct {
	alg HashAlg

	earlySecret     []byte
	handshakeSecret []byte
	masterSecret    []byte

	ClientHandshakeTraffic []byte
	ServerHandshakeTraffic []byte
	ClientAppTraffic       []byte
	ServerAppTraffic       []byte
	ExporterMaster         []byte
	ResumptionMaster       []byte
}

// NewTLS13Ladder starts a ladder for the given hash algorithm.
func NewTLS13Ladder(alg HashAlg) *TLS13Ladder {
	return &TLS13Ladder{alg: alg}
}

func (l *TLS13Ladder) extract(salt, ikm []byte) []byte {
	return hkdf.Extract(l.alg.new, ikm, salt)
}

// ExpandLabel implements RFC 8446 §7.1's HKDF-Expand-Label(Secret,
// Label, Context, Length):
//
//	HkdfLabel = u16(Length) || opaque8("tls13 " + Label) || opaque8(Context)
func (l *TLS13Ladder) ExpandLabel(secret []byte, label string, context []byte, length int) []byte {
	var b cryptobyte.Builder
	b.AddUint16(uint16(length))
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes([]byte("tls13 " + label))
	})
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(context)
	})
	hkdfLabel := b.BytesOrPanic()

	out := make([]byte, length)
	r := hkdf.Expand(l.alg.new, secret, hkdfLabel)
	if _, err := r.Read(out); err != nil {
		panic("keyschedule: hkdf.Expand: " + err.Error())
	}
	return out
}

// deriveSecret implements RFC 8446 §7.1's Derive-Secret(Secret, Label,
// Messages): HKDF-Expand-Label(Secret, Label, Hash(Messages), Hash.length).
func (l *TLS13Ladder) deriveSecret(secret []byte, label string, transcriptHash []byte) []byte {
	return l.ExpandLabel(secret, label, transcriptHash, l.alg.Size())
}

// zeroOfHashLen is the all-zero salt/ikm RFC 8446 §7.1 uses where no
// real PSK or (EC)DHE secret applies.
func (l *TLS13Ladder) zeroOfHashLen() []byte {
	return make([]byte, l.alg.Size())
}

// EarlySecret derives early_secret from the resumption/external PSK
// (or an all-zero IKM when no PSK applies), per the first rung of the
// ladder.
func (l *TLS13Ladder) EarlySecret(psk []byte) []byte {
	if psk == nil {
		psk = l.zeroOfHashLen()
	}
	l.earlySecret = l.extract(l.zeroOfHashLen(), psk)
	return l.earlySecret
}

// BinderKey derives the PSK binder key from the early secret, using
// the external or resumption label per RFC 8446 §4.2.11.
func (l *TLS13Ladder) BinderKey(external bool) []byte {
	label := "res binder"
	if external {
		label = "ext binder"
	}
	emptyHash := l.alg.new().Sum(nil)
	return l.deriveSecret(l.earlySecret, label, emptyHash)
}

// EarlyTrafficSecret and EarlyExporterSecret derive the two 0-RTT-
// adjacent secrets from early_secret over the ClientHello1 transcript.
func (l *TLS13Ladder) EarlyTrafficSecret(transcriptHash []byte) []byte {
	return l.deriveSecret(l.earlySecret, "c e traffic", transcriptHash)
}

func (l *TLS13Ladder) EarlyExporterSecret(transcriptHash []byte) []byte {
	return l.deriveSecret(l.earlySecret, "e exp master", transcriptHash)
}

// HandshakeSecret derives handshake_secret from early_secret and the
// (EC)DHE shared secret, then derives both handshake traffic secrets
// over the transcript through ServerHello.
func (l *TLS13Ladder) HandshakeSecret(dheSecret []byte, transcriptHash []byte) {
	derivedSalt := l.deriveSecret(l.earlySecret, "derived", l.alg.new().Sum(nil))
	if dheSecret == nil {
		dheSecret = l.zeroOfHashLen()
	}
	l.handshakeSecret = l.extract(derivedSalt, dheSecret)
	l.ClientHandshakeTraffic = l.deriveSecret(l.handshakeSecret, "c hs traffic", transcriptHash)
	l.ServerHandshakeTraffic = l.deriveSecret(l.handshakeSecret, "s hs traffic", transcriptHash)
}

// MasterSecret derives master_secret from handshake_secret, then
// derives the application traffic secrets (over the transcript through
// server Finished) and the exporter/resumption master secrets (over
// the transcript through client Finished, supplied later via
// ResumptionMasterSecret).
func (l *TLS13Ladder) MasterSecret(transcriptThroughServerFinished []byte) {
	derivedSalt := l.deriveSecret(l.handshakeSecret, "derived", l.alg.new().Sum(nil))
	l.masterSecret = l.extract(derivedSalt, l.zeroOfHashLen())
	l.ClientAppTraffic = l.deriveSecret(l.masterSecret, "c ap traffic", transcriptThroughServerFinished)
	l.ServerAppTraffic = l.deriveSecret(l.masterSecret, "s ap traffic", transcriptThroughServerFinished)
	l.ExporterMaster = l.deriveSecret(l.masterSecret, "exp master", transcriptThroughServerFinished)
}

// ResumptionMasterSecret derives resumption_master over the transcript
// through client Finished, used to mint session tickets afterward.
func (l *TLS13Ladder) ResumptionMasterSecret(transcriptThroughClientFinished []byte) []byte {
	l.ResumptionMaster = l.deriveSecret(l.masterSecret, "res master", transcriptThroughClientFinished)
	return l.ResumptionMaster
}

// TrafficKeys derives the per-direction key/iv pair from a traffic
// secret (RFC 8446 §7.3).
func (l *TLS13Ladder) TrafficKeys(trafficSecret []byte, keyLen, ivLen int) (key, iv []byte) {
	key = l.ExpandLabel(trafficSecret, "key", nil, keyLen)
	iv = l.ExpandLabel(trafficSecret, "iv", nil, ivLen)
	return key, iv
}

// FinishedKey derives the per-direction finished_key from a traffic
// secret (RFC 8446 §4.4.4).
func (l *TLS13Ladder) FinishedKey(trafficSecret []byte) []byte {
	return l.ExpandLabel(trafficSecret, "finished", nil, l.alg.Size())
}
