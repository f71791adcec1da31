package keyschedule

import (
	"crypto/hmac"
	"crypto/subtle"
	"hash"
)

// pHash implements RFC 5246 §5's P_hash(secret, seed) expansion,
// iterated HMAC over secret/seed, used by both the legacy PRF and TLS
// <=1.2 Finished verify_data.
func pHash(alg HashAlg, secret, seed []byte, length int) []byte {
	mac := func() hash.Hash { return hmac.New(alg.new, secret) }
	a := mac()
	a.Write(seed)
	aI := a.Sum(nil)

	out := make([]byte, 0, length)
	for len(out) < length {
		h := mac()
		h.Write(aI)
		h.Write(seed)
		out = append(out, h.Sum(nil)...)

		next := mac()
		next.Write(aI)
		aI = next.Sum(nil)
	}
	return out[:length]
}

// PRF implements the TLS 1.0-1.2 pseudo-random function (RFC 5246
// §5): for >=1.2 this is P_hash keyed by the negotiated cipher suite's
// PRF hash (SHA-256 by default); earlier versions' MD5+SHA-1 split PRF
// is out of scope since this core's Non-goals exclude pre-1.2
// versions as negotiable targets.
func PRF(alg HashAlg, secret []byte, label string, seed []byte, length int) []byte {
	fullSeed := append([]byte(label), seed...)
	return pHash(alg, secret, fullSeed, length)
}

// MasterSecretLegacy derives the <=1.2 master secret from the
// pre-master secret, either the classic way (client+server random as
// seed) or the RFC 7627 extended-master-secret way (session_hash as
// seed) depending on whether EMS was negotiated.
func MasterSecretLegacy(alg HashAlg, preMasterSecret, clientRandom, serverRandom []byte, ems bool, sessionHash []byte) []byte {
	if ems {
		return PRF(alg, preMasterSecret, "extended master secret", sessionHash, 48)
	}
	seed := append(append([]byte(nil), clientRandom...), serverRandom...)
	return PRF(alg, preMasterSecret, "master secret", seed, 48)
}

// VerifyDataLegacy computes the 12-byte <=1.2 Finished payload
// (RFC 5246 §7.4.9): PRF(master_secret, label, transcript_hash)[:12].
// label is "client finished" or "server finished".
func VerifyDataLegacy(alg HashAlg, masterSecret []byte, label string, transcriptHash []byte) []byte {
	return PRF(alg, masterSecret, label, transcriptHash, 12)
}

// VerifyDataTLS13 computes the TLS 1.3 Finished payload (RFC 8446
// §4.4.4): HMAC(finished_key, transcript_hash).
func VerifyDataTLS13(alg HashAlg, finishedKey, transcriptHash []byte) []byte {
	h := hmac.New(alg.new, finishedKey)
	h.Write(transcriptHash)
	return h.Sum(nil)
}

// ConstantTimeCompare reports whether a and b are equal, in time
// independent of where they first differ. Every verify_data, PSK
// binder, and session-id comparison in this module must go through
// this function rather than bytes.Equal, per spec.md's explicit
// constant-time requirement — crypto/subtle is the standard library's
// own answer to exactly this problem and nothing in the example pack
// reimplements it, so stdlib is the correct and only choice here.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
