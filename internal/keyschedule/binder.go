package keyschedule

// ComputePSKBinder implements RFC 8446 §4.2.11.2: a PSK binder is
// HMAC(binder_key, Transcript-Hash(Truncated ClientHello)), where
// binder_key is derived from early_secret via the "res binder" or
// "ext binder" label depending on whether the PSK is a resumption
// ticket or an externally-provisioned one. truncatedHelloBytes is the
// ClientHello encoded up to (not including) the binder list's length
// field — codec.ClientHello.TruncatedHelloLen gives the caller that
// split point.
func ComputePSKBinder(alg HashAlg, psk []byte, external bool, truncatedHelloBytes []byte) []byte {
	ladder := NewTLS13Ladder(alg)
	ladder.EarlySecret(psk)
	binderKey := ladder.BinderKey(external)

	digest := alg.new()
	digest.Write(truncatedHelloBytes)
	transcriptHash := digest.Sum(nil)

	return VerifyDataTLS13(alg, binderKey, transcriptHash)
}

// VerifyPSKBinder recomputes the binder for the given PSK and compares
// it to received in constant time. Per spec.md's binder-verification
// rule, the caller must stop at the first identity that resolves (via
// external PSK callback or ticket decrypt) and check only its binder —
// this function performs one such check, the caller owns the
// first-match-wins iteration.
func VerifyPSKBinder(alg HashAlg, psk []byte, external bool, truncatedHelloBytes, received []byte) bool {
	expected := ComputePSKBinder(alg, psk, external, truncatedHelloBytes)
	return ConstantTimeCompare(expected, received)
}
