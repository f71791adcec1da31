package keyschedule

import "bytes"

// tls13SigPad is the 64-space pad RFC 8446 §4.4.3 prepends to every
// CertificateVerify signature's content, so a signature over this
// content can never collide with a signature over a <=1.2 structure.
var tls13SigPad = bytes.Repeat([]byte{0x20}, 64)

// CertificateVerifyContext builds the RFC 8446 §4.4.3 content a
// CertificateVerify signature covers and hashes it with alg, the same
// hash the transcript itself runs on (the scheme's own hash need not
// match alg; 8446 fixes the content hash to the transcript hash
// algorithm regardless of the chosen signature scheme).
func CertificateVerifyContext(alg HashAlg, transcriptHash []byte, isClient bool) []byte {
	context := "TLS 1.3, server CertificateVerify"
	if isClient {
		context = "TLS 1.3, client CertificateVerify"
	}
	content := make([]byte, 0, len(tls13SigPad)+len(context)+1+len(transcriptHash))
	content = append(content, tls13SigPad...)
	content = append(content, []byte(context)...)
	content = append(content, 0x00)
	content = append(content, transcriptHash...)
	h := alg.new()
	h.Write(content)
	return h.Sum(nil)
}
