package handshake

import (
	"crypto/rsa"
	"crypto/x509"
	"io"

	"github.com/go-hitls/tlscore/internal/keyschedule"
)

// rsaSigner is the optional interface a LocalIdentity.Signer implements
// to hand over its *rsa.PrivateKey; the handshake core needs direct
// access to the private key for PKCS#1v1.5 decryption, which the
// narrower collab.Signer interface (sign-only) does not expose. A host
// wiring a non-Go-native key store for RSA key exchange (as opposed to
// RSA signing) must implement this directly.
type rsaSigner interface {
	RSAPrivateKey() *rsa.PrivateKey
}

// ProcessRSAClientKeyExchange implements spec.md §4.5's RSA
// ClientKeyExchange rule: decrypt in constant time, substituting a
// random PMS on any failure (including a bad declared client version)
// rather than aborting, so a network attacker learns nothing through
// timing or error-path divergence (S2).
func ProcessRSAClientKeyExchange(priv *rsa.PrivateKey, encryptedPMS []byte, clientLegacyVersion uint16) ([]byte, error) {
	hi := byte(clientLegacyVersion >> 8)
	lo := byte(clientLegacyVersion)
	return keyschedule.RSADecryptPreMasterSecret(priv, encryptedPMS, hi, lo)
}

// rsaPublicKeyFromChain extracts the leaf certificate's RSA public key,
// the one piece of key material the client needs for RSA key exchange
// that collab.Verifier (sign-verification only) does not expose.
func rsaPublicKeyFromChain(rawChain [][]byte) (*rsa.PublicKey, error) {
	if len(rawChain) == 0 {
		return nil, configErr("peer certificate chain is empty")
	}
	leaf, err := x509.ParseCertificate(rawChain[0])
	if err != nil {
		return nil, err
	}
	pub, ok := leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, configErr("leaf certificate key is not RSA")
	}
	return pub, nil
}

// rsaEncryptPreMasterSecret implements the client half of RFC 5246
// §7.4.7.1: PKCS#1v1.5-encrypt the pre_master_secret under the server's
// RSA public key.
func rsaEncryptPreMasterSecret(rnd io.Reader, pub *rsa.PublicKey, pms []byte) ([]byte, error) {
	return rsa.EncryptPKCS1v15(rnd, pub, pms)
}
