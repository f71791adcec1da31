// Copyright 2015 Matthew Holt and The Caddy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package stepcert is a reference collab.CertificateManager: a static,
// in-memory set of certificate chains keyed by SNI, using
// go.step.sm/crypto to inspect key material the way the teacher's own
// certificate pipeline (caddytls) inspects keys before serving them.
// Revocation checking is out of scope (spec.md §1); ValidatePeerChain
// hands the chain to crypto/x509's Certificate.Verify (configured roots
// as trust anchors, the rest of the chain as intermediates, the
// expected server name when one is given) and adds no PKIX checks of
// its own.
package stepcert

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.step.sm/crypto/keyutil"

	"github.com/go-hitls/tlscore/internal/collab"
)

// Entry is one configured identity: a DER chain (leaf first) and the
// matching private key.
type Entry struct {
	Chain   [][]byte
	Key     crypto.Signer
	SNIs    []string // exact names and "*.example.com" wildcards
	KeyKind collab.KeyKind
}

// Manager implements collab.CertificateManager over a static entry set,
// plus a pool of trusted roots for ValidatePeerChain.
type Manager struct {
	mu      sync.RWMutex
	entries []Entry
	roots   *x509.CertPool
}

// New builds an empty Manager; use AddEntry/AddTrustedRoot to populate it.
func New() *Manager {
	return &Manager{roots: x509.NewCertPool()}
}

// AddEntry registers a local identity. It validates the key/cert pair
// with keyutil so that a mismatched key is rejected at configuration
// time rather than during a handshake.
func (m *Manager) AddEntry(chain [][]byte, key crypto.Signer, snis []string) error {
	if len(chain) == 0 {
		return errors.New("stepcert: empty chain")
	}
	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return fmt.Errorf("stepcert: parse leaf: %w", err)
	}
	extractedPub, err := keyutil.ExtractKey(key)
	if err != nil {
		return fmt.Errorf("stepcert: extract public key from signer: %w", err)
	}
	if !publicKeysEqual(extractedPub, leaf.PublicKey) {
		return errors.New("stepcert: private key does not match leaf certificate")
	}

	kind, err := keyKindOf(leaf.PublicKey)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Chain: chain, Key: key, SNIs: snis, KeyKind: kind})
	return nil
}

// AddTrustedRoot registers a CA certificate used by ValidatePeerChain.
func (m *Manager) AddTrustedRoot(der []byte) error {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return fmt.Errorf("stepcert: parse root: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roots.AddCert(cert)
	return nil
}

func publicKeysEqual(a, b crypto.PublicKey) bool {
	type equaler interface{ Equal(crypto.PublicKey) bool }
	if eq, ok := a.(equaler); ok {
		return eq.Equal(b)
	}
	return false
}

func keyKindOf(pub crypto.PublicKey) (collab.KeyKind, error) {
	switch pub.(type) {
	case *rsa.PublicKey:
		return collab.KeyKindRSA, nil
	case *ecdsa.PublicKey:
		return collab.KeyKindECDSA, nil
	case ed25519.PublicKey:
		return collab.KeyKindEd25519, nil
	default:
		return 0, fmt.Errorf("stepcert: unsupported public key type %T", pub)
	}
}

func (m *Manager) SelectCertificate(params collab.CertificateRequestParams) (*collab.LocalIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var fallback *Entry
	for i := range m.entries {
		e := &m.entries[i]
		if !schemeCompatible(e.KeyKind, params.SignatureSchemes) {
			continue
		}
		if fallback == nil {
			fallback = e
		}
		for _, n := range e.SNIs {
			if sniMatches(n, params.ServerName) {
				return toLocalIdentity(e), nil
			}
		}
	}
	if fallback != nil {
		return toLocalIdentity(fallback), nil
	}
	return nil, fmt.Errorf("stepcert: no certificate available for %q", params.ServerName)
}

func toLocalIdentity(e *Entry) *collab.LocalIdentity {
	return &collab.LocalIdentity{
		CertificateChain: e.Chain,
		Signer:           signerAdapter{e.Key},
		KeyKind:          e.KeyKind,
		PSSSaltLen:       minPSSSaltLen(e.Key),
	}
}

func minPSSSaltLen(key crypto.Signer) int {
	if rk, ok := key.Public().(*rsa.PublicKey); ok {
		return rk.Size() - 2 // conservative default for the signer's own salt floor
	}
	return 0
}

func schemeCompatible(kind collab.KeyKind, schemes []collab.SignatureScheme) bool {
	if len(schemes) == 0 {
		return true // legacy cipher suites carry no signature_algorithms extension
	}
	for _, s := range schemes {
		if s.KeyKind() == kind {
			return true
		}
	}
	return false
}

func sniMatches(pattern, name string) bool {
	pattern = strings.ToLower(pattern)
	name = strings.ToLower(name)
	if pattern == name {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		rest := pattern[1:] // ".example.com"
		if strings.HasSuffix(name, rest) && strings.Count(name, ".") == strings.Count(pattern, ".") {
			return true
		}
	}
	return false
}

// signerAdapter bridges crypto.Signer to collab.Signer's scheme-aware
// Sign; it picks the stdlib hash/padding combination implied by scheme.
type signerAdapter struct{ crypto.Signer }

func (s signerAdapter) Sign(rand io.Reader, scheme collab.SignatureScheme, digest []byte) ([]byte, error) {
	if scheme.IsPSS() {
		opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: scheme.Hash()}
		return s.Signer.Sign(rand, digest, opts)
	}
	return s.Signer.Sign(rand, digest, scheme.Hash())
}

func (s signerAdapter) Public() crypto.PublicKey { return s.Signer.Public() }

// ValidatePeerChain parses every certificate in chain and verifies the
// leaf with x509.Certificate.Verify, using the configured roots,
// chain[1:] as the intermediate pool (in any order), and
// expectedServerName as the DNS name when it is non-empty. It does no
// revocation checking.
func (m *Manager) ValidatePeerChain(chain [][]byte, expectedServerName string) (*collab.PeerIdentity, error) {
	if len(chain) == 0 {
		return nil, errors.New("stepcert: empty peer chain")
	}
	certs := make([]*x509.Certificate, len(chain))
	for i, der := range chain {
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("stepcert: parse chain[%d]: %w", i, err)
		}
		certs[i] = c
	}
	leaf := certs[0]

	m.mu.RLock()
	roots := m.roots
	m.mu.RUnlock()

	opts := x509.VerifyOptions{Roots: roots, Intermediates: x509.NewCertPool()}
	for _, c := range certs[1:] {
		opts.Intermediates.AddCert(c)
	}
	if expectedServerName != "" {
		opts.DNSName = expectedServerName
	}
	if _, err := leaf.Verify(opts); err != nil {
		return nil, fmt.Errorf("stepcert: chain does not verify: %w", err)
	}

	kind, err := keyKindOf(leaf.PublicKey)
	if err != nil {
		return nil, err
	}

	return &collab.PeerIdentity{
		Verifier: verifierAdapter{leaf.PublicKey},
		KeyKind:  kind,
		RawChain: chain,
	}, nil
}

type verifierAdapter struct{ pub crypto.PublicKey }

func (v verifierAdapter) Verify(scheme collab.SignatureScheme, digest, signature []byte) error {
	switch pub := v.pub.(type) {
	case *rsa.PublicKey:
		if scheme.IsPSS() {
			return rsa.VerifyPSS(pub, scheme.Hash(), digest, signature, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: scheme.Hash()})
		}
		return rsa.VerifyPKCS1v15(pub, scheme.Hash(), digest, signature)
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(pub, digest, signature) {
			return errors.New("stepcert: ecdsa signature verification failed")
		}
		return nil
	case ed25519.PublicKey:
		if !ed25519.Verify(pub, digest, signature) {
			return errors.New("stepcert: ed25519 signature verification failed")
		}
		return nil
	default:
		return fmt.Errorf("stepcert: unsupported verify key type %T", pub)
	}
}
