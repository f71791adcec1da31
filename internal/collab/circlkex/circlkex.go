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

// Package circlkex wires github.com/cloudflare/circl key-exchange
// primitives into collab.KeyExchanger, grounding RFC 8446 key_share's
// group agility: a named-curve group (X448) and a post-quantum hybrid
// KEM (Kyber768-X25519) living side by side in the same group table as
// x25519group.KeyExchanger.
package circlkex

import (
	"errors"
	"io"

	"github.com/cloudflare/circl/dh/x448"
	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/kyber/kyber768"

	"github.com/go-hitls/tlscore/internal/collab"
)

// X448 implements collab.KeyExchanger for the x448 named group (30).
type X448 struct{}

func NewX448() *X448 { return &X448{} }

func (X448) Group() collab.NamedGroup { return collab.GroupX448 }

type x448Private struct {
	scalar x448.Key
}

func (p *x448Private) Destroy() {
	for i := range p.scalar {
		p.scalar[i] = 0
	}
}

func (X448) GenerateKeyPair(rnd io.Reader) (collab.KeyExchangePrivate, []byte, error) {
	priv := &x448Private{}
	if _, err := io.ReadFull(rnd, priv.scalar[:]); err != nil {
		return nil, nil, err
	}
	var pub x448.Key
	x448.KeyGen(&pub, &priv.scalar)
	return priv, pub[:], nil
}

func (X448) Derive(priv collab.KeyExchangePrivate, peerPublic []byte) ([]byte, error) {
	p, ok := priv.(*x448Private)
	if !ok {
		return nil, errors.New("circlkex: wrong private key type for x448")
	}
	if len(peerPublic) != x448.Size {
		return nil, errors.New("circlkex: invalid x448 peer public key length")
	}
	var peer, shared x448.Key
	copy(peer[:], peerPublic)
	ok = x448.Shared(&shared, &p.scalar, &peer)
	if !ok {
		return nil, errors.New("circlkex: x448 peer public value is low-order")
	}
	return shared[:], nil
}

// Kyber768X25519 is a hybrid KEM+ECDHE key-share provider: the
// client-offered "public key" on the wire is the concatenation of the
// Kyber768 encapsulation key and the X25519 public point, and the
// shared secret is the concatenation of the KEM secret and the ECDHE
// secret, matching the draft hybrid key_share wire convention this
// pack's quic-go/outline-sdk reference material assumes for PQ groups.
type Kyber768X25519 struct {
	x25519 collab.KeyExchanger
}

func NewKyber768X25519(x25519 collab.KeyExchanger) *Kyber768X25519 {
	return &Kyber768X25519{x25519: x25519}
}

func (Kyber768X25519) Group() collab.NamedGroup { return collab.GroupX25519Kyber768 }

type hybridPrivate struct {
	kemPriv kem.PrivateKey
	ecPriv  collab.KeyExchangePrivate
}

func (p *hybridPrivate) Destroy() {
	if p.ecPriv != nil {
		p.ecPriv.Destroy()
	}
}

// GenerateKeyPair is only meaningful on the side that will decapsulate
// (the ClientHello side, per RFC 8446 key_share semantics): it
// generates a Kyber768 keypair plus an X25519 keypair and concatenates
// the two public values.
func (h Kyber768X25519) GenerateKeyPair(rnd io.Reader) (collab.KeyExchangePrivate, []byte, error) {
	scheme := kyber768.Scheme()
	pub, priv, err := scheme.GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	ecPriv, ecPub, err := h.x25519.GenerateKeyPair(rnd)
	if err != nil {
		return nil, nil, err
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return &hybridPrivate{kemPriv: priv, ecPriv: ecPriv}, append(pubBytes, ecPub...), nil
}

// Derive is invoked on the side holding the hybridPrivate: peerPublic
// is the encapsulation ciphertext concatenated with the peer's X25519
// public value. It decapsulates the KEM half and runs the ECDHE half,
// returning the concatenation as the combined shared secret (the key
// schedule's HKDF-Extract treats this as a single IKM, same as any
// other group's raw ECDHE output).
func (h Kyber768X25519) Derive(priv collab.KeyExchangePrivate, peerPublic []byte) ([]byte, error) {
	p, ok := priv.(*hybridPrivate)
	if !ok {
		return nil, errors.New("circlkex: wrong private key type for kyber768-x25519")
	}
	scheme := kyber768.Scheme()
	ctSize := scheme.CiphertextSize()
	if len(peerPublic) < ctSize+32 {
		return nil, errors.New("circlkex: truncated kyber768-x25519 key share")
	}
	ct := peerPublic[:ctSize]
	ecPeerPub := peerPublic[ctSize:]
	kemSecret, err := scheme.Decapsulate(p.kemPriv, ct)
	if err != nil {
		return nil, err
	}
	ecSecret, err := h.x25519.Derive(p.ecPriv, ecPeerPub)
	if err != nil {
		return nil, err
	}
	return append(kemSecret, ecSecret...), nil
}
