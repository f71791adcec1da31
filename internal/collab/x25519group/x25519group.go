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

// Package x25519group is the reference collab.KeyExchanger for the
// X25519 named group (RFC 8446 §4.2.8.2, TLS SupportedGroup 29), for a
// host to place in handshake.Config.KeyExchangers; it intentionally
// depends only on golang.org/x/crypto, the same base crypto module the
// teacher repo already requires.
package x25519group

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"

	"github.com/go-hitls/tlscore/internal/collab"
)

// KeyExchanger implements collab.KeyExchanger for X25519.
type KeyExchanger struct{}

// New returns the X25519 key exchanger, ready for use in
// handshake.Config.KeyExchangers.
func New() *KeyExchanger { return &KeyExchanger{} }

func (KeyExchanger) Group() collab.NamedGroup { return collab.GroupX25519 }

type privateKey struct {
	scalar [32]byte
}

func (p *privateKey) Destroy() {
	for i := range p.scalar {
		p.scalar[i] = 0
	}
}

func (KeyExchanger) GenerateKeyPair(rnd io.Reader) (collab.KeyExchangePrivate, []byte, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	priv := &privateKey{}
	if _, err := io.ReadFull(rnd, priv.scalar[:]); err != nil {
		return nil, nil, err
	}
	pub, err := curve25519.X25519(priv.scalar[:], curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

func (KeyExchanger) Derive(priv collab.KeyExchangePrivate, peerPublic []byte) ([]byte, error) {
	p, ok := priv.(*privateKey)
	if !ok {
		return nil, errors.New("x25519group: wrong private key type")
	}
	if len(peerPublic) != 32 {
		return nil, errors.New("x25519group: invalid peer public key length")
	}
	shared, err := curve25519.X25519(p.scalar[:], peerPublic)
	if err != nil {
		return nil, err
	}
	// RFC 8446 §7.4.1: reject an all-zero result (small-order point).
	zero := true
	for _, b := range shared {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return nil, errors.New("x25519group: peer public value produced an all-zero shared secret")
	}
	return shared, nil
}
