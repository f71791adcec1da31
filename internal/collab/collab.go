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

// Package collab declares the narrow interfaces through which the
// handshake core reaches every peripheral subsystem: the record layer,
// the crypto provider, the certificate manager, and the session/ticket
// store. Nothing in this package performs real framing, crypto, or path
// validation; it only describes the contracts that a host application
// wires up. This mirrors how the teacher module keeps certmagic.Storage,
// the Provisioner/Validator/CleanerUpper module lifecycle, and callback
// interfaces (SNI/ALPN resolvers) as small interfaces held by Context
// rather than function pointers with opaque user data.
package collab

import (
	"context"
	"crypto"
)

// RecordLayer is the external collaborator that fragments, encrypts, and
// decrypts handshake bytes, and gates change-cipher-spec visibility. The
// core never frames records itself; it only asks the record layer to
// deliver the next reassembled handshake message, or to send one, and it
// tells the record layer when to activate newly derived keys.
type RecordLayer interface {
	// ReadHandshakeMessage blocks (or returns ErrWantRead) until one
	// complete, reassembled handshake message is available. For DTLS,
	// fragment reassembly by (message_seq, offset, length) happens
	// below this interface; the core always sees whole messages in
	// on-the-wire order.
	ReadHandshakeMessage(ctx context.Context) ([]byte, error)

	// WriteHandshakeMessage queues a fully packed handshake message
	// for transmission. It does not flush; Flush does that.
	WriteHandshakeMessage(ctx context.Context, msg []byte) error

	// Flush pushes any buffered outbound records to the transport.
	Flush(ctx context.Context) error

	// CtrlCCS activates the pending read or write cipher state. dir
	// is DirRead or DirWrite. Called once per direction per epoch
	// change (TLS <=1.2 CCS, TLS 1.3 post-ServerHello/Finished).
	CtrlCCS(dir Direction, secret TrafficSecret) error

	// SendAlert transmits a fatal or warning alert and, for fatal
	// alerts, the caller must treat the connection as closed.
	SendAlert(level AlertLevel, desc AlertDescription) error
}

// Direction identifies a read or write key schedule direction.
type Direction int

const (
	DirRead Direction = iota
	DirWrite
)

// TrafficSecret is an opaque, direction-scoped secret plus the
// algorithms needed to derive record keys from it. The record layer
// treats the Secret bytes as opaque; only the crypto provider and key
// schedule understand their derivation.
type TrafficSecret struct {
	Secret []byte
	Hash   crypto.Hash
	AEAD   string // e.g. "aes-128-gcm", "chacha20-poly1305", "sm4-gcm"
}

// AlertLevel mirrors TLS alert levels (RFC 8446 §6).
type AlertLevel uint8

const (
	AlertLevelWarning AlertLevel = 1
	AlertLevelFatal   AlertLevel = 2
)

// AlertDescription mirrors the TLS alert description registry (the
// subset the handshake core can produce; the record layer may also
// raise others from decrypt/framing failures).
type AlertDescription uint8

const (
	AlertCloseNotify            AlertDescription = 0
	AlertUnexpectedMessage      AlertDescription = 10
	AlertBadRecordMAC           AlertDescription = 20
	AlertDecryptionFailed       AlertDescription = 21
	AlertRecordOverflow         AlertDescription = 22
	AlertHandshakeFailure       AlertDescription = 40
	AlertBadCertificate         AlertDescription = 42
	AlertUnsupportedCertificate AlertDescription = 43
	AlertCertificateRevoked     AlertDescription = 44
	AlertCertificateExpired     AlertDescription = 45
	AlertCertificateUnknown     AlertDescription = 46
	AlertIllegalParameter       AlertDescription = 47
	AlertUnknownCA              AlertDescription = 48
	AlertAccessDenied           AlertDescription = 49
	AlertDecodeError            AlertDescription = 50
	AlertDecryptError           AlertDescription = 51
	AlertProtocolVersion        AlertDescription = 70
	AlertInsufficientSecurity   AlertDescription = 71
	AlertInternalError          AlertDescription = 80
	AlertInappropriateFallback  AlertDescription = 86
	AlertUserCanceled           AlertDescription = 90
	AlertMissingExtension       AlertDescription = 109
	AlertUnsupportedExtension   AlertDescription = 110
	AlertUnrecognizedName       AlertDescription = 112
	AlertNoApplicationProtocol  AlertDescription = 120
	AlertCertificateRequired    AlertDescription = 116
)

// ErrWantRead/ErrWantWrite are sentinel errors a RecordLayer returns
// when it has no complete message yet, or cannot write without
// blocking. The handshake state machine's Step translates these into
// its own WantRead/WantWrite result without treating them as failures.
var (
	ErrWantRead  = sentinel("collab: want read")
	ErrWantWrite = sentinel("collab: want write")
)

type sentinel string

func (s sentinel) Error() string { return string(s) }
