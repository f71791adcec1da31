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

// Package codec implements bit-exact encode/decode for every handshake
// message across SSLv3, TLS 1.0-1.3, DTLS 1.0/1.2, and TLCP 1.1. It is
// pure functions over byte buffers: no I/O, no state machine decisions.
package codec

// Version is a protocol version as it appears on the wire (the
// legacy_record_version / client_version / ProtocolVersion fields).
type Version uint16

const (
	VersionSSL30   Version = 0x0300
	VersionTLS10   Version = 0x0301
	VersionTLS11   Version = 0x0302
	VersionTLS12   Version = 0x0303
	VersionTLS13   Version = 0x0304
	VersionDTLS10  Version = 0xfeff
	VersionDTLS12  Version = 0xfefd
	VersionTLCP11  Version = 0x0101
)

// IsDTLS reports whether v is one of the DTLS wire versions.
func (v Version) IsDTLS() bool { return v == VersionDTLS10 || v == VersionDTLS12 }

// IsTLCP reports whether v is the TLCP 1.1 wire version.
func (v Version) IsTLCP() bool { return v == VersionTLCP11 }

func (v Version) String() string {
	switch v {
	case VersionSSL30:
		return "SSL3.0"
	case VersionTLS10:
		return "TLS1.0"
	case VersionTLS11:
		return "TLS1.1"
	case VersionTLS12:
		return "TLS1.2"
	case VersionTLS13:
		return "TLS1.3"
	case VersionDTLS10:
		return "DTLS1.0"
	case VersionDTLS12:
		return "DTLS1.2"
	case VersionTLCP11:
		return "TLCP1.1"
	default:
		return "unknown"
	}
}

// DowngradeSentinelTLS12 and DowngradeSentinelTLS11orBelow are the last 8 bytes a
// 1.3-capable server must write into ServerHello.random when it
// intentionally negotiates <=1.2 (RFC 8446 §4.1.3), so a 1.3 client can
// detect the downgrade attempt.
var (
	DowngradeSentinelTLS12 = [8]byte{0x44, 0x4f, 0x57, 0x4e, 0x47, 0x52, 0x44, 0x01} // "DOWNGRD\x01"
	DowngradeSentinelTLS11orBelow = [8]byte{0x44, 0x4f, 0x57, 0x4e, 0x47, 0x52, 0x44, 0x00} // "DOWNGRD\x00"
)
