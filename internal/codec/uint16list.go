package codec

import "golang.org/x/crypto/cryptobyte"

// DecodeSupportedVersionsClient parses a ClientHello's
// supported_versions extension_data: a 1-byte-length-prefixed list of
// two-byte versions, client-preference order.
func DecodeSupportedVersionsClient(data []byte) ([]Version, error) {
	s := cryptobyte.String(data)
	var list cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&list) {
		return nil, newDecodeErr(KindTruncated, "supported_versions.versions")
	}
	if len(list)%2 != 0 || len(list) == 0 {
		return nil, newDecodeErr(KindLengthOverflow, "supported_versions.versions odd/empty length")
	}
	var out []Version
	for !list.Empty() {
		var v uint16
		if !list.ReadUint16(&v) {
			return nil, newDecodeErr(KindTruncated, "supported_versions.versions entry")
		}
		out = append(out, Version(v))
	}
	return out, nil
}

// EncodeSupportedVersionsClient packs the ClientHello form.
func EncodeSupportedVersionsClient(versions []Version) []byte {
	var b cryptobyte.Builder
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, v := range versions {
			b.AddUint16(uint16(v))
		}
	})
	return b.BytesOrPanic()
}

// EncodeSupportedVersionsServer packs the ServerHello/HRR form: a bare
// selected version, no length prefix.
func EncodeSupportedVersionsServer(v Version) []byte {
	var b cryptobyte.Builder
	b.AddUint16(uint16(v))
	return b.BytesOrPanic()
}

// decodeUint16List2 parses a 2-byte-length-prefixed list of uint16
// values, the shape shared by supported_groups and signature_algorithms
// (and its _cert twin).
func decodeUint16List2(data []byte, field string) ([]uint16, error) {
	s := cryptobyte.String(data)
	var list cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&list) {
		return nil, newDecodeErr(KindTruncated, field)
	}
	if len(list)%2 != 0 {
		return nil, newDecodeErr(KindLengthOverflow, field+" odd length")
	}
	var out []uint16
	for !list.Empty() {
		var v uint16
		if !list.ReadUint16(&v) {
			return nil, newDecodeErr(KindTruncated, field+" entry")
		}
		out = append(out, v)
	}
	return out, nil
}

func encodeUint16List2(values []uint16) []byte {
	var b cryptobyte.Builder
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, v := range values {
			b.AddUint16(v)
		}
	})
	return b.BytesOrPanic()
}

// DecodeSupportedGroups parses a supported_groups extension_data into
// raw NamedGroup code points; internal/handshake maps these to
// collab.NamedGroup, since codec does not depend on collab.
func DecodeSupportedGroups(data []byte) ([]uint16, error) {
	return decodeUint16List2(data, "supported_groups.named_group_list")
}

func EncodeSupportedGroups(groups []uint16) []byte {
	return encodeUint16List2(groups)
}

// DecodeSignatureSchemeList parses a signature_algorithms (or
// signature_algorithms_cert) extension_data.
func DecodeSignatureSchemeList(data []byte) ([]uint16, error) {
	return decodeUint16List2(data, "signature_algorithms.supported_signature_algorithms")
}

func EncodeSignatureSchemeList(schemes []uint16) []byte {
	return encodeUint16List2(schemes)
}
