package extension

import (
	"github.com/go-hitls/tlscore/internal/codec"
	"github.com/go-hitls/tlscore/internal/collab"
)

// SelectVersion implements spec.md §4.4's version selection rule: if
// the client sent supported_versions, pick the highest value the
// server also supports; otherwise fall back to legacy_version bounded
// by [MinVersion, MaxVersion]. pskOrCertAvailable must be true for 1.3
// to be selectable (spec.md: "1.3 requires available PSK or suitable
// certificate").
func SelectVersion(p *Policy, supportedVersions []codec.Version, legacyVersion codec.Version, pskOrCertAvailable bool) (codec.Version, error) {
	if len(supportedVersions) > 0 {
		var best codec.Version
		found := false
		for _, v := range supportedVersions {
			if v < p.MinVersion || v > p.MaxVersion {
				continue
			}
			if v == codec.VersionTLS13 && !pskOrCertAvailable {
				continue
			}
			if !found || v > best {
				best, found = v, true
			}
		}
		if !found {
			return 0, errf(collab.AlertProtocolVersion, "no mutually supported version in supported_versions")
		}
		return best, nil
	}

	if legacyVersion == codec.VersionSSL30 {
		return 0, errf(collab.AlertProtocolVersion, "SSL 3.0 is not negotiable")
	}
	v := legacyVersion
	if v > p.MaxVersion {
		v = p.MaxVersion
	}
	if v == codec.VersionTLS13 {
		return 0, errf(collab.AlertProtocolVersion, "1.3 must be negotiated via supported_versions, not legacy_version")
	}
	if v < p.MinVersion {
		return 0, errf(collab.AlertProtocolVersion, "legacy_version %s below floor", v)
	}
	return v, nil
}
