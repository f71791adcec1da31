package extension

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-hitls/tlscore/internal/codec"
	"github.com/go-hitls/tlscore/internal/collab"
)

func basicPolicy() *Policy {
	return &Policy{
		MinVersion:         codec.VersionTLS12,
		MaxVersion:         codec.VersionTLS13,
		ServerCipherSuites: []codec.CipherSuite{0x1301, 0x1302, 0xc02f},
		ServerPreference:   true,
		Groups:             []collab.NamedGroup{collab.GroupX25519, collab.GroupSecp256r1},
		SignatureSchemes:   []collab.SignatureScheme{collab.SigSchemeRSAPSSRSAESHA256, collab.SigSchemeECDSASecp256r1},
	}
}

func TestSelectVersionPrefersSupportedVersionsOverLegacy(t *testing.T) {
	p := basicPolicy()
	v, err := SelectVersion(p, []codec.Version{codec.VersionTLS12, codec.VersionTLS13}, codec.VersionTLS12, true)
	require.NoError(t, err)
	require.Equal(t, codec.VersionTLS13, v)
}

func TestSelectVersionRejectsTLS13WithoutPSKOrCert(t *testing.T) {
	p := basicPolicy()
	v, err := SelectVersion(p, []codec.Version{codec.VersionTLS13}, codec.VersionTLS12, false)
	require.Error(t, err)
	require.Equal(t, codec.Version(0), v)
}

func TestSelectVersionFallsBackToLegacyVersionBoundedByMax(t *testing.T) {
	p := basicPolicy()
	p.MaxVersion = codec.VersionTLS12
	v, err := SelectVersion(p, nil, codec.VersionTLS13, true)
	require.NoError(t, err)
	require.Equal(t, codec.VersionTLS12, v)
}

func TestSelectVersionRejectsSSL30(t *testing.T) {
	p := basicPolicy()
	_, err := SelectVersion(p, nil, codec.VersionSSL30, true)
	require.Error(t, err)
}

func TestSelectVersionRejectsLegacyVersionBelowFloor(t *testing.T) {
	p := basicPolicy()
	p.MinVersion = codec.VersionTLS12
	_, err := SelectVersion(p, nil, codec.VersionTLS10, true)
	require.Error(t, err)
}

func TestSelectCipherSuiteHonorsServerPreference(t *testing.T) {
	p := basicPolicy()
	clientOffered := []codec.CipherSuite{0xc02f, 0x1302, 0x1301}
	always := func(codec.CipherSuite) bool { return true }
	cs, err := SelectCipherSuite(p, clientOffered, always)
	require.NoError(t, err)
	require.Equal(t, codec.CipherSuite(0x1301), cs)
}

func TestSelectCipherSuiteFallsThroughOnInfeasibleSuite(t *testing.T) {
	p := basicPolicy()
	clientOffered := []codec.CipherSuite{0xc02f, 0x1302, 0x1301}
	onlyECDHE := func(cs codec.CipherSuite) bool { return cs == 0xc02f }
	cs, err := SelectCipherSuite(p, clientOffered, onlyECDHE)
	require.NoError(t, err)
	require.Equal(t, codec.CipherSuite(0xc02f), cs)
}

func TestSelectCipherSuiteUsesClientOrderWhenNotServerPreference(t *testing.T) {
	p := basicPolicy()
	p.ServerPreference = false
	clientOffered := []codec.CipherSuite{0xc02f, 0x1301}
	always := func(codec.CipherSuite) bool { return true }
	cs, err := SelectCipherSuite(p, clientOffered, always)
	require.NoError(t, err)
	require.Equal(t, codec.CipherSuite(0xc02f), cs)
}

func TestSelectCipherSuiteNoMutualSuiteIsFatal(t *testing.T) {
	p := basicPolicy()
	none := func(codec.CipherSuite) bool { return false }
	_, err := SelectCipherSuite(p, []codec.CipherSuite{0x1301}, none)
	var nerr *NegotiationError
	require.ErrorAs(t, err, &nerr)
	require.Equal(t, collab.AlertHandshakeFailure, nerr.Alert)
}

func TestSelectGroupPicksServerPreferenceOrder(t *testing.T) {
	p := basicPolicy()
	g, err := SelectGroup(p, []collab.NamedGroup{collab.GroupSecp256r1, collab.GroupX25519}, func(collab.NamedGroup) bool { return true })
	require.NoError(t, err)
	require.Equal(t, collab.GroupX25519, g)
}

func TestSelectGroupRejectsLegalityFailure(t *testing.T) {
	p := basicPolicy()
	_, err := SelectGroup(p, []collab.NamedGroup{collab.GroupX25519}, func(collab.NamedGroup) bool { return false })
	require.Error(t, err)
}

func TestSelectSignatureSchemeMatchesKeyKind(t *testing.T) {
	p := basicPolicy()
	s, err := SelectSignatureScheme(p, []collab.SignatureScheme{collab.SigSchemeECDSASecp256r1, collab.SigSchemeRSAPSSRSAESHA256}, collab.KeyKindECDSA)
	require.NoError(t, err)
	require.Equal(t, collab.SigSchemeECDSASecp256r1, s)
}

func TestSelectSignatureSchemeNoCompatibleSchemeIsFatal(t *testing.T) {
	p := basicPolicy()
	_, err := SelectSignatureScheme(p, []collab.SignatureScheme{collab.SigSchemeEd25519}, collab.KeyKindECDSA)
	require.Error(t, err)
}

func TestRequireSignatureAlgorithmsRejectsEmpty(t *testing.T) {
	err := RequireSignatureAlgorithms(codec.VersionTLS13, nil)
	require.Error(t, err)
}

func TestNegotiateALPNReturnsChosenProtocol(t *testing.T) {
	p := basicPolicy()
	p.ALPNCallback = func(offered []string) (string, ALPNResult) {
		require.Equal(t, []string{"h2", "http/1.1"}, offered)
		return "h2", ALPNOK
	}
	chosen, err := NegotiateALPN(p, []string{"h2", "http/1.1"})
	require.NoError(t, err)
	require.Equal(t, "h2", chosen)
}

func TestNegotiateALPNNoAckProceedsWithoutALPN(t *testing.T) {
	p := basicPolicy()
	p.ALPNCallback = func(offered []string) (string, ALPNResult) { return "", ALPNNoAck }
	chosen, err := NegotiateALPN(p, []string{"h2"})
	require.NoError(t, err)
	require.Empty(t, chosen)
}

func TestNegotiateALPNErrorSendsNoApplicationProtocol(t *testing.T) {
	p := basicPolicy()
	p.ALPNCallback = func(offered []string) (string, ALPNResult) { return "", ALPNError }
	_, err := NegotiateALPN(p, []string{"h2"})
	var nerr *NegotiationError
	require.ErrorAs(t, err, &nerr)
	require.Equal(t, collab.AlertNoApplicationProtocol, nerr.Alert)
}

func TestNegotiateSNIFatalSendsUnrecognizedName(t *testing.T) {
	p := basicPolicy()
	p.SNICallback = func(string) SNIResult { return SNIFatal }
	_, err := NegotiateSNI(p, "example.com")
	var nerr *NegotiationError
	require.ErrorAs(t, err, &nerr)
	require.Equal(t, collab.AlertUnrecognizedName, nerr.Alert)
}

func TestNegotiateSNINoAckContinuesWithoutOK(t *testing.T) {
	p := basicPolicy()
	p.SNICallback = func(string) SNIResult { return SNINoAck }
	ok, err := NegotiateSNI(p, "example.com")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckResumptionEMSAbortsWhenDowngrading(t *testing.T) {
	p := basicPolicy()
	_, err := CheckResumptionEMS(p, ResumptionEMSState{Original: true, Current: false})
	require.Error(t, err)
}

func TestCheckResumptionEMSAllowsUpgradeOnFallbackToFull(t *testing.T) {
	p := basicPolicy()
	withEMS, err := CheckResumptionEMS(p, ResumptionEMSState{Original: false, Current: true})
	require.NoError(t, err)
	require.True(t, withEMS)
}

func TestCheckResumptionEMSRequiresEMSWhenPolicyMandatesIt(t *testing.T) {
	p := basicPolicy()
	p.RequireExtendedMasterSecret = true
	_, err := CheckResumptionEMS(p, ResumptionEMSState{Original: false, Current: false})
	require.Error(t, err)
}

func TestCheckResumptionEMSAllowsSymmetricNoEMSWhenNotRequired(t *testing.T) {
	p := basicPolicy()
	withEMS, err := CheckResumptionEMS(p, ResumptionEMSState{Original: false, Current: false})
	require.NoError(t, err)
	require.False(t, withEMS)
}

func TestCheckEncryptThenMACRequiresCBCSuite(t *testing.T) {
	p := basicPolicy()
	p.AllowEncryptThenMAC = true
	negotiate, err := CheckEncryptThenMAC(p, true, false, false)
	require.NoError(t, err)
	require.False(t, negotiate)
}

func TestCheckEncryptThenMACNegotiatesOnCBCWhenOffered(t *testing.T) {
	p := basicPolicy()
	p.AllowEncryptThenMAC = true
	negotiate, err := CheckEncryptThenMAC(p, true, true, false)
	require.NoError(t, err)
	require.True(t, negotiate)
}

func TestCheckEncryptThenMACRejectsDowngradeOnRenegotiation(t *testing.T) {
	p := basicPolicy()
	p.AllowEncryptThenMAC = true
	_, err := CheckEncryptThenMAC(p, false, true, true)
	require.Error(t, err)
}

func TestCheckRenegotiationInfoRequiresEmptyOnInitialHandshake(t *testing.T) {
	err := CheckRenegotiationInfo(false, []byte{1}, nil)
	require.Error(t, err)
}

func TestCheckRenegotiationInfoMatchesSavedVerifyData(t *testing.T) {
	saved := []byte{1, 2, 3, 4}
	err := CheckRenegotiationInfo(true, []byte{1, 2, 3, 4}, saved)
	require.NoError(t, err)
}

func TestCheckRenegotiationInfoRejectsMismatch(t *testing.T) {
	saved := []byte{1, 2, 3, 4}
	err := CheckRenegotiationInfo(true, []byte{1, 2, 3, 5}, saved)
	require.Error(t, err)
}
