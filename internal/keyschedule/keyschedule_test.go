package keyschedule

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTranscriptBuffersBeforeInit(t *testing.T) {
	tr := NewTranscript()
	require.False(t, tr.Initialized())
	tr.Update([]byte("client-hello-bytes"))
	tr.Init(HashSHA256)
	require.True(t, tr.Initialized())

	direct := sha256.Sum256([]byte("client-hello-bytes"))
	require.Equal(t, direct[:], tr.Hash())
}

func TestTranscriptMatchesDirectHashWhenInitializedFirst(t *testing.T) {
	trA := NewTranscript()
	trA.Init(HashSHA256)
	trA.Update([]byte("hello"))
	trA.Update([]byte("world"))

	trB := NewTranscript()
	trB.Update([]byte("hello"))
	trB.Update([]byte("world"))
	trB.Init(HashSHA256)

	require.Equal(t, trA.Hash(), trB.Hash())
}

func TestRewriteForHRRProducesDeterministicTranscript(t *testing.T) {
	ch1 := []byte("first-client-hello")

	tr1 := NewTranscript()
	tr1.Init(HashSHA256)
	tr1.Update(ch1)
	tr1.RewriteForHRR(ch1)
	tr1.Update([]byte("hello-retry-request"))
	tr1.Update([]byte("second-client-hello"))

	tr2 := NewTranscript()
	tr2.Init(HashSHA256)
	tr2.RewriteForHRR(ch1)
	tr2.Update([]byte("hello-retry-request"))
	tr2.Update([]byte("second-client-hello"))

	require.Equal(t, tr1.Hash(), tr2.Hash())
}

func TestTLS13LadderDerivesDistinctSecretsPerRung(t *testing.T) {
	l := NewTLS13Ladder(HashSHA256)
	empty := make([]byte, 32)

	early := l.EarlySecret(nil)
	require.Len(t, early, 32)

	binder := l.BinderKey(false)
	extBinder := l.BinderKey(true)
	require.NotEqual(t, binder, extBinder)

	l.HandshakeSecret(make([]byte, 32), empty)
	require.NotEqual(t, l.ClientHandshakeTraffic, l.ServerHandshakeTraffic)

	l.MasterSecret(empty)
	require.NotEqual(t, l.ClientAppTraffic, l.ServerAppTraffic)
	require.Len(t, l.ExporterMaster, 32)

	key, iv := l.TrafficKeys(l.ClientAppTraffic, 16, 12)
	require.Len(t, key, 16)
	require.Len(t, iv, 12)

	fk := l.FinishedKey(l.ClientHandshakeTraffic)
	require.Len(t, fk, 32)
}

func TestPSKBinderRoundTrip(t *testing.T) {
	psk := []byte("resumption-psk-secret-material..")
	truncated := []byte("truncated-client-hello-bytes")

	binder := ComputePSKBinder(HashSHA256, psk, false, truncated)
	require.True(t, VerifyPSKBinder(HashSHA256, psk, false, truncated, binder))

	tampered := append([]byte(nil), binder...)
	tampered[0] ^= 0xFF
	require.False(t, VerifyPSKBinder(HashSHA256, psk, false, truncated, tampered))
}

func TestMasterSecretLegacyEMSDiffersFromClassic(t *testing.T) {
	pms := make([]byte, 48)
	clientRandom := make([]byte, 32)
	serverRandom := make([]byte, 32)
	sessionHash := make([]byte, 32)

	classic := MasterSecretLegacy(HashSHA256, pms, clientRandom, serverRandom, false, nil)
	ems := MasterSecretLegacy(HashSHA256, pms, clientRandom, serverRandom, true, sessionHash)
	require.NotEqual(t, classic, ems)
	require.Len(t, classic, 48)
	require.Len(t, ems, 48)
}

func TestVerifyDataLegacyIsTwelveBytes(t *testing.T) {
	ms := make([]byte, 48)
	transcriptHash := make([]byte, 32)
	vd := VerifyDataLegacy(HashSHA256, ms, "client finished", transcriptHash)
	require.Len(t, vd, 12)
}

func TestConstantTimeCompare(t *testing.T) {
	require.True(t, ConstantTimeCompare([]byte("abc"), []byte("abc")))
	require.False(t, ConstantTimeCompare([]byte("abc"), []byte("abd")))
	require.False(t, ConstantTimeCompare([]byte("abc"), []byte("ab")))
}
