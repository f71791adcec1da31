package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
)

func newTestSession(id string) *Session {
	return &Session{
		Version:         0x0304,
		CipherSuite:     0x1301,
		MasterSecret:    []byte("master-secret-material"),
		SessionID:       []byte(id),
		ServerNameEcho:  "example.test",
		CreatedAt:       time.Now(),
		LifetimeSeconds: 3600,
	}
}

func TestCacheFindInsertDelete(t *testing.T) {
	c := NewCache(8)
	s := newTestSession("session-a")
	c.Insert(s)

	found, ok := c.Find([]byte("session-a"))
	require.True(t, ok)
	require.Equal(t, s.MasterSecret, found.MasterSecret)

	// The returned Session is a copy: mutating it must not affect the cache.
	found.MasterSecret[0] = 'X'
	found2, _ := c.Find([]byte("session-a"))
	require.NotEqual(t, found.MasterSecret, found2.MasterSecret)

	c.Delete([]byte("session-a"))
	_, ok = c.Find([]byte("session-a"))
	require.False(t, ok)
}

func TestCacheEvictsLRU(t *testing.T) {
	c := NewCache(2)
	c.Insert(newTestSession("a"))
	c.Insert(newTestSession("b"))
	c.Insert(newTestSession("c")) // evicts "a"

	_, ok := c.Find([]byte("a"))
	require.False(t, ok)
	_, ok = c.Find([]byte("c"))
	require.True(t, ok)
}

func TestCachePurgeExpired(t *testing.T) {
	c := NewCache(8)
	expired := newTestSession("expired")
	expired.CreatedAt = time.Now().Add(-2 * time.Hour)
	expired.LifetimeSeconds = 60
	c.Insert(expired)

	fresh := newTestSession("fresh")
	c.Insert(fresh)

	c.PurgeExpired(time.Now())
	_, ok := c.Find([]byte("expired"))
	require.False(t, ok)
	_, ok = c.Find([]byte("fresh"))
	require.True(t, ok)
}

func TestTicketEncryptDecryptRoundTrip(t *testing.T) {
	ring, err := NewTicketKeyRing(chacha20poly1305.KeySize, 2)
	require.NoError(t, err)

	s := newTestSession("ticket-session")
	now := time.Now()
	blob, err := EncryptTicket(ring, s, now)
	require.NoError(t, err)

	decoded, renew, err := DecryptTicket(ring, blob, now)
	require.NoError(t, err)
	require.False(t, renew)
	require.Equal(t, s.SessionID, decoded.SessionID)
	require.Equal(t, s.MasterSecret, decoded.MasterSecret)
}

func TestTicketDecryptAfterRotationIsDecryptOnlyAndRequestsRenewal(t *testing.T) {
	ring, err := NewTicketKeyRing(chacha20poly1305.KeySize, 2)
	require.NoError(t, err)

	s := newTestSession("ticket-session")
	now := time.Now()
	blob, err := EncryptTicket(ring, s, now)
	require.NoError(t, err)

	require.NoError(t, ring.Rotate(chacha20poly1305.KeySize))

	decoded, renew, err := DecryptTicket(ring, blob, now)
	require.NoError(t, err)
	require.True(t, renew)
	require.Equal(t, s.SessionID, decoded.SessionID)
}

func TestTicketDecryptFailsAfterKeyAgesOutOfGracePeriod(t *testing.T) {
	ring, err := NewTicketKeyRing(chacha20poly1305.KeySize, 1)
	require.NoError(t, err)

	s := newTestSession("ticket-session")
	now := time.Now()
	blob, err := EncryptTicket(ring, s, now)
	require.NoError(t, err)

	require.NoError(t, ring.Rotate(chacha20poly1305.KeySize))
	require.NoError(t, ring.Rotate(chacha20poly1305.KeySize))

	_, _, err = DecryptTicket(ring, blob, now)
	require.Error(t, err)
}

func TestTicketDecryptRejectsTamperedCiphertext(t *testing.T) {
	ring, err := NewTicketKeyRing(chacha20poly1305.KeySize, 2)
	require.NoError(t, err)

	s := newTestSession("ticket-session")
	now := time.Now()
	blob, err := EncryptTicket(ring, s, now)
	require.NoError(t, err)

	blob[len(blob)-1] ^= 0xFF
	_, _, err = DecryptTicket(ring, blob, now)
	require.Error(t, err)
}
