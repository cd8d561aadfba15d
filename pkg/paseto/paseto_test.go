package pasetotoken

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, keys Keys) *Manager {
	t.Helper()
	m, err := New(Config{
		Mode:      keys.Mode,
		Issuer:    "clinic",
		Audience:  "clinic-web",
		AccessTTL: time.Minute,
	}, keys)
	require.NoError(t, err)
	return m
}

func TestIssueAndVerify(t *testing.T) {
	for name, keys := range map[string]Keys{"local": NewLocalKeys(), "public": NewPublicKeys()} {
		t.Run(name, func(t *testing.T) {
			m := newManager(t, keys)
			sid := uuid.New()
			sub := Subject{IdentityID: uuid.New(), Role: "patient", SessionID: &sid}

			tok, exp, err := m.IssueAccess(sub)
			require.NoError(t, err)
			assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

			claims, err := m.Verify(tok)
			require.NoError(t, err)
			assert.Equal(t, TokenTypeAccess, claims.Type)
			assert.Equal(t, sub.IdentityID, claims.IdentityID)
			assert.Equal(t, "patient", claims.Role)
			require.NotNil(t, claims.SessionID)
			assert.Equal(t, sid, *claims.SessionID)
			assert.False(t, claims.IsExpired(time.Now()))
		})
	}
}

func TestRefreshTokenType(t *testing.T) {
	m := newManager(t, NewLocalKeys())
	tok, _, err := m.IssueRefresh(Subject{IdentityID: uuid.New(), Role: "doctor"})
	require.NoError(t, err)

	claims, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.Type)
	assert.Nil(t, claims.SessionID)
}

func TestVerifyRejectsForeignAndTamperedTokens(t *testing.T) {
	m := newManager(t, NewLocalKeys())
	other := newManager(t, NewLocalKeys())

	tok, _, err := other.IssueAccess(Subject{IdentityID: uuid.New(), Role: "doctor"})
	require.NoError(t, err)

	_, err = m.Verify(tok)
	var invalid ErrInvalidToken
	assert.True(t, errors.As(err, &invalid))

	_, err = m.Verify("v4.local.garbage")
	assert.Error(t, err)
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	keys := NewLocalKeys()
	m := newManager(t, keys)
	other, err := New(Config{Mode: ModeLocal, Issuer: "clinic", Audience: "mobile"}, keys)
	require.NoError(t, err)

	tok, _, err := other.IssueAccess(Subject{IdentityID: uuid.New(), Role: "doctor"})
	require.NoError(t, err)

	_, err = m.Verify(tok)
	assert.Error(t, err)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Mode: ModePublic, Issuer: "a", Audience: "b"}, NewLocalKeys())
	assert.Error(t, err)
	_, err = New(Config{Mode: ModeLocal, Audience: "b"}, NewLocalKeys())
	assert.Error(t, err)
	_, err = New(Config{Mode: ModeLocal, Issuer: "a"}, NewLocalKeys())
	assert.Error(t, err)
}

func TestLoadKeys(t *testing.T) {
	_, err := LoadKeys(KeyStrings{Mode: ModeLocal})
	assert.Error(t, err)
	_, err = LoadKeys(KeyStrings{Mode: ModeLocal, SymmetricHex: "zz"})
	assert.Error(t, err)
	_, err = LoadKeys(KeyStrings{Mode: ModePublic})
	assert.Error(t, err)
	_, err = LoadKeys(KeyStrings{Mode: "weird"})
	assert.Error(t, err)

	k, err := LoadKeys(KeyStrings{Mode: ModeLocal, SymmetricHex: "707172737475767778797a7b7c7d7e7f808182838485868788898a8b8c8d8e8f"})
	require.NoError(t, err)
	assert.NotNil(t, k.Symmetric)
}

func TestKeyStringsRoundTrip(t *testing.T) {
	for _, mode := range []Mode{ModeLocal, ModePublic} {
		keys, err := GenerateKeys(mode)
		require.NoError(t, err)

		loaded, err := LoadKeys(keys.Strings())
		require.NoError(t, err)

		tok, _, err := newManager(t, keys).IssueAccess(Subject{IdentityID: uuid.New(), Role: "doctor"})
		require.NoError(t, err)
		_, err = newManager(t, loaded).Verify(tok)
		assert.NoError(t, err, "mode %s", mode)
	}

	_, err := GenerateKeys("weird")
	assert.Error(t, err)
}

func TestVerifyOnlyKeysCannotIssue(t *testing.T) {
	signer := NewPublicKeys()
	verifier, err := LoadKeys(KeyStrings{Mode: ModePublic, PublicHex: signer.Strings().PublicHex})
	require.NoError(t, err)
	assert.Nil(t, verifier.Secret)

	tok, _, err := newManager(t, signer).IssueAccess(Subject{IdentityID: uuid.New(), Role: "patient"})
	require.NoError(t, err)
	_, err = newManager(t, verifier).Verify(tok)
	require.NoError(t, err)

	_, _, err = newManager(t, verifier).IssueAccess(Subject{IdentityID: uuid.New(), Role: "patient"})
	var cfgErr ErrConfig
	assert.True(t, errors.As(err, &cfgErr))
}
