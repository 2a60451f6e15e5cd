package headers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher()
	require.NoError(t, err)
	return c
}

func TestParse(t *testing.T) {
	c := newTestCipher(t)

	tests := []struct {
		name     string
		raw      string
		expected map[string]string
	}{
		{
			name:     "empty",
			raw:      "",
			expected: map[string]string{},
		},
		{
			name: "simple pairs",
			raw:  "Authorization:Bearer abc, X-Tenant : acme",
			expected: map[string]string{
				"authorization": "Bearer abc",
				"x-tenant":      "acme",
			},
		},
		{
			name: "value keeps further colons",
			raw:  "x-url:https://example.com:8443/path",
			expected: map[string]string{
				"x-url": "https://example.com:8443/path",
			},
		},
		{
			name: "entry without colon is skipped",
			raw:  "broken,x-a:1",
			expected: map[string]string{
				"x-a": "1",
			},
		},
		{
			name: "empty key is never inserted",
			raw:  ":value,x-a:1",
			expected: map[string]string{
				"x-a": "1",
			},
		},
		{
			name: "last occurrence wins",
			raw:  "x-a:1,X-A:2",
			expected: map[string]string{
				"x-a": "2",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw, DefaultEncryptedKeys, DefaultSecretKey, c)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParse_EncryptsWithSecret(t *testing.T) {
	c := newTestCipher(t)

	got, err := Parse("user:bob,password:hunter2,secret:s3cret", DefaultEncryptedKeys, DefaultSecretKey, c)
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.Equal(t, "bob", got["user"])
	assert.NotContains(t, got, "secret")
	assert.NotEqual(t, "hunter2", got["password"])

	plain, err := Decrypt(got["password"], "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)
}

func TestParse_WithoutSecretLeavesValues(t *testing.T) {
	got, err := Parse("password:hunter2", DefaultEncryptedKeys, DefaultSecretKey, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"password": "hunter2"}, got)
}

func TestParse_KeysForEncryptionOverride(t *testing.T) {
	c := newTestCipher(t)

	raw := "keysforencryption:token|pin,token:abc,pin:1234,password:plain,secret:k"
	got, err := Parse(raw, DefaultEncryptedKeys, DefaultSecretKey, c)
	require.NoError(t, err)

	// Control key and secret are both stripped.
	assert.Len(t, got, 3)
	assert.NotContains(t, got, KeysForEncryption)
	assert.NotContains(t, got, "secret")
	assert.Equal(t, "plain", got["password"])

	for key, want := range map[string]string{"token": "abc", "pin": "1234"} {
		plain, err := Decrypt(got[key], "k")
		require.NoError(t, err)
		assert.Equal(t, want, plain)
	}
}

func TestParse_EncryptionKeyNamesIgnoreCase(t *testing.T) {
	c := newTestCipher(t)

	got, err := Parse("Password:hunter2,Secret:k", "PASSWORD", "SECRET", c)
	require.NoError(t, err)

	assert.NotContains(t, got, "secret")
	plain, err := Decrypt(got["password"], "k")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)
}

func TestParse_SecretAlwaysStripped(t *testing.T) {
	got, err := Parse("secret:k,x-a:1", "", DefaultSecretKey, newTestCipher(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"x-a": "1"}, got)
}

func TestParse_MissingCipher(t *testing.T) {
	_, err := Parse("password:p,secret:k", DefaultEncryptedKeys, DefaultSecretKey, nil)
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Names(map[string]string{"b": "2", "a": "1"}))
}
