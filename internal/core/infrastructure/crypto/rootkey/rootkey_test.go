package rootkey

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipher_RoundTrip(t *testing.T) {
	c, err := New([]byte("node root key"))
	require.NoError(t, err)

	sealed, err := c.Encrypt(context.Background(), []byte("contract seed"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "contract seed")

	opened, err := c.Decrypt(context.Background(), sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("contract seed"), opened)
}

func TestCipher_TamperedPayload(t *testing.T) {
	c, err := New([]byte("node root key"))
	require.NoError(t, err)

	sealed, err := c.Encrypt(context.Background(), []byte("secret"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff
	_, err = c.Decrypt(context.Background(), sealed)
	assert.Error(t, err)
}

func TestCipher_WrongKey(t *testing.T) {
	a, err := New([]byte("key a"))
	require.NoError(t, err)
	b, err := New([]byte("key b"))
	require.NoError(t, err)

	sealed, err := a.Encrypt(context.Background(), []byte("secret"))
	require.NoError(t, err)

	_, err = b.Decrypt(context.Background(), sealed)
	assert.Error(t, err)
}

func TestCipher_MalformedInputs(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	c, err := New([]byte("key"))
	require.NoError(t, err)

	_, err = c.Decrypt(context.Background(), []byte("short"))
	assert.Error(t, err)
}
