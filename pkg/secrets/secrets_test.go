package secrets

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, KeySize)
}

func TestResolve(t *testing.T) {
	t.Run("literal and empty pass through", func(t *testing.T) {
		v, err := Resolve("plain-key")
		require.NoError(t, err)
		assert.Equal(t, "plain-key", v)

		v, err = Resolve("")
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("env reference", func(t *testing.T) {
		t.Setenv("DEVCRED_TEST_SECRET", "from-env")
		v, err := Resolve("env:DEVCRED_TEST_SECRET")
		require.NoError(t, err)
		assert.Equal(t, "from-env", v)

		_, err = Resolve("env:DEVCRED_TEST_SECRET_UNSET")
		assert.ErrorContains(t, err, "is not set")
	})

	t.Run("file reference drops trailing newlines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "key")
		require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))
		v, err := Resolve("file:" + path)
		require.NoError(t, err)
		assert.Equal(t, "from-file", v)

		empty := filepath.Join(t.TempDir(), "empty")
		require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
		_, err = Resolve("file:" + empty)
		assert.ErrorContains(t, err, "is empty")

		_, err = Resolve("file:" + filepath.Join(t.TempDir(), "missing"))
		assert.Error(t, err)
	})

	t.Run("unknown scheme is literal", func(t *testing.T) {
		v, err := resolve("vault:kv/devcred", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "vault:kv/devcred", v)
	})
}
