package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashPassword(t *testing.T) {
	t.Run("from argument", func(t *testing.T) {
		out, err := run(t, "", "hash-password", "--cost", "4", "s3cret")
		require.NoError(t, err)

		hash := strings.TrimSpace(out)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
	})

	t.Run("from stdin", func(t *testing.T) {
		out, err := run(t, "piped\n", "hash-password", "--cost", "4")
		require.NoError(t, err)

		hash := strings.TrimSpace(out)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("piped")))
	})

	t.Run("empty stdin", func(t *testing.T) {
		_, err := run(t, "", "hash-password")
		assert.Error(t, err)
	})
}

func TestMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cardbox.db")

	out, err := run(t, "", "migrate", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 3")

	out, err = run(t, "", "migrate", "--db", path)
	require.NoError(t, err, "second run is a no-op")
	assert.Contains(t, out, "schema version 3")
}
