package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"serve", "migrate", "seed", "verify"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestMigrateSeedVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.db")
	common := []string{"--db-driver", "sqlite", "--sqlite-path", path, "--log-level", "error"}

	_, err := run(t, append(common, "migrate")...)
	require.NoError(t, err)

	out, err := run(t, append(common, "seed")...)
	require.NoError(t, err)
	assert.Contains(t, out, "inserted 8 book(s)")

	out, err = run(t, append(common, "seed")...)
	require.NoError(t, err)
	assert.Contains(t, out, "inserted 0 book(s)")

	out, err = run(t, append(common, "verify")...)
	require.NoError(t, err)
	assert.Contains(t, out, `"books_checked": 8`)
	assert.Contains(t, out, `"violations": []`)
}

func TestUnknownDriverFails(t *testing.T) {
	_, err := run(t, "--db-driver", "oracle", "--log-level", "error", "migrate")
	assert.Error(t, err)
}
