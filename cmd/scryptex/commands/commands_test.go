package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantAdmin_RejectsBadAddress(t *testing.T) {
	t.Setenv("SCRYPTEX_AUTH_JWT_SECRET", "secret")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"grant-admin", "not-an-address"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "walletAddress")
}

func TestGrantAdmin_UnknownUser(t *testing.T) {
	t.Setenv("SCRYPTEX_AUTH_JWT_SECRET", "secret")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"grant-admin", "0x00000000000000000000000000000000000000aa"})

	err := root.Execute()
	assert.ErrorContains(t, err, "user not found")
}

func TestRoot_RequiresSecret(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"grant-admin", "0x00000000000000000000000000000000000000aa"})

	assert.ErrorContains(t, root.Execute(), "auth.jwt_secret")
}
