package edgerc_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fastpurge/internal/domain"
	"fastpurge/internal/edgerc"
)

func writeEdgeRc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".edgerc")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestResolve(t *testing.T) {
	path := writeEdgeRc(t, `
[default]
client_secret = some-secret
host = fastpurge.example.com
access_token = some-access-token
client_token = some-client-token
`)

	creds, err := edgerc.Resolve(path)
	require.NoError(t, err)

	assert.Equal(t, edgerc.Credentials{
		Host:         "fastpurge.example.com",
		ClientToken:  "some-client-token",
		ClientSecret: "some-secret",
		AccessToken:  "some-access-token",
	}, creds)
}

func TestResolveMissingFile(t *testing.T) {
	_, err := edgerc.Resolve(filepath.Join(t.TempDir(), "no-such-edgerc"))
	require.Error(t, err)

	var cerr *domain.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, err.Error(), "missing configuration file")
}

func TestResolveIncomplete(t *testing.T) {
	path := writeEdgeRc(t, `
[default]
host = fastpurge.example.com
client_token = some-client-token
`)

	_, err := edgerc.Resolve(path)
	require.Error(t, err)

	var cerr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func TestCredentialsValidate(t *testing.T) {
	creds := edgerc.Credentials{
		Host:         "h",
		ClientToken:  "ct",
		ClientSecret: "cs",
		AccessToken:  "at",
	}
	require.NoError(t, creds.Validate())

	creds.AccessToken = ""
	err := creds.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_token")
}
