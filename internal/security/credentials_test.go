package security

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFileManager forces the encrypted-file fallback so tests do not depend
// on a system keyring being present.
func newFileManager(t *testing.T) *CredentialManager {
	t.Helper()

	cm := &CredentialManager{useKeyring: false, baseDir: t.TempDir()}
	key, err := cm.getMasterKey()
	require.NoError(t, err)
	cm.masterKey = key
	return cm
}

func TestStoreAndGetCredential(t *testing.T) {
	cm := newFileManager(t)

	err := cm.StoreCredential("mongo-password", "password", "secret", map[string]string{
		"host": "cluster0.abcde.mongodb.net",
	})
	require.NoError(t, err)

	cred, err := cm.GetCredential("mongo-password")
	require.NoError(t, err)
	assert.Equal(t, "mongo-password", cred.Name)
	assert.Equal(t, "password", cred.Type)
	assert.Equal(t, "secret", cred.Value)
	assert.Equal(t, "cluster0.abcde.mongodb.net", cred.Metadata["host"])
	assert.False(t, cred.Encrypted)
}

func TestCredentialEncryptedOnDisk(t *testing.T) {
	cm := newFileManager(t)

	require.NoError(t, cm.StoreCredential("sink-password", "password", "secret", nil))

	raw, err := os.ReadFile(cm.credentialPath("sink-password"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.Contains(t, string(raw), `"encrypted": true`)
}

func TestDeleteCredential(t *testing.T) {
	cm := newFileManager(t)

	require.NoError(t, cm.StoreCredential("temp", "password", "x", nil))
	require.NoError(t, cm.DeleteCredential("temp"))

	_, err := cm.GetCredential("temp")
	assert.Error(t, err)
}

func TestListCredentials(t *testing.T) {
	cm := newFileManager(t)

	names, err := cm.ListCredentials()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, cm.StoreCredential("one", "password", "x", nil))
	require.NoError(t, cm.StoreCredential("two", "password", "y", nil))

	names, err = cm.ListCredentials()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, names)
}

func TestMasterKeyStable(t *testing.T) {
	cm := newFileManager(t)

	again, err := cm.getMasterKey()
	require.NoError(t, err)
	assert.Equal(t, cm.masterKey, again)
}

func TestGetCredentialRejectsTraversal(t *testing.T) {
	cm := newFileManager(t)

	_, err := cm.GetCredential("../outside")
	assert.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	cm := newFileManager(t)

	ciphertext, err := cm.encrypt("p@ssw0rd")
	require.NoError(t, err)
	assert.NotEqual(t, "p@ssw0rd", ciphertext)

	plaintext, err := cm.decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "p@ssw0rd", plaintext)
}
