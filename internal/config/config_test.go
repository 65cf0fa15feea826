package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mallard/pkg/models"
)

func sampleConfig() *models.Config {
	return &models.Config{
		Mongo: models.Mongo{
			Host:     "cluster0.abcde.mongodb.net",
			Username: "etl",
			Password: "mongo-secret",
		},
		Sink: models.Sink{
			Driver:   "duckdb",
			Path:     "/tmp/mallard.db",
			Password: "sink-secret",
		},
		Pipeline: models.Pipeline{
			Database:   "sample_restaurants",
			Collection: "restaurants",
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("MALLARD_CONFIG", filepath.Join(t.TempDir(), "config.yaml"))
	t.Setenv("MALLARD_ENCRYPTION_KEY", "test-key")

	require.False(t, Exists())
	require.NoError(t, Save(sampleConfig()))
	require.True(t, Exists())

	loaded, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "cluster0.abcde.mongodb.net", loaded.Mongo.Host)
	assert.Equal(t, "mongo-secret", loaded.Mongo.Password)
	assert.Equal(t, "sink-secret", loaded.Sink.Password)
	assert.Equal(t, "restaurants", loaded.Pipeline.Collection)
}

func TestSaveEncryptsPasswordsAtRest(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("MALLARD_CONFIG", file)
	t.Setenv("MALLARD_ENCRYPTION_KEY", "test-key")

	require.NoError(t, Save(sampleConfig()))

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "mongo-secret")
	assert.NotContains(t, string(raw), "sink-secret")
	assert.Contains(t, string(raw), "ENC[")
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("MALLARD_CONFIG", filepath.Join(t.TempDir(), "config.yaml"))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, &models.Config{}, loaded)
}

func TestEncryptDecryptPassword(t *testing.T) {
	t.Setenv("MALLARD_ENCRYPTION_KEY", "test-key")

	tests := []struct {
		name     string
		password string
	}{
		{"plain", "secret"},
		{"with quotes", `pa'ss"word`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := EncryptPassword(tt.password)
			require.NoError(t, err)
			if tt.password != "" {
				assert.True(t, IsEncrypted(encrypted))
				assert.NotEqual(t, tt.password, encrypted)
			}

			decrypted, err := DecryptPassword(encrypted)
			require.NoError(t, err)
			assert.Equal(t, tt.password, decrypted)
		})
	}
}

func TestEncryptPasswordIdempotent(t *testing.T) {
	t.Setenv("MALLARD_ENCRYPTION_KEY", "test-key")

	once, err := EncryptPassword("secret")
	require.NoError(t, err)
	twice, err := EncryptPassword(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestDecryptPasswordPassthrough(t *testing.T) {
	decrypted, err := DecryptPassword("not-encrypted")
	require.NoError(t, err)
	assert.Equal(t, "not-encrypted", decrypted)
}
