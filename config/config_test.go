package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("MONGO_TIMEOUT", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, cfg.StorageBackend)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "plant-observations", cfg.Azure.Container)
	assert.Equal(t, "plants-db", cfg.Cosmos.Database)
	assert.Equal(t, 10*time.Second, cfg.Mongo.Timeout)
	assert.Equal(t, int64(10<<20), cfg.Image.MaxBytes)
	assert.False(t, cfg.Auth.Enabled())
}

func TestFromEnvCosmosAliases(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "cosmos")
	t.Setenv("COSMOS_ENDPOINT", "")
	t.Setenv("COSMOS_KEY", "")
	t.Setenv("COSMOS_CONNECTION_STRING", "")
	t.Setenv("VITE_COSMOS_ENDPOINT", "https://acct.documents.azure.com:443/")
	t.Setenv("VITE_COSMOS_KEY", "c2VjcmV0")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://acct.documents.azure.com:443/", cfg.Cosmos.Endpoint)
	assert.Equal(t, "c2VjcmV0", cfg.Cosmos.Key)
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	tests := []struct {
		name    string
		backend string
	}{
		{"azure blob without sas", BackendAzureBlob},
		{"cosmos without key", BackendCosmos},
		{"mongo without uri", BackendMongo},
		{"unknown backend", "s3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{StorageBackend: tt.backend, Image: ImageConfig{MaxBytes: 1, MaxEdge: 1}}
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMongoTimeoutAcceptsSeconds(t *testing.T) {
	t.Setenv("MONGO_TIMEOUT", "5")
	d, err := durationEnv("MONGO_TIMEOUT", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	t.Setenv("MONGO_TIMEOUT", "250ms")
	d, err = durationEnv("MONGO_TIMEOUT", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
}

func TestAzureURLNormalizesToken(t *testing.T) {
	c := AzureConfig{Account: "govorbiljaka", SASToken: "?sv=2022-11-02&sig=abc"}
	assert.Equal(t, "https://govorbiljaka.blob.core.windows.net/?sv=2022-11-02&sig=abc", c.URL())

	c.SASToken = "sv=2022-11-02&sig=abc"
	assert.Equal(t, "https://govorbiljaka.blob.core.windows.net/?sv=2022-11-02&sig=abc", c.URL())
}

func TestValidateRequiresPositiveGraceWhileSweeping(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("ORPHAN_SWEEP_SCHEDULE", "@every 10m")
	for _, grace := range []string{"0", "0s", "-5m"} {
		t.Setenv("ORPHAN_GRACE", grace)
		_, err := FromEnv()
		assert.ErrorContains(t, err, "ORPHAN_GRACE", grace)
	}

	t.Setenv("ORPHAN_SWEEP_SCHEDULE", "off")
	t.Setenv("ORPHAN_GRACE", "0")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.Sweep.Enabled())
}
