package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	_, err = store.Load(t.Context(), "node-1")
	assert.ErrorIs(t, err, ErrNotFound)

	s := validSettings()
	require.NoError(t, store.Save(t.Context(), "node-1", s))

	got, err := store.Load(t.Context(), "node-1")
	require.NoError(t, err)
	assert.Equal(t, s, got)

	s.Language = "starlark"
	require.NoError(t, store.Save(t.Context(), "node-1", s))
	got, err = store.Load(t.Context(), "node-1")
	require.NoError(t, err)
	assert.Equal(t, "starlark", got.Language)
}

func TestFileStore_RejectsPathLikeIDs(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	for _, id := range []string{"", "../escape", "a/b", ".hidden"} {
		assert.Error(t, store.Save(t.Context(), id, validSettings()), id)
		_, err := store.Load(t.Context(), id)
		assert.Error(t, err, id)
	}
}

func TestNewBlobStore(t *testing.T) {
	tests := []struct {
		name             string
		connectionString string
		containerName    string
		errContains      string
	}{
		{
			name:          "empty connection string",
			containerName: "settings",
			errContains:   "connection string is required",
		},
		{
			name:             "empty container name",
			connectionString: "DefaultEndpointsProtocol=https;AccountName=test;AccountKey=dGVzdA==;EndpointSuffix=core.windows.net",
			errContains:      "container name is required",
		},
		{
			name:             "missing key",
			connectionString: "AccountName=test",
			containerName:    "settings",
			errContains:      "account name and key are required",
		},
		{
			name:             "azure",
			connectionString: "DefaultEndpointsProtocol=https;AccountName=test;AccountKey=dGVzdA==;EndpointSuffix=core.windows.net",
			containerName:    "settings",
		},
		{
			name:             "azurite over http",
			connectionString: "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=dGVzdA==;BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;",
			containerName:    "settings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewBlobStore(tt.connectionString, tt.containerName, zap.NewNop())
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Nil(t, store)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, store)
		})
	}
}

func TestParseConnectionString(t *testing.T) {
	params := parseConnectionString("AccountName=acc; AccountKey=a2V5==;;BlobEndpoint=http://host:10000/acc")
	assert.Equal(t, map[string]string{
		"AccountName":  "acc",
		"AccountKey":   "a2V5==",
		"BlobEndpoint": "http://host:10000/acc",
	}, params)
}
