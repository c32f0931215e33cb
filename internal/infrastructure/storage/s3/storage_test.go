package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{AccessKey: "a", SecretKey: "b", Bucket: "exports"})
	assert.ErrorContains(t, err, "endpoint")

	_, err = New(Config{Endpoint: "localhost:9000", Bucket: "exports"})
	assert.ErrorContains(t, err, "access key")

	_, err = New(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	assert.ErrorContains(t, err, "bucket")
}

func TestObjectKey(t *testing.T) {
	store, err := New(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "exports", Prefix: "/grantflow/"})
	require.NoError(t, err)

	key, err := store.objectKey("grant_application_s1.txt")
	require.NoError(t, err)
	assert.Equal(t, "grantflow/grant_application_s1.txt", key)

	_, err = store.objectKey("../other-bucket")
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/plain; charset=utf-8", ContentType("a.txt"))
	assert.Equal(t, "application/octet-stream", ContentType("a.bin"))
}
