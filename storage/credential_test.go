package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = aws.Credentials{AccessKeyID: "AKIAEXAMPLE", SecretAccessKey: "secretexample"}

func TestOAuth2Credential_ApplyFetchesAndSetsBearerToken(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"abc123","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	cred := NewOAuth2Credential(context.Background(), tokenSrv.URL, "client-id", "client-secret", []string{"artifact.read"})

	req, err := http.NewRequest(http.MethodGet, "https://artifacts.example.com/model.bin", nil)
	require.NoError(t, err)

	require.NoError(t, cred.Apply(context.Background(), req))
	assert.Equal(t, "Bearer abc123", req.Header.Get("Authorization"))
}

func TestSignSigV4_SetsAuthorizationAndDateHeaders(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://bucket.s3.us-east-1.amazonaws.com/model.bin", nil)
	require.NoError(t, err)
	req.Host = "bucket.s3.us-east-1.amazonaws.com"

	err = signSigV4(req, &testCreds, "us-east-1", "s3")
	require.NoError(t, err)

	assert.NotEmpty(t, req.Header.Get("Authorization"))
	assert.NotEmpty(t, req.Header.Get("X-Amz-Date"))
	assert.NotEmpty(t, req.Header.Get("X-Amz-Content-Sha256"))
	assert.Contains(t, req.Header.Get("Authorization"), "AWS4-HMAC-SHA256")
}
