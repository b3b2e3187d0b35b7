package storage

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	azpolicy "github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Credential authenticates an outbound request to a gated model-artifact
// or media-storage endpoint (§4.3's "loader fetches weights/config").
// Implementations apply whatever scheme their backend requires before
// the request is sent.
type Credential interface {
	Apply(ctx context.Context, req *http.Request) error
}

// AWSCredential authenticates via AWS SigV4 using the default credential
// chain (environment, instance profile, IRSA), with optional STS role
// assumption for cross-account artifact buckets.
type AWSCredential struct {
	cfg     aws.Config
	region  string
	service string
}

// NewAWSCredential loads the default AWS credential chain for region,
// signing requests as the given service (e.g. "s3").
func NewAWSCredential(ctx context.Context, region, service string) (*AWSCredential, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("storage: load AWS config: %w", err)
	}
	return &AWSCredential{cfg: cfg, region: region, service: service}, nil
}

// NewAWSCredentialWithRole additionally assumes roleARN via STS before
// signing, for artifact buckets owned by a different account.
func NewAWSCredentialWithRole(ctx context.Context, region, service, roleARN string) (*AWSCredential, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("storage: load AWS config: %w", err)
	}
	cfg.Credentials = stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), roleARN)
	return &AWSCredential{cfg: cfg, region: region, service: service}, nil
}

func (c *AWSCredential) Apply(ctx context.Context, req *http.Request) error {
	creds, err := c.cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("storage: retrieve AWS credentials: %w", err)
	}
	return signSigV4(req, &creds, c.region, c.service)
}

// AzureCredential authenticates via an Azure AD bearer token (Managed
// Identity, Azure CLI, or environment), caching the token until shortly
// before it expires.
type AzureCredential struct {
	scope string
	cred  azcore.TokenCredential

	mu          sync.RWMutex
	cachedToken *azcore.AccessToken
}

const azureTokenRefreshBuffer = 5 * time.Minute

// NewAzureCredential uses the default Azure credential chain, requesting
// a token scoped to scope (e.g. "https://storage.azure.com/.default").
func NewAzureCredential(scope string) (*AzureCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("storage: create Azure credential: %w", err)
	}
	return &AzureCredential{scope: scope, cred: cred}, nil
}

// NewAzureCredentialWithClientSecret authenticates as a specific service
// principal instead of relying on ambient environment/managed-identity
// credentials.
func NewAzureCredentialWithClientSecret(scope, tenantID, clientID, clientSecret string) (*AzureCredential, error) {
	cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: create Azure client-secret credential: %w", err)
	}
	return &AzureCredential{scope: scope, cred: cred}, nil
}

func (c *AzureCredential) Apply(ctx context.Context, req *http.Request) error {
	token, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("storage: get Azure token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.Token)
	return nil
}

func (c *AzureCredential) token(ctx context.Context) (*azcore.AccessToken, error) {
	c.mu.RLock()
	if c.cachedToken != nil && c.cachedToken.ExpiresOn.After(time.Now().Add(azureTokenRefreshBuffer)) {
		tok := c.cachedToken
		c.mu.RUnlock()
		return tok, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedToken != nil && c.cachedToken.ExpiresOn.After(time.Now().Add(azureTokenRefreshBuffer)) {
		return c.cachedToken, nil
	}
	token, err := c.cred.GetToken(ctx, azpolicy.TokenRequestOptions{Scopes: []string{c.scope}})
	if err != nil {
		return nil, err
	}
	c.cachedToken = &token
	return &token, nil
}

// OAuth2Credential authenticates via the OAuth2 client-credentials grant,
// for artifact endpoints gated behind a generic identity provider rather
// than a cloud vendor's own IAM (§4.3 "gated artifact endpoint").
type OAuth2Credential struct {
	src oauth2.TokenSource
}

// NewOAuth2Credential exchanges clientID/clientSecret for tokens against
// tokenURL, requesting scopes, refreshing transparently via TokenSource.
func NewOAuth2Credential(ctx context.Context, tokenURL, clientID, clientSecret string, scopes []string) *OAuth2Credential {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	return &OAuth2Credential{src: cfg.TokenSource(ctx)}
}

func (c *OAuth2Credential) Apply(ctx context.Context, req *http.Request) error {
	token, err := c.src.Token()
	if err != nil {
		return fmt.Errorf("storage: get OAuth2 token: %w", err)
	}
	token.SetAuthHeader(req)
	return nil
}
