// Package secrets fetches the PKCS#12 client credential from AWS Secrets
// Manager for deployments that do not ship the bundle on disk.
package secrets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"go.uber.org/zap"
)

type Option func(*Manager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithRegion(region string) Option {
	return func(m *Manager) {
		m.region = region
	}
}

func WithEndpoint(endpoint string) Option {
	return func(m *Manager) {
		m.endpoint = endpoint
	}
}

// WithAPI overrides the Secrets Manager client, used by tests.
func WithAPI(api secretsmanageriface.SecretsManagerAPI) Option {
	return func(m *Manager) {
		m.api = api
	}
}

type Manager struct {
	api      secretsmanageriface.SecretsManagerAPI
	region   string
	endpoint string
	logger   *zap.Logger
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.api == nil {
		awsConfig := &aws.Config{}
		if m.region != "" {
			awsConfig.Region = aws.String(m.region)
		}
		if m.endpoint != "" {
			awsConfig.Endpoint = aws.String(m.endpoint)
		}
		sess, _ := session.NewSession(awsConfig)
		m.api = secretsmanager.New(sess)
	}

	return m
}

// pkcs12Secret is the SecretString form: the bundle base64-encoded next to
// its password.
type pkcs12Secret struct {
	PFXBase64 string `json:"pfx_base64"`
	Password  string `json:"password"`
}

// PKCS12 returns the raw bundle bytes and password stored under secretID.
// SecretBinary holds the bundle directly (the password then comes from
// configuration and is returned empty here); SecretString holds the JSON
// form with both.
func (m *Manager) PKCS12(ctx context.Context, secretID string) ([]byte, string, error) {
	out, err := m.api.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return nil, "", fmt.Errorf("secret %q: %w", secretID, err)
	}

	if len(out.SecretBinary) > 0 {
		m.logger.Info("credential bundle fetched from secret store",
			zap.String("secret_id", secretID))
		return out.SecretBinary, "", nil
	}

	var sec pkcs12Secret
	if err := json.Unmarshal([]byte(aws.StringValue(out.SecretString)), &sec); err != nil {
		return nil, "", fmt.Errorf("secret %q: %w", secretID, err)
	}
	data, err := base64.StdEncoding.DecodeString(sec.PFXBase64)
	if err != nil {
		return nil, "", fmt.Errorf("secret %q: decoding pfx_base64: %w", secretID, err)
	}

	m.logger.Info("credential bundle fetched from secret store",
		zap.String("secret_id", secretID))
	return data, sec.Password, nil
}
