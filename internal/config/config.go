package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ValidationError is a fatal configuration problem, detected before any
// network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

type Logger struct {
	Level string `yaml:"level"`
}

type Global struct {
	Logger Logger `yaml:"logger"`
}

type Source struct {
	URL      string `yaml:"url"`
	APIToken string `yaml:"api_token"`
	PageSize int    `yaml:"page_size"`
}

type Portal struct {
	AuthURL            string `yaml:"auth_url"`
	ItemURL            string `yaml:"item_url"`
	ClientID           string `yaml:"client_id"`
	ClientSecret       string `yaml:"client_secret"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
}

// Credential selects where the PKCS#12 bundle comes from: a file path or a
// Secrets Manager secret. Both empty means no client certificate, fine for
// non-mTLS endpoints.
type Credential struct {
	PKCS12Path     string `yaml:"pkcs12_path"`
	PKCS12Password string `yaml:"pkcs12_password"`
	SecretID       string `yaml:"secret_id"`
	Region         string `yaml:"region"`
}

// Filters uses pointers so an omitted filter defaults to enabled while an
// explicit `false` disables it.
type Filters struct {
	Rejected  *bool `yaml:"rejected"`
	Untriaged *bool `yaml:"untriaged"`
	Cursor    *bool `yaml:"cursor"`
}

type Pipeline struct {
	MappingPath string  `yaml:"mapping_path"`
	Filters     Filters `yaml:"filters"`
}

type FilesystemCursor struct {
	Path string `yaml:"path"`
}

type PostgresCursor struct {
	ConnectionString string `yaml:"connection_string"`
	Table            string `yaml:"table"`
}

type S3Cursor struct {
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Prefix         string `yaml:"prefix"`
	Endpoint       string `yaml:"endpoint"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

type Cursor struct {
	Type       string           `yaml:"type"`
	Key        string           `yaml:"key"`
	Filesystem FilesystemCursor `yaml:"filesystem"`
	Postgres   PostgresCursor   `yaml:"postgres"`
	S3         S3Cursor         `yaml:"s3"`
}

type Sync struct {
	Name       string     `yaml:"name"`
	Source     Source     `yaml:"source"`
	Portal     Portal     `yaml:"portal"`
	Credential Credential `yaml:"credential"`
	Pipeline   Pipeline   `yaml:"pipeline"`
	Cursor     Cursor     `yaml:"cursor"`
}

type SIRSync struct {
	Global Global `yaml:"global"`
	Sync   Sync   `yaml:"sync"`
}

func NewSIRSyncFromFile(fpath string) (*SIRSync, error) {
	bs, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}

	var c SIRSync
	if err := yaml.Unmarshal(bs, &c); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate catches fatal configuration problems before any component is
// constructed.
func (c *SIRSync) Validate() error {
	if c.Sync.Source.URL == "" {
		return &ValidationError{Field: "sync.source.url", Reason: "required"}
	}
	if c.Sync.Portal.AuthURL == "" {
		return &ValidationError{Field: "sync.portal.auth_url", Reason: "required"}
	}
	if c.Sync.Portal.ItemURL == "" {
		return &ValidationError{Field: "sync.portal.item_url", Reason: "required"}
	}
	if c.Sync.Pipeline.MappingPath == "" {
		return &ValidationError{Field: "sync.pipeline.mapping_path", Reason: "required"}
	}

	switch c.Sync.Cursor.Type {
	case "filesystem", "postgres", "s3":
	case "":
		return &ValidationError{Field: "sync.cursor.type", Reason: "required"}
	default:
		return &ValidationError{
			Field:  "sync.cursor.type",
			Reason: fmt.Sprintf("unknown type %q", c.Sync.Cursor.Type),
		}
	}

	if c.Sync.Credential.PKCS12Path != "" && c.Sync.Credential.SecretID != "" {
		return &ValidationError{
			Field:  "sync.credential",
			Reason: "pkcs12_path and secret_id are mutually exclusive",
		}
	}

	return nil
}

// PipelineFilters resolves the pointer toggles, defaulting each omitted
// filter to enabled.
func (f Filters) PipelineFilters() (rejected, untriaged, cur bool) {
	resolve := func(p *bool) bool {
		if p == nil {
			return true
		}
		return *p
	}
	return resolve(f.Rejected), resolve(f.Untriaged), resolve(f.Cursor)
}
