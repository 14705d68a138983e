// Package vault loads infrastructure credentials from HashiCorp Vault.
package vault

import (
	"context"
	"fmt"
	"sync"

	"smc-engine/config"
	"smc-engine/internal/logging"

	"github.com/hashicorp/vault/api"
)

// Credentials are the secrets the service needs to reach its backing stores
type Credentials struct {
	DatabasePassword string `json:"database_password"`
	RedisPassword    string `json:"redis_password"`
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config config.VaultConfig
	mu     sync.RWMutex
	cached *Credentials
}

// NewClient creates a new Vault client. A disabled config yields a client
// that only serves credentials stored locally through StoreCredentials.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client: client,
		config: cfg,
	}, nil
}

// StoreCredentials writes creds to the KV v2 secret
func (c *Client) StoreCredentials(ctx context.Context, creds Credentials) error {
	if c.config.Enabled {
		secretData := map[string]interface{}{
			"data": map[string]interface{}{
				"database_password": creds.DatabasePassword,
				"redis_password":    creds.RedisPassword,
			},
		}
		if _, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(), secretData); err != nil {
			return fmt.Errorf("failed to store credentials in vault: %w", err)
		}
	}

	c.mu.Lock()
	c.cached = &creds
	c.mu.Unlock()
	return nil
}

// GetCredentials reads the credentials secret, caching the first successful read
func (c *Client) GetCredentials(ctx context.Context) (*Credentials, error) {
	c.mu.RLock()
	if c.cached != nil {
		creds := *c.cached
		c.mu.RUnlock()
		return &creds, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("credentials not found and vault is disabled")
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("credentials not found")
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	creds := &Credentials{
		DatabasePassword: getString(data, "database_password"),
		RedisPassword:    getString(data, "redis_password"),
	}

	c.mu.Lock()
	c.cached = creds
	c.mu.Unlock()

	out := *creds
	return &out, nil
}

// Apply overrides the database and redis passwords in cfg with the stored
// credentials. Empty secrets leave the configured value in place.
func (c *Client) Apply(ctx context.Context, cfg *config.Config) error {
	creds, err := c.GetCredentials(ctx)
	if err != nil {
		return err
	}

	if creds.DatabasePassword != "" {
		cfg.DatabaseConfig.Password = creds.DatabasePassword
	}
	if creds.RedisPassword != "" {
		cfg.RedisConfig.Password = creds.RedisPassword
	}

	logging.WithComponent("vault").Info("Applied infrastructure credentials",
		"database", creds.DatabasePassword != "",
		"redis", creds.RedisPassword != "")
	return nil
}

// ClearCache drops the cached credentials
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// secretPath returns the KV v2 data path of the credentials secret
func (c *Client) secretPath() string {
	return fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// NewMockClient creates a disabled client for testing
func NewMockClient() *Client {
	return &Client{
		config: config.VaultConfig{
			Enabled: false,
		},
	}
}
