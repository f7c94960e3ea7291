// Package vault sources operational secrets from HashiCorp Vault. With
// Vault disabled the client is a no-op and secrets come from env/config.
package vault

import (
	"context"
	"fmt"
	"sync"

	"trade-signal-bot/config"

	"github.com/hashicorp/vault/api"
)

// Secret keys looked up under the configured secret path.
const (
	KeyDiscordToken      = "discord_token"
	KeyAdminPasswordHash = "admin_password_hash"
	KeyJWTSecret         = "jwt_secret"
)

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config config.VaultConfig

	mu    sync.RWMutex
	cache map[string]string
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config: cfg,
			cache:  make(map[string]string),
		}, nil
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
		cache:  make(map[string]string),
	}, nil
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// GetSecret looks up a single string secret under the configured path.
// A disabled client returns "", nil so callers can fall back to config.
func (c *Client) GetSecret(ctx context.Context, key string) (string, error) {
	if !c.config.Enabled {
		return "", nil
	}

	c.mu.RLock()
	if cached, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	secret, err := c.client.Logical().ReadWithContext(ctx, c.config.SecretPath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("secret path %s not found", c.config.SecretPath)
	}

	// KV v2 nests the payload under "data"
	data := secret.Data
	if nested, ok := secret.Data["data"].(map[string]interface{}); ok {
		data = nested
	}

	value := getString(data, key)
	if value != "" {
		c.mu.Lock()
		c.cache[key] = value
		c.mu.Unlock()
	}
	return value, nil
}

// ApplySecrets overlays Vault-held secrets onto the loaded config. Values
// already set in config win only when Vault holds nothing for the key.
func (c *Client) ApplySecrets(ctx context.Context, cfg *config.Config) error {
	if !c.config.Enabled {
		return nil
	}

	if token, err := c.GetSecret(ctx, KeyDiscordToken); err != nil {
		return err
	} else if token != "" {
		cfg.DiscordConfig.Token = token
	}

	if hash, err := c.GetSecret(ctx, KeyAdminPasswordHash); err != nil {
		return err
	} else if hash != "" {
		cfg.AuthConfig.AdminPasswordHash = hash
	}

	if secret, err := c.GetSecret(ctx, KeyJWTSecret); err != nil {
		return err
	} else if secret != "" {
		cfg.AuthConfig.JWTSecret = secret
	}

	return nil
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

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
