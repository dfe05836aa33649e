package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/openmined/fabsync/internal/auth"
	"github.com/openmined/fabsync/internal/fabricsdk"
	"github.com/openmined/fabsync/internal/utils"
)

const DefaultRequestsPerSecond = 5

const (
	AuthToken             = "token"
	AuthClientCredentials = "client_credentials"
	AuthAzureCLI          = "azcli"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigDir   = filepath.Join(home, ".fabsync")
	DefaultConfigPath  = filepath.Join(DefaultConfigDir, "config.json")
	DefaultLogFilePath = filepath.Join(DefaultConfigDir, "logs", "fabsync.log")

	authModes = []string{AuthToken, AuthClientCredentials, AuthAzureCLI}

	ErrNoRoot        = errors.New("sync root is required")
	ErrNoWorkspaceID = errors.New("workspace id is required")
)

type Config struct {
	Root              string        `json:"root"`
	WorkspaceID       string        `json:"workspace_id,omitempty"`
	FabricURL         string        `json:"fabric_url,omitempty"`
	PowerBIURL        string        `json:"powerbi_url,omitempty"`
	AuthMode          string        `json:"auth_mode,omitempty"`
	TenantID          string        `json:"tenant_id,omitempty"`
	ClientID          string        `json:"client_id,omitempty"`
	Workers           int           `json:"workers,omitempty"`
	PollInterval      time.Duration `json:"poll_interval,omitempty"`
	MaxPollAttempts   int           `json:"max_poll_attempts,omitempty"`
	PollTimeout       time.Duration `json:"poll_timeout,omitempty"`
	RequestsPerSecond float64       `json:"requests_per_second,omitempty"`

	// secrets are read from the environment and never written back
	Token        string `json:"-"`
	ClientSecret string `json:"-"`
	Path         string `json:"-"`
}

// Validate normalizes paths and defaults, then checks the values are usable
func (c *Config) Validate() error {
	var err error

	if c.Root == "" {
		return ErrNoRoot
	}
	if c.Root, err = utils.ResolvePath(c.Root); err != nil {
		return fmt.Errorf("root: %w", err)
	}

	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("config path: %w", err)
		}
	}

	if c.FabricURL == "" {
		c.FabricURL = fabricsdk.DefaultFabricURL
	}
	if err := utils.ValidateHTTPURL("fabric url", c.FabricURL); err != nil {
		return err
	}

	if c.PowerBIURL == "" {
		c.PowerBIURL = fabricsdk.DefaultPowerBIURL
	}
	if err := utils.ValidateHTTPURL("powerbi url", c.PowerBIURL); err != nil {
		return err
	}

	c.WorkspaceID = strings.TrimSpace(c.WorkspaceID)

	c.AuthMode = strings.ToLower(strings.TrimSpace(c.AuthMode))
	if c.AuthMode == "" {
		c.AuthMode = c.defaultAuthMode()
	}
	if !slices.Contains(authModes, c.AuthMode) {
		return &utils.ValidationError{Field: "auth mode", Message: fmt.Sprintf("%q, expected one of %s", c.AuthMode, strings.Join(authModes, ", "))}
	}

	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}

	if c.Workers < 0 || c.MaxPollAttempts < 0 || c.PollInterval < 0 || c.PollTimeout < 0 || c.RequestsPerSecond < 0 {
		return &utils.ValidationError{Field: "limits", Message: "workers, poll settings and request rate cannot be negative"}
	}

	return nil
}

// RequireWorkspace is used by commands that operate on a single workspace
func (c *Config) RequireWorkspace() error {
	if c.WorkspaceID == "" {
		return ErrNoWorkspaceID
	}
	return nil
}

func (c *Config) defaultAuthMode() string {
	switch {
	case c.Token != "":
		return AuthToken
	case c.TenantID != "" && c.ClientID != "":
		return AuthClientCredentials
	default:
		return AuthAzureCLI
	}
}

// CredentialSource builds the credential source selected by AuthMode
func (c *Config) CredentialSource() (auth.Source, error) {
	switch c.AuthMode {
	case AuthToken:
		return auth.NewStaticSource(c.Token), nil
	case AuthClientCredentials:
		source, err := auth.NewClientCredentialsSource(&auth.ClientCredentialsConfig{
			TenantID:     c.TenantID,
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
		})
		if err != nil {
			return nil, err
		}
		return source, nil
	case AuthAzureCLI:
		return &auth.AzureCLISource{}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", c.AuthMode)
	}
}

// Save writes the non secret settings to path
func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	cfg.Path = path
	return &cfg, nil
}
