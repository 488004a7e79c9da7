package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Redirect forwards one local port to one locally running target service.
type Redirect struct {
	LocalPort int    `yaml:"local_port"`
	TargetURL string `yaml:"target_url"`
}

// Domain pairs a target URL with the public URL it should appear as.
// PublicURL is optional; without it the target takes part in no hostname
// substitution.
type Domain struct {
	TargetURL string `yaml:"target_url"`
	PublicURL string `yaml:"public_url,omitempty"`
}

type File struct {
	Version int `yaml:"version,omitempty"`

	// Proxy toggles the reverse-proxy listeners. Nil means enabled.
	Proxy *bool `yaml:"proxy,omitempty"`

	Redirects []Redirect `yaml:"redirects,omitempty"`
	Domains   []Domain   `yaml:"domains,omitempty"`

	// OutboundProxy is an optional proxy URL for upstream connections.
	// Empty means the environment proxy settings apply.
	OutboundProxy string `yaml:"outbound_proxy,omitempty"`
}

func (f File) ProxyEnabled() bool {
	return f.Proxy == nil || *f.Proxy
}

func DefaultPath() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "portway", "portway.yml")
	}

	dir, err := os.UserConfigDir()
	if err == nil && dir != "" {
		return filepath.Join(dir, "portway", "portway.yml")
	}

	home := os.Getenv("HOME")
	if home == "" {
		return filepath.Join("portway.yml")
	}
	return filepath.Join(home, ".config", "portway", "portway.yml")
}

func Load(path string) (File, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return File{}, false, nil
		}
		return File{}, false, err
	}

	var cfg File
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return File{}, true, err
	}
	return cfg, true, nil
}

func Save(path string, cfg File) error {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if len(b) == 0 || b[len(b)-1] != '\n' {
		b = append(b, '\n')
	}

	tmp, err := os.CreateTemp(dir, ".portway-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Validate returns an error if the configuration cannot drive the router.
func Validate(cfg File) error {
	for i, r := range cfg.Redirects {
		if r.LocalPort <= 0 {
			return fmt.Errorf("redirect %d: local_port must be > 0", i)
		}
		if err := validateTargetURL(r.TargetURL); err != nil {
			return fmt.Errorf("redirect %d: %w", i, err)
		}
	}

	for i, d := range cfg.Domains {
		if err := validateTargetURL(d.TargetURL); err != nil {
			return fmt.Errorf("domain %d: %w", i, err)
		}
		if strings.TrimSpace(d.PublicURL) != "" {
			u, err := url.Parse(strings.TrimSpace(d.PublicURL))
			if err != nil {
				return fmt.Errorf("domain %d: invalid public_url: %w", i, err)
			}
			if u.Host == "" {
				return fmt.Errorf("domain %d: public_url has no host", i)
			}
		}
	}

	if p := strings.TrimSpace(cfg.OutboundProxy); p != "" {
		if _, err := url.Parse(p); err != nil {
			return fmt.Errorf("invalid outbound_proxy: %w", err)
		}
	}

	return nil
}

func validateTargetURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("target_url is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid target_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported target_url scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("target_url has no host")
	}
	return nil
}
