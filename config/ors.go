package config

import "fmt"

// ORSConfig defines the connection to the openrouteservice matrix API.
type ORSConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	Profile string `json:"profile"`
}

// SetDefaults applies sane defaults.
func (c *ORSConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openrouteservice.org"
	}
	if c.Profile == "" {
		c.Profile = "driving-car"
	}
}

// Validate checks mandatory fields.
func (c ORSConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	return nil
}
