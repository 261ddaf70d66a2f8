// Package edgerc resolves API credentials from an .edgerc configuration
// file, the INI-format file used by the API's standard tooling.
package edgerc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"fastpurge/internal/domain"
)

// Credentials is the resolved authentication record for one API host.
type Credentials struct {
	Host         string
	ClientToken  string
	ClientSecret string
	AccessToken  string
}

func (c Credentials) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"host", c.Host},
		{"client_token", c.ClientToken},
		{"client_secret", c.ClientSecret},
		{"access_token", c.AccessToken},
	} {
		if f.value == "" {
			return &domain.ConfigurationError{Reason: "missing credential field " + f.name}
		}
	}
	return nil
}

// Resolve loads credentials from the [default] section of the .edgerc file
// at path. An empty path means ~/.edgerc.
func Resolve(path string) (Credentials, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Credentials{}, &domain.ConfigurationError{
				Reason: "cannot locate home directory: " + err.Error()}
		}
		path = filepath.Join(home, ".edgerc")
	}

	if _, err := os.Stat(path); err != nil {
		return Credentials{}, &domain.ConfigurationError{
			Reason: "missing configuration file " + path}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return Credentials{}, &domain.ConfigurationError{
			Reason: fmt.Sprintf("cannot parse %s: %v", path, err)}
	}

	creds := Credentials{
		Host:         v.GetString("default.host"),
		ClientToken:  v.GetString("default.client_token"),
		ClientSecret: v.GetString("default.client_secret"),
		AccessToken:  v.GetString("default.access_token"),
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, &domain.ConfigurationError{
			Reason: fmt.Sprintf("incomplete credentials in %s: %v", path, err)}
	}
	return creds, nil
}
