// Package config loads koggi profiles from the environment and from an
// optional dotenv file into a profile registry.
package config

import (
	"fmt"
	"strings"

	"github.com/koggi/koggi/internal/models"
	"github.com/spf13/viper"
)

// EnvPrefix is the common prefix of all profile variables, e.g.
// KOGGI_DEFAULT_DB_NAME or KOGGI_DEV1_BACKUP_DIR.
const EnvPrefix = "KOGGI_"

// profileFields lists the recognized field suffixes of a profile variable.
var profileFields = []string{
	models.FieldDBName,
	models.FieldDBUser,
	models.FieldDBPassword,
	models.FieldDBHost,
	models.FieldDBPort,
	models.FieldSSLMode,
	models.FieldBackupDir,
}

// Parser turns KOGGI_<PROFILE>_<FIELD> variables into a Registry.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new profile parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("env")
	return &Parser{v: v}
}

// LoadEnviron builds a registry from a list of KEY=VALUE strings, as
// returned by os.Environ().
func (p *Parser) LoadEnviron(environ []string) *Registry {
	reg := newRegistry()
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		reg.put(key, value)
	}
	return reg
}

// LoadFile reads a dotenv file and overlays the given process environment
// on top of it, so real environment variables win over file entries.
func (p *Parser) LoadFile(path string, environ []string) (*Registry, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}

	return p.merge(environ), nil
}

// LoadReader parses dotenv content from a string (useful for testing).
func (p *Parser) LoadReader(content string, environ []string) (*Registry, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading env content: %w", err)
	}

	return p.merge(environ), nil
}

func (p *Parser) merge(environ []string) *Registry {
	reg := newRegistry()

	// File entries first, then the process environment on top.
	for _, key := range p.v.AllKeys() {
		reg.put(key, p.v.GetString(key))
	}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		reg.put(key, value)
	}

	return reg
}

// splitKey splits an upper-cased variable name into profile name and
// field. Keys without the KOGGI_ prefix or without a recognized field
// suffix are not profile variables.
func splitKey(key string) (profile, field string, ok bool) {
	if !strings.HasPrefix(key, EnvPrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(key, EnvPrefix)

	for _, f := range profileFields {
		suffix := "_" + f
		if strings.HasSuffix(rest, suffix) && len(rest) > len(suffix) {
			return strings.TrimSuffix(rest, suffix), f, true
		}
	}
	return "", "", false
}
