package config

import (
	"sort"
	"strconv"
	"strings"

	"github.com/koggi/koggi/internal/models"
)

// Default connection values applied at resolve time.
const (
	DefaultHost    = "localhost"
	DefaultPort    = 5432
	DefaultSSLMode = "prefer"
)

// Registry holds the profiles discovered in the environment. It is
// read-only after construction and safe for concurrent use. Specs may be
// partially populated; required fields are checked only when a profile is
// resolved, so a broken DEV profile never blocks a backup of DEFAULT.
type Registry struct {
	specs map[string]models.ProfileSpec
}

func newRegistry() *Registry {
	return &Registry{specs: make(map[string]models.ProfileSpec)}
}

// put records one KEY=VALUE pair if it is a profile variable.
func (r *Registry) put(key, value string) {
	name, field, ok := splitKey(strings.ToUpper(key))
	if !ok || value == "" {
		return
	}

	spec := r.specs[name]
	spec.Name = name

	switch field {
	case models.FieldDBName:
		spec.DBName = value
	case models.FieldDBUser:
		spec.User = value
	case models.FieldDBPassword:
		spec.Password = value
	case models.FieldDBHost:
		spec.Host = value
	case models.FieldDBPort:
		spec.Port = value
	case models.FieldSSLMode:
		spec.SSLMode = value
	case models.FieldBackupDir:
		spec.BackupDir = value
	}

	r.specs[name] = spec
}

// Names returns the profile names in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns the raw profile specs ordered by name, for display.
func (r *Registry) Specs() []models.ProfileSpec {
	specs := make([]models.ProfileSpec, 0, len(r.specs))
	for _, name := range r.Names() {
		specs = append(specs, r.specs[name])
	}
	return specs
}

// Len returns the number of profiles in the registry.
func (r *Registry) Len() int {
	return len(r.specs)
}

// Resolve looks up a profile by name (case-insensitive) and validates it.
// It never returns a partially populated profile: unknown names fail with
// KindUnknownProfile, missing or malformed required fields with
// KindMissingField naming the field.
func (r *Registry) Resolve(name string) (*models.Profile, error) {
	canonical := strings.ToUpper(strings.TrimSpace(name))

	spec, ok := r.specs[canonical]
	if !ok {
		return nil, models.NewError(models.KindUnknownProfile, "profile %q not found", canonical)
	}

	if spec.DBName == "" {
		return nil, missingField(canonical, models.FieldDBName)
	}
	if spec.User == "" {
		return nil, missingField(canonical, models.FieldDBUser)
	}
	if spec.BackupDir == "" {
		return nil, missingField(canonical, models.FieldBackupDir)
	}

	profile := &models.Profile{
		Name:      canonical,
		DBName:    spec.DBName,
		User:      spec.User,
		Password:  spec.Password, // optional: trust and peer auth need none
		Host:      spec.Host,
		SSLMode:   spec.SSLMode,
		BackupDir: spec.BackupDir,
		Port:      DefaultPort,
	}

	if profile.Host == "" {
		profile.Host = DefaultHost
	}
	if profile.SSLMode == "" {
		profile.SSLMode = DefaultSSLMode
	}
	if spec.Port != "" {
		port, err := strconv.Atoi(spec.Port)
		if err != nil || port < 1 || port > 65535 {
			return nil, models.NewError(models.KindMissingField,
				"profile %q: %s %q is not a valid port", canonical, models.FieldDBPort, spec.Port)
		}
		profile.Port = port
	}

	return profile, nil
}

func missingField(profile, field string) error {
	return models.NewError(models.KindMissingField,
		"profile %q: required field %s is not set", profile, field)
}
