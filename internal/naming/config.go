// Package naming derives table and column names for record types and their
// associations, including pluralization with configurable overrides.
package naming

import "strings"

// DefaultForeignKeySuffix is appended to an association name to form its
// foreign key attribute.
const DefaultForeignKeySuffix = "_id"

// Config controls how record and association names map to SQL identifiers.
type Config struct {
	// PluralOverrides maps a singular word to its plural, e.g. {"staff": "staff"}.
	// Keys match the whole name or its last snake_case segment.
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`

	// SingularOverrides maps a plural word to its singular, e.g. {"data": "datum"}.
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`

	// ForeignKeySuffix replaces "_id" when deriving foreign key attributes.
	ForeignKeySuffix string `mapstructure:"foreign_key_suffix"`
}

// DefaultConfig returns a config with no overrides and the "_id" suffix.
func DefaultConfig() Config {
	return Config{
		PluralOverrides:   make(map[string]string),
		SingularOverrides: make(map[string]string),
		ForeignKeySuffix:  DefaultForeignKeySuffix,
	}
}

// normalized lowercases override keys so lookups are case-insensitive and
// fills in the default suffix.
func (c Config) normalized() Config {
	out := Config{
		PluralOverrides:   lowerKeys(c.PluralOverrides),
		SingularOverrides: lowerKeys(c.SingularOverrides),
		ForeignKeySuffix:  c.ForeignKeySuffix,
	}
	if out.ForeignKeySuffix == "" {
		out.ForeignKeySuffix = DefaultForeignKeySuffix
	}
	return out
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}
