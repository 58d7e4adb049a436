package naming

import (
	"log/slog"
	"strings"
)

// Namer derives default names for record tables, foreign keys, and
// association sources.
type Namer struct {
	config Config
	logger *slog.Logger
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config: cfg.normalized(),
		logger: logger,
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// TableName returns the table holding rows of the named record type.
// Example: "order_item" -> "order_items"
func (n *Namer) TableName(recordName string) string {
	return n.Pluralize(toSnakeCase(recordName))
}

// ForeignKeyName returns the default foreign key attribute for an association.
// Example: "customer" -> "customer_id"
func (n *Namer) ForeignKeyName(association string) string {
	return toSnakeCase(association) + n.config.ForeignKeySuffix
}

// SourceTableName returns the default table an association fetches from.
// Example: "customer" -> "customers"
func (n *Namer) SourceTableName(association string) string {
	table := n.Pluralize(toSnakeCase(association))
	n.logger.Debug("derived association source table",
		slog.String("association", association),
		slog.String("table", table),
	)
	return table
}

// toSnakeCase lowers camelCase names; snake_case input is returned unchanged.
func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] != '_' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
