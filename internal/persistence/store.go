package persistence

import "context"

// Namespaces used by the registries.
const (
	NamespaceTimezones = "timezones"
	NamespacePingRoles = "ping_roles"
)

// KeyValueStore persists whole string maps under a namespace. Save replaces
// the namespace content entirely; no partial updates are supported.
type KeyValueStore interface {
	// Load returns the namespace content. An unknown namespace yields an empty map.
	Load(ctx context.Context, namespace string) (map[string]string, error)
	// Save durably replaces the namespace content before returning.
	Save(ctx context.Context, namespace string, entries map[string]string) error
}
