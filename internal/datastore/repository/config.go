package repository

import "context"

// ConfigRepository is the (section, property) -> value store
type ConfigRepository interface {
	// Get returns ErrConfigNotFound when the pair is unset
	Get(ctx context.Context, section, property string) (string, error)
	Set(ctx context.Context, section, property, value string) error
	Delete(ctx context.Context, section, property string) error
	// List returns property -> value for one section
	List(ctx context.Context, section string) (map[string]string, error)
}
