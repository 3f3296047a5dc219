package ports

// EventTypeRegistry maps event type tags to names and payload schemas.
type EventTypeRegistry interface {
	// Register adds a type tag with a name and a payload model for schema generation.
	Register(tag uint32, name string, model any) error

	// Known reports whether tag is registered.
	Known(tag uint32) bool

	// Name returns the registered name of tag.
	Name(tag uint32) (string, bool)

	// GetSchema retrieves the JSON Schema of tag's payload model.
	GetSchema(tag uint32) (string, bool)

	// List returns all registered tags, ascending.
	List() []uint32
}
