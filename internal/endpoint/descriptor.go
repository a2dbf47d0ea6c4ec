package endpoint

// Descriptor provides metadata about an endpoint type.
// Used by configuration screens to render forms.
type Descriptor struct {
	ID           string             `json:"id"`
	Kind         Kind               `json:"kind"`
	Title        string             `json:"title"`
	Vendor       string             `json:"vendor"`
	Description  string             `json:"description"`
	Protocols    []string           `json:"protocols"`
	DefaultPort  int                `json:"defaultPort"`
	Driver       string             `json:"driver,omitempty"`
	DocsURL      string             `json:"docsUrl,omitempty"`
	Fields       []*FieldDescriptor `json:"fields"`
	SampleConfig map[string]any     `json:"sampleConfig,omitempty"`
}

// FieldDescriptor defines a configuration field.
type FieldDescriptor struct {
	Key          string   `json:"key"`
	Aliases      []string `json:"-"`
	Label        string   `json:"label"`
	ValueType    string   `json:"valueType"` // "string", "integer", "boolean", "password"
	Required     bool     `json:"required"`
	Semantic     string   `json:"semantic"` // "GENERIC", "HOST", "PORT", "PASSWORD", "URL"
	Description  string   `json:"description,omitempty"`
	Placeholder  string   `json:"placeholder,omitempty"`
	DefaultValue string   `json:"defaultValue,omitempty"`
	Advanced     bool     `json:"advanced,omitempty"`
	Sensitive    bool     `json:"sensitive,omitempty"`
}

// Field returns the descriptor field for key, or nil.
func (d *Descriptor) Field(key string) *FieldDescriptor {
	if d == nil {
		return nil
	}
	for _, f := range d.Fields {
		if f.Key == key {
			return f
		}
		for _, a := range f.Aliases {
			if a == key {
				return f
			}
		}
	}
	return nil
}
