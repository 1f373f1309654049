package models

// Metadata is the JSON object stored next to every entry.
type Metadata map[string]interface{}

// Clone returns a shallow copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Source returns the source identifier, or "" when absent.
func (m Metadata) Source() string {
	s, _ := m[MetaSource].(string)
	return s
}

// StartIndex returns the chunk start offset. Values decoded from JSON arrive as float64.
func (m Metadata) StartIndex() int {
	return m.Int(MetaStartIndex)
}

// Int reads a numeric value regardless of how it was decoded.
func (m Metadata) Int(key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	default:
		return 0
	}
}
