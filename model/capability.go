// Package model provides capability-based model selection for query generation.
// Instead of hardcoding model names, strategies specify capabilities ("query",
// "smart") and the registry resolves them to available endpoints with fallback
// chains.
package model

// Capability represents a semantic capability for model selection.
// Instead of specifying "claude-sonnet", callers specify "query" or "smart".
type Capability string

const (
	// CapabilityQuery is for fast, schema-grounded SQL generation.
	// Used by the basic and optimized strategies.
	CapabilityQuery Capability = "query"

	// CapabilitySmart is for deeper reasoning over the schema, including
	// structural-improvement suggestions. Used by the advanced strategy.
	CapabilitySmart Capability = "smart"
)

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityQuery, CapabilitySmart:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for
// invalid values.
func ParseCapability(s string) Capability {
	c := Capability(s)
	if c.IsValid() {
		return c
	}
	return ""
}
