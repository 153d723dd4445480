package models

import "encoding/json"

// ProviderID identifies one external LLM vendor integration.
type ProviderID string

const (
	ProviderClaude ProviderID = "claude"
	ProviderGPT    ProviderID = "gpt"
	ProviderGemini ProviderID = "gemini"

	// ProviderConsensus marks a result merged from several providers.
	ProviderConsensus ProviderID = "consensus"
)

// ProviderOrder is the fixed priority order used for fallback and for Ask.
var ProviderOrder = []ProviderID{ProviderClaude, ProviderGPT, ProviderGemini}

// Valid reports whether p names one of the three real providers.
func (p ProviderID) Valid() bool {
	switch p {
	case ProviderClaude, ProviderGPT, ProviderGemini:
		return true
	}
	return false
}

// MarshalJSON encodes the empty ProviderID as null: a result with no provider
// is the synthesized default.
func (p ProviderID) MarshalJSON() ([]byte, error) {
	if p == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(p))
}

// UnmarshalJSON accepts null as the empty ProviderID.
func (p *ProviderID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = ProviderID(s)
	return nil
}
