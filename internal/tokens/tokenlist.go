package tokens

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"alephium-gateway/internal/domain"
)

//go:embed tokenlist.json
var tokenListJSON []byte

// LoadTokenList parses the embedded community token list into a lookup
// map keyed by token id.
func LoadTokenList() (map[string]domain.TokenListEntry, error) {
	var doc struct {
		Tokens []domain.TokenListEntry `json:"tokens"`
	}
	if err := json.Unmarshal(tokenListJSON, &doc); err != nil {
		return nil, fmt.Errorf("parse embedded token list: %w", err)
	}

	list := make(map[string]domain.TokenListEntry, len(doc.Tokens))
	for _, entry := range doc.Tokens {
		list[entry.ID] = entry
	}
	return list, nil
}
