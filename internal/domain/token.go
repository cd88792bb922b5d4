package domain

// Token standard tags as reported by the node's guess endpoint.
const (
	TokenTypeFungible    = "fungible"
	TokenTypeNonFungible = "non-fungible"
	TokenTypeNonExistent = "non-existent"
	TokenTypeUnknown     = "unknown"
)

// TokenType is a classified token standard. Once classified, a token's
// type is permanent: standards do not change after deployment, so the
// type cache never expires entries.
type TokenType struct {
	TokenID      string `json:"tokenId"`
	IsNFT        bool   `json:"isNFT"`
	ClassifiedAs string `json:"classifiedAs"`
}

// TokenMetadata is the normalized per-token metadata record. Name and
// Symbol hold decoded UTF-8 text; RawName and RawSymbol keep the
// hex-encoded originals as delivered by the chain.
type TokenMetadata struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	RawName     string `json:"rawName,omitempty"`
	RawSymbol   string `json:"rawSymbol,omitempty"`
	TotalSupply string `json:"totalSupply,omitempty"`
	LogoURI     string `json:"logoURI,omitempty"`
	Description string `json:"description,omitempty"`
	TokenURI    string `json:"tokenURI,omitempty"`
}

// NFTPointer is the on-chain half of an NFT's metadata: the URI that the
// off-chain document lives at, plus its collection.
type NFTPointer struct {
	TokenURI     string `json:"tokenUri"`
	CollectionID string `json:"collectionId,omitempty"`
}

// EnrichedToken combines a raw on-chain balance with its metadata.
// Amount is a base-10 integer string; values above 2^53 are common, so
// it is never parsed into a float. Price fields are declared for the
// presentation layer and intentionally left unset here.
type EnrichedToken struct {
	TokenID         string        `json:"tokenId"`
	Amount          string        `json:"amount"`
	FormattedAmount string        `json:"formattedAmount"`
	IsNFT           bool          `json:"isNFT"`
	Metadata        TokenMetadata `json:"metadata"`
	PriceUSD        *float64      `json:"priceUsd,omitempty"`
	ValueUSD        *float64      `json:"valueUsd,omitempty"`
}

// TokenListEntry is one record of the community-curated token list,
// merged into on-chain metadata when present.
type TokenListEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	LogoURI     string `json:"logoURI,omitempty"`
	Description string `json:"description,omitempty"`
}
