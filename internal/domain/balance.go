package domain

// AddressBalance is the node's current view of an address.
// Amounts are base-10 integer strings in atto units.
type AddressBalance struct {
	Balance       string `json:"balance"`
	LockedBalance string `json:"lockedBalance"`
	UTXONum       int    `json:"utxoNum"`
}

// UTXO is one unspent output held by an address.
type UTXO struct {
	Ref            UTXORef       `json:"ref"`
	Amount         string        `json:"amount"`
	Tokens         []TokenAmount `json:"tokens,omitempty"`
	LockTime       int64         `json:"lockTime,omitempty"`
	AdditionalData string        `json:"additionalData,omitempty"`
}

// UTXORef identifies a UTXO by its creating transaction.
type UTXORef struct {
	Hint int64  `json:"hint"`
	Key  string `json:"key"`
}

// NetworkStats is a small summary of chain health for dashboards.
type NetworkStats struct {
	HashRate          string  `json:"hashRate"`
	Difficulty        string  `json:"difficulty"`
	TotalSupply       string  `json:"totalSupply"`
	CirculatingSupply string  `json:"circulatingSupply"`
	BlockTime         float64 `json:"blockTime"`
	CurrentHeight     int64   `json:"currentHeight"`
}
