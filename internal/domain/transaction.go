package domain

// TokenAmount is a token transfer carried on a transaction input or
// output. Token accounting is strictly separate from base-asset
// accounting: these amounts never enter a base-asset delta.
type TokenAmount struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
}

// TxInput is one transaction input attributed to an address.
type TxInput struct {
	Address        string        `json:"address"`
	AttoAlphAmount string        `json:"attoAlphAmount"`
	Tokens         []TokenAmount `json:"tokens,omitempty"`
}

// TxOutput is one transaction output.
type TxOutput struct {
	Address        string        `json:"address"`
	AttoAlphAmount string        `json:"attoAlphAmount"`
	Tokens         []TokenAmount `json:"tokens,omitempty"`
}

// Transaction is one confirmed transaction as delivered by the explorer
// history endpoint. Timestamp is Unix milliseconds.
type Transaction struct {
	Hash              string     `json:"hash"`
	Timestamp         int64      `json:"timestamp"`
	Inputs            []TxInput  `json:"inputs"`
	Outputs           []TxOutput `json:"outputs"`
	GasAmount         int64      `json:"gasAmount"`
	GasPrice          string     `json:"gasPrice"`
	ScriptExecutionOk bool       `json:"scriptExecutionOk"`
}

// FeePayer reports whether address pays this transaction's fee.
// Convention: the fee is charged to the first input's address.
func (t *Transaction) FeePayer(address string) bool {
	return len(t.Inputs) > 0 && t.Inputs[0].Address == address
}
