package core

// Receipt is the confirmed outcome of a demo transfer
type Receipt struct {
	TxHash            string `json:"transactionHash"`
	BlockHash         string `json:"blockHash"`
	BlockNumber       uint64 `json:"blockNumber"`
	From              string `json:"from"`
	To                string `json:"to"`
	GasUsed           uint64 `json:"gasUsed"`
	EffectiveGasPrice string `json:"effectiveGasPrice"`
	Status            uint64 `json:"status"`
}
