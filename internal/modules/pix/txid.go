package pix

import "github.com/bwmarrin/snowflake"

// TxIDGenerator issues unique transaction ids for field 62-05.
type TxIDGenerator struct {
	node *snowflake.Node
}

func NewTxIDGenerator(node int64) (*TxIDGenerator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}
	return &TxIDGenerator{node: n}, nil
}

// Next returns a base58 id; base58 only uses characters valid in a txid.
func (g *TxIDGenerator) Next() string {
	return "TN" + g.node.Generate().Base58()
}
