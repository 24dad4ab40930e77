package vault

import (
	"encoding/json"

	"github.com/tdex-network/vaultd/internal/core/domain"
)

// payload is the serialized form of a vault. Wallets is a pointer to tell a
// missing field apart from an empty list.
type payload struct {
	Wallets    *[]string                    `json:"wallets"`
	TxMetadata map[string]domain.TxMetadata `json:"tx_metadata"`
}

func parsePayload(plaintext string) (*payload, error) {
	var p payload
	if err := json.Unmarshal([]byte(plaintext), &p); err != nil {
		return nil, ErrVaultNotFound
	}
	if p.Wallets == nil {
		return nil, ErrVaultNotFound
	}
	return &p, nil
}

func (p payload) serialize() (string, error) {
	if p.Wallets == nil {
		p.Wallets = &[]string{}
	}
	if p.TxMetadata == nil {
		p.TxMetadata = make(map[string]domain.TxMetadata)
	}
	buf, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
