package domain

import "sort"

// TxRecord is a transaction held by the transaction cache on behalf of a
// wallet. Internal and Index are nil for wallets with a flat transaction
// list, and set for hierarchical wallets whose transactions are partitioned
// by chain (internal = change, external = receive) and derivation index.
type TxRecord struct {
	WalletID string
	Internal *bool
	Index    *int
	Tx       Transaction
}

// NewChainRecord returns a record bound to a derivation chain and index.
func NewChainRecord(walletID string, internal bool, index int, tx Transaction) TxRecord {
	return TxRecord{
		WalletID: walletID,
		Internal: &internal,
		Index:    &index,
		Tx:       tx,
	}
}

// IsChained returns whether the record belongs to a derivation chain.
func (r TxRecord) IsChained() bool {
	return r.Internal != nil && r.Index != nil
}

// PartitionRecords splits cached records into external and internal chains
// keyed by derivation index, and a flat list for records without chain info.
func PartitionRecords(records []TxRecord) (
	external, internal map[int][]Transaction, flat []Transaction,
) {
	external = make(map[int][]Transaction)
	internal = make(map[int][]Transaction)
	for _, r := range records {
		if !r.IsChained() {
			flat = append(flat, r.Tx)
			continue
		}
		if *r.Internal {
			internal[*r.Index] = append(internal[*r.Index], r.Tx)
			continue
		}
		external[*r.Index] = append(external[*r.Index], r.Tx)
	}
	return
}

// TxChains holds the transactions of a hierarchical wallet indexed by the
// derivation index of the address they belong to.
type TxChains struct {
	External map[int][]Transaction `json:"txs_by_external_index,omitempty"`
	Internal map[int][]Transaction `json:"txs_by_internal_index,omitempty"`
}

func (c *TxChains) records(walletID string) []TxRecord {
	records := make([]TxRecord, 0)
	for _, index := range sortedIndexes(c.External) {
		for _, tx := range c.External[index] {
			records = append(records, NewChainRecord(walletID, false, index, tx))
		}
	}
	for _, index := range sortedIndexes(c.Internal) {
		for _, tx := range c.Internal[index] {
			records = append(records, NewChainRecord(walletID, true, index, tx))
		}
	}
	return records
}

func (c *TxChains) merge(records []TxRecord) {
	external, internal, _ := PartitionRecords(records)
	if len(external) <= 0 && len(internal) <= 0 {
		return
	}
	c.External = external
	c.Internal = internal
}

func (c *TxChains) transactions() []Transaction {
	txs := make([]Transaction, 0)
	for _, index := range sortedIndexes(c.External) {
		txs = append(txs, c.External[index]...)
	}
	for _, index := range sortedIndexes(c.Internal) {
		txs = append(txs, c.Internal[index]...)
	}
	return txs
}

func sortedIndexes(m map[int][]Transaction) []int {
	indexes := make([]int, 0, len(m))
	for i := range m {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	return indexes
}
