package models

// WalletModel is owned by an external collaborator; the core only reads its
// identity and currency, and the settlement engine uses the private key to
// sign consolidated transfers.
type WalletModel struct {
	Id           string `json:"id"`
	AccountId    string `json:"account_id"`
	CurrencyCode string `json:"currency_code"`
	PrivateKey   string `json:"-"`
}

// BalanceModel is a wallet's balance picture at a snapshot of orders and
// trades. Errors counts blockchain collaborator failures encountered while
// reading on-chain balances; when nonzero, Blockchain is a conservative
// partial figure and callers decide whether to block trading.
type BalanceModel struct {
	Blockchain int64 `json:"blockchain"`
	Pending    int64 `json:"pending"`
	Trading    int64 `json:"trading"`
	Withdrawal int64 `json:"withdrawal"`
	Errors     int   `json:"errors,omitempty"`
}
