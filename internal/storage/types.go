package storage

import "fmt"

// KeyMetadata describes one stored private key. The registry under
// "keys.{appId}" is a JSON array of these, keyed by address (replace on
// re-store, never duplicated).
type KeyMetadata struct {
	Network     string `json:"network"`
	AppID       string `json:"appId"`
	AccountType string `json:"accountType"`
	Address     string `json:"address"`
	CreatedAt   string `json:"createdAt"` // RFC3339
}

// KeyID is the composite storage key for the private key itself. The layout is
// load-bearing: existing persisted wallets decompose it by splitting on ".".
func (m KeyMetadata) KeyID() string {
	return PrivateKeyID(m.Network, m.AppID, m.AccountType, m.Address)
}

// WalletMetadata is per-address bookkeeping, refreshed on every key read.
type WalletMetadata struct {
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"createdAt"`
	LastUsed  string `json:"lastUsed"`
}

// SessionPointer records the last-connected wallet so reconnection is
// automatic. Cleared on disconnect or on reconnect failure.
type SessionPointer struct {
	Type     string         `json:"type"`
	KeyID    string         `json:"keyId"`
	Network  string         `json:"network"`
	Address  string         `json:"address"`
	Metadata WalletMetadata `json:"metadata"`
}

// UsageInfo is the storage report exposed to the facade.
type UsageInfo struct {
	KeyCount            int  `json:"keyCount"`
	SupportsBiometrics  bool `json:"supportsBiometrics"`
	SupportsEnumeration bool `json:"supportsEnumeration"`
}

// Storage key patterns. Bit-exact for backward compatibility with persisted
// wallets; never reorder or re-delimit.

func PrivateKeyID(network, appID, accountType, address string) string {
	return fmt.Sprintf("%s.%s.%s.%s", network, appID, accountType, address)
}

func registryKey(appID string) string  { return "keys." + appID }
func configKey(appID string) string    { return "config." + appID }
func sessionKey(appID string) string   { return "config." + appID + ".lastWallet" }
func biometricKey(appID string) string { return "biometric." + appID }
func walletMetaKey(appID, address string) string {
	return "wallet." + appID + "." + address
}
