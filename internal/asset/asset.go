// Package asset defines the asset tags handled by the bridge and their
// mapping to settlement chains. All bridged assets are hardcoded here -
// reconciliation never sees an asset that is not in this registry.
package asset

// Tag identifies an asset on one side of a bridge swap.
type Tag string

const (
	// BTC is bitcoin, on-chain or over Lightning depending on swap type.
	BTC Tag = "BTC"

	// CBTC is bridged bitcoin settled on the rollup chain.
	CBTC Tag = "cBTC"

	// Bridged ERC-20s, each settled on exactly one chain.
	USDC Tag = "USDC"
	USDT Tag = "USDT"
	WBTC Tag = "WBTC"
)

// Kind represents the asset family.
type Kind string

const (
	KindBitcoin Kind = "bitcoin" // native BTC (on-chain or Lightning)
	KindBridged Kind = "bridged" // bridged bitcoin on an EVM chain
	KindERC20   Kind = "erc20"   // bridged ERC-20 token
)

// Asset describes one bridgeable asset.
type Asset struct {
	Tag      Tag
	Name     string
	Kind     Kind
	Decimals uint8

	// ChainID is the EVM settlement chain for bridged assets (0 for BTC).
	ChainID uint64

	// TokenAddress is the ERC-20 contract address (empty for native assets).
	TokenAddress string
}

// IsEVM returns true if the asset settles on an EVM chain.
func (a Asset) IsEVM() bool {
	return a.ChainID != 0
}

// registry holds all supported assets. The set is fixed at compile time;
// settlement chain ids can be overridden through configuration.
var registry = map[Tag]Asset{
	BTC: {
		Tag:      BTC,
		Name:     "Bitcoin",
		Kind:     KindBitcoin,
		Decimals: 8,
	},
	CBTC: {
		Tag:      CBTC,
		Name:     "Bridged Bitcoin",
		Kind:     KindBridged,
		Decimals: 8,
		ChainID:  5115,
	},
	USDC: {
		Tag:      USDC,
		Name:     "USD Coin",
		Kind:     KindERC20,
		Decimals: 6,
		ChainID:  1,
	},
	USDT: {
		Tag:      USDT,
		Name:     "Tether USD",
		Kind:     KindERC20,
		Decimals: 6,
		ChainID:  137,
	},
	WBTC: {
		Tag:      WBTC,
		Name:     "Wrapped Bitcoin",
		Kind:     KindERC20,
		Decimals: 8,
		ChainID:  42161,
	},
}

// Get returns the asset for a tag.
func Get(tag Tag) (Asset, bool) {
	a, ok := registry[tag]
	return a, ok
}

// SettlementChain returns the EVM settlement chain id for a tag.
// Returns 0, false for assets that do not settle on an EVM chain.
func SettlementChain(tag Tag) (uint64, bool) {
	a, ok := registry[tag]
	if !ok || a.ChainID == 0 {
		return 0, false
	}
	return a.ChainID, true
}

// IsBridgedERC20 returns true if the tag is in the bridged ERC-20 set.
func IsBridgedERC20(tag Tag) bool {
	a, ok := registry[tag]
	return ok && a.Kind == KindERC20
}

// IsSupported returns true if the tag is a known asset.
func IsSupported(tag Tag) bool {
	_, ok := registry[tag]
	return ok
}

// List returns all registered asset tags.
func List() []Tag {
	tags := make([]Tag, 0, len(registry))
	for tag := range registry {
		tags = append(tags, tag)
	}
	return tags
}

// SetSettlementChain overrides the settlement chain for a tag.
// Called once at startup when the config remaps a bridged asset.
func SetSettlementChain(tag Tag, chainID uint64) {
	a, ok := registry[tag]
	if !ok {
		return
	}
	a.ChainID = chainID
	registry[tag] = a
}
