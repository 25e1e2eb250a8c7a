package slab

import "encoding/binary"

// MarketConfig layout (176 bytes):
//
//	collateral_mint        [32]byte
//	vault_token_account    [32]byte
//	index_oracle           [32]byte
//	collateral_oracle      [32]byte
//	max_staleness_slots    u64
//	conf_filter_bps        u16
//	oracle_push_authority  [32]byte  (all-zero = unset, admin-only push)
//	_padding               [6]byte
type MarketConfig struct{ b []byte }

func (v *View) Config() MarketConfig { return MarketConfig{b: v.region(OffMarketConfig, MarketConfigLen)} }

const (
	cfgCollateralMint     = 0
	cfgVaultTokenAccount  = 32
	cfgIndexOracle        = 64
	cfgCollateralOracle   = 96
	cfgMaxStalenessSlots  = 128
	cfgConfFilterBps      = 136
	cfgOraclePushAuthority = 138
)

func (c MarketConfig) CollateralMint() [32]byte    { return read32(c.b, cfgCollateralMint) }
func (c MarketConfig) SetCollateralMint(k [32]byte) { write32(c.b, cfgCollateralMint, k) }

func (c MarketConfig) VaultTokenAccount() [32]byte     { return read32(c.b, cfgVaultTokenAccount) }
func (c MarketConfig) SetVaultTokenAccount(k [32]byte) { write32(c.b, cfgVaultTokenAccount, k) }

func (c MarketConfig) IndexOracle() [32]byte     { return read32(c.b, cfgIndexOracle) }
func (c MarketConfig) SetIndexOracle(k [32]byte) { write32(c.b, cfgIndexOracle, k) }

func (c MarketConfig) CollateralOracle() [32]byte     { return read32(c.b, cfgCollateralOracle) }
func (c MarketConfig) SetCollateralOracle(k [32]byte) { write32(c.b, cfgCollateralOracle, k) }

func (c MarketConfig) MaxStalenessSlots() uint64 {
	return binary.LittleEndian.Uint64(c.b[cfgMaxStalenessSlots : cfgMaxStalenessSlots+8])
}
func (c MarketConfig) SetMaxStalenessSlots(v uint64) {
	binary.LittleEndian.PutUint64(c.b[cfgMaxStalenessSlots:cfgMaxStalenessSlots+8], v)
}

func (c MarketConfig) ConfFilterBps() uint16 {
	return binary.LittleEndian.Uint16(c.b[cfgConfFilterBps : cfgConfFilterBps+2])
}
func (c MarketConfig) SetConfFilterBps(v uint16) {
	binary.LittleEndian.PutUint16(c.b[cfgConfFilterBps:cfgConfFilterBps+2], v)
}

// OraclePushAuthority is the optional delegated push authority;
// all-zero means only the admin may push a price.
func (c MarketConfig) OraclePushAuthority() [32]byte { return read32(c.b, cfgOraclePushAuthority) }
func (c MarketConfig) SetOraclePushAuthority(k [32]byte) {
	write32(c.b, cfgOraclePushAuthority, k)
}

func read32(b []byte, off int) [32]byte {
	var out [32]byte
	copy(out[:], b[off:off+32])
	return out
}

func write32(b []byte, off int, v [32]byte) { copy(b[off:off+32], v[:]) }
