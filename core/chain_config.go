package core

import (
	"math/big"
)

// ChainConfig describes the fork schedule of a chain: the block number or
// timestamp at which each named protocol upgrade activates. Block-numbered
// forks predate the merge; timestamp-numbered forks are Shanghai and later,
// matching mainnet's switch from block-based to time-based activation.
//
// A nil *big.Int field means the fork is not scheduled (never active).
type ChainConfig struct {
	ChainID *big.Int

	HomesteadBlock      *big.Int
	EIP150Block         *big.Int // Tangerine Whistle
	EIP155Block         *big.Int // Spurious Dragon (replay protection)
	EIP158Block         *big.Int // Spurious Dragon (state clearing)
	ByzantiumBlock      *big.Int
	ConstantinopleBlock *big.Int
	PetersburgBlock     *big.Int
	IstanbulBlock       *big.Int
	MuirGlacierBlock    *big.Int
	BerlinBlock         *big.Int
	LondonBlock         *big.Int
	ArrowGlacierBlock   *big.Int
	GrayGlacierBlock    *big.Int

	// TerminalTotalDifficulty marks the transition to proof-of-stake. Once
	// set, MergeNetsplitBlock (if any) or the TTD itself gates Paris rules.
	TerminalTotalDifficulty *big.Int
	MergeNetsplitBlock      *big.Int

	ShanghaiTime *uint64
	CancunTime   *uint64
	PragueTime   *uint64
	OsakaTime    *uint64
}

func u64p(v uint64) *uint64 { return &v }

// MainnetConfig mirrors Ethereum mainnet's historical fork schedule up to
// Osaka. Timestamps for Prague and Osaka are scheduling placeholders.
var MainnetConfig = &ChainConfig{
	ChainID:                 big.NewInt(1),
	HomesteadBlock:          big.NewInt(1_150_000),
	EIP150Block:             big.NewInt(2_463_000),
	EIP155Block:             big.NewInt(2_675_000),
	EIP158Block:             big.NewInt(2_675_000),
	ByzantiumBlock:          big.NewInt(4_370_000),
	ConstantinopleBlock:     big.NewInt(7_280_000),
	PetersburgBlock:         big.NewInt(7_280_000),
	IstanbulBlock:           big.NewInt(9_069_000),
	MuirGlacierBlock:        big.NewInt(9_200_000),
	BerlinBlock:             big.NewInt(12_244_000),
	LondonBlock:             big.NewInt(12_965_000),
	ArrowGlacierBlock:       big.NewInt(13_773_000),
	GrayGlacierBlock:        big.NewInt(15_050_000),
	TerminalTotalDifficulty: new(big.Int).SetUint64(58_750_000_000_000_000),
	ShanghaiTime:            u64p(1_681_338_455),
	CancunTime:              u64p(1_710_338_135),
	PragueTime:              u64p(1_746_612_311),
	OsakaTime:               u64p(1_764_000_000),
}

// SepoliaConfig mirrors the Sepolia testnet fork schedule.
var SepoliaConfig = &ChainConfig{
	ChainID:                 big.NewInt(11_155_111),
	HomesteadBlock:          big.NewInt(0),
	EIP150Block:             big.NewInt(0),
	EIP155Block:             big.NewInt(0),
	EIP158Block:             big.NewInt(0),
	ByzantiumBlock:          big.NewInt(0),
	ConstantinopleBlock:     big.NewInt(0),
	PetersburgBlock:         big.NewInt(0),
	IstanbulBlock:           big.NewInt(0),
	MuirGlacierBlock:        big.NewInt(0),
	BerlinBlock:             big.NewInt(0),
	LondonBlock:             big.NewInt(0),
	TerminalTotalDifficulty: big.NewInt(17_000_000_000_000_000),
	ShanghaiTime:            u64p(1_677_557_088),
	CancunTime:              u64p(1_706_655_072),
	PragueTime:              u64p(1_741_159_776),
	OsakaTime:               u64p(1_764_000_000),
}

// HoleskyConfig mirrors the Holesky testnet fork schedule.
var HoleskyConfig = &ChainConfig{
	ChainID:                 big.NewInt(17_000),
	HomesteadBlock:          big.NewInt(0),
	EIP150Block:             big.NewInt(0),
	EIP155Block:             big.NewInt(0),
	EIP158Block:             big.NewInt(0),
	ByzantiumBlock:          big.NewInt(0),
	ConstantinopleBlock:     big.NewInt(0),
	PetersburgBlock:         big.NewInt(0),
	IstanbulBlock:           big.NewInt(0),
	MuirGlacierBlock:        big.NewInt(0),
	BerlinBlock:             big.NewInt(0),
	LondonBlock:             big.NewInt(0),
	TerminalTotalDifficulty: big.NewInt(0),
	ShanghaiTime:            u64p(1_696_000_704),
	CancunTime:              u64p(1_707_305_664),
	PragueTime:              u64p(1_740_434_112),
	OsakaTime:               u64p(1_764_000_000),
}

// TestConfig activates every fork at genesis (block 0, time 0), used by
// component tests that want every opcode and gas rule live from the start.
var TestConfig = &ChainConfig{
	ChainID:                 big.NewInt(1337),
	HomesteadBlock:          big.NewInt(0),
	EIP150Block:             big.NewInt(0),
	EIP155Block:             big.NewInt(0),
	EIP158Block:             big.NewInt(0),
	ByzantiumBlock:          big.NewInt(0),
	ConstantinopleBlock:     big.NewInt(0),
	PetersburgBlock:         big.NewInt(0),
	IstanbulBlock:           big.NewInt(0),
	MuirGlacierBlock:        big.NewInt(0),
	BerlinBlock:             big.NewInt(0),
	LondonBlock:             big.NewInt(0),
	ArrowGlacierBlock:       big.NewInt(0),
	GrayGlacierBlock:        big.NewInt(0),
	TerminalTotalDifficulty: big.NewInt(0),
	ShanghaiTime:            u64p(0),
	CancunTime:              u64p(0),
	PragueTime:              u64p(0),
	OsakaTime:               u64p(0),
}

func isBlockForked(fork, head *big.Int) bool {
	if fork == nil || head == nil {
		return false
	}
	return fork.Cmp(head) <= 0
}

func isTimeForked(fork *uint64, time uint64) bool {
	if fork == nil {
		return false
	}
	return *fork <= time
}

func (c *ChainConfig) IsHomestead(num *big.Int) bool      { return isBlockForked(c.HomesteadBlock, num) }
func (c *ChainConfig) IsEIP150(num *big.Int) bool         { return isBlockForked(c.EIP150Block, num) }
func (c *ChainConfig) IsEIP155(num *big.Int) bool         { return isBlockForked(c.EIP155Block, num) }
func (c *ChainConfig) IsEIP158(num *big.Int) bool         { return isBlockForked(c.EIP158Block, num) }
func (c *ChainConfig) IsByzantium(num *big.Int) bool      { return isBlockForked(c.ByzantiumBlock, num) }
func (c *ChainConfig) IsConstantinople(num *big.Int) bool { return isBlockForked(c.ConstantinopleBlock, num) }
func (c *ChainConfig) IsPetersburg(num *big.Int) bool     { return isBlockForked(c.PetersburgBlock, num) }
func (c *ChainConfig) IsIstanbul(num *big.Int) bool       { return isBlockForked(c.IstanbulBlock, num) }
func (c *ChainConfig) IsBerlin(num *big.Int) bool         { return isBlockForked(c.BerlinBlock, num) }
func (c *ChainConfig) IsLondon(num *big.Int) bool         { return isBlockForked(c.LondonBlock, num) }

// IsMerge reports whether the chain has transitioned to proof-of-stake by
// the given block number, approximated here by the Paris/merge block once
// known; callers that only have a TTD comparison should use IsMergeTTD.
func (c *ChainConfig) IsMerge(num *big.Int) bool {
	return isBlockForked(c.MergeNetsplitBlock, num) || c.TerminalTotalDifficulty != nil && c.TerminalTotalDifficulty.Sign() == 0
}

func (c *ChainConfig) IsShanghai(time uint64) bool { return isTimeForked(c.ShanghaiTime, time) }
func (c *ChainConfig) IsCancun(time uint64) bool   { return isTimeForked(c.CancunTime, time) }
func (c *ChainConfig) IsPrague(time uint64) bool   { return isTimeForked(c.PragueTime, time) }
func (c *ChainConfig) IsOsaka(time uint64) bool    { return isTimeForked(c.OsakaTime, time) }

// IsGlamsterdan always reports false: this chain configuration only models
// forks through Osaka. Kept so callers written against the post-Osaka fork
// name compile unchanged; no schedule field backs it.
func (c *ChainConfig) IsGlamsterdan(time uint64) bool { return false }

// IsAmsterdam always reports false, for the same reason as IsGlamsterdan:
// block access list tracking is a post-Osaka feature with no schedule field
// in this configuration.
func (c *ChainConfig) IsAmsterdam(time uint64) bool { return false }

// Rules is a frozen snapshot of which fork-gated rules are active for a
// given block number, timestamp, and merge status. Gas and interpreter code
// should branch on Rules fields rather than re-querying ChainConfig, so a
// single block's execution sees a consistent fork view throughout.
type Rules struct {
	ChainID                                                 *big.Int
	IsHomestead, IsEIP150, IsEIP155, IsEIP158                bool
	IsByzantium, IsConstantinople, IsPetersburg, IsIstanbul  bool
	IsBerlin, IsLondon, IsMerge                              bool
	IsShanghai, IsCancun, IsPrague, IsOsaka                  bool

	// Per-EIP aliases for the gates callers most often ask about directly.
	IsEIP2929, IsEIP1559, IsEIP3529, IsEIP4844, IsEIP7702 bool
}

// Rules returns the fork rules active at the given block number and
// timestamp. isMerge should reflect whether the block's difficulty/TTD
// conditions place it post-merge (PoS), since the merge itself is not
// scheduled by block number or timestamp alone on most networks.
func (c *ChainConfig) Rules(num *big.Int, isMerge bool, time uint64) Rules {
	return Rules{
		ChainID:          c.ChainID,
		IsHomestead:      c.IsHomestead(num),
		IsEIP150:         c.IsEIP150(num),
		IsEIP155:         c.IsEIP155(num),
		IsEIP158:         c.IsEIP158(num),
		IsByzantium:      c.IsByzantium(num),
		IsConstantinople: c.IsConstantinople(num),
		IsPetersburg:     c.IsPetersburg(num),
		IsIstanbul:       c.IsIstanbul(num),
		IsBerlin:         c.IsBerlin(num),
		IsLondon:         c.IsLondon(num),
		IsMerge:          isMerge || c.IsMerge(num),
		IsShanghai:       (isMerge || c.IsMerge(num)) && c.IsShanghai(time),
		IsCancun:         (isMerge || c.IsMerge(num)) && c.IsCancun(time),
		IsPrague:         (isMerge || c.IsMerge(num)) && c.IsPrague(time),
		IsOsaka:          (isMerge || c.IsMerge(num)) && c.IsOsaka(time),

		IsEIP2929: c.IsBerlin(num),
		IsEIP1559: c.IsLondon(num),
		IsEIP3529: c.IsLondon(num),
		IsEIP4844: (isMerge || c.IsMerge(num)) && c.IsCancun(time),
		IsEIP7702: (isMerge || c.IsMerge(num)) && c.IsPrague(time),
	}
}

// GetRules is an alias for Rules kept for call sites grounded on the
// original two-argument (blockNum, time) call shape; it derives isMerge
// from the configured TerminalTotalDifficulty/MergeNetsplitBlock alone.
func (c *ChainConfig) GetRules(num *big.Int, time uint64) Rules {
	return c.Rules(num, c.IsMerge(num), time)
}
