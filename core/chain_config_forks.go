package core

import (
	"fmt"
	"math/big"
)

// ForkID names a single protocol upgrade and the height or time at which it
// activates, giving callers a uniform way to enumerate a chain's schedule
// regardless of whether the fork is block- or timestamp-gated.
type ForkID struct {
	Name      string
	Block     *uint64 // nil for timestamp-gated forks
	Timestamp *uint64 // nil for block-gated forks
}

func (f ForkID) String() string {
	switch {
	case f.Block != nil:
		return fmt.Sprintf("%s@block(%d)", f.Name, *f.Block)
	case f.Timestamp != nil:
		return fmt.Sprintf("%s@time(%d)", f.Name, *f.Timestamp)
	default:
		return f.Name + "@genesis"
	}
}

// IsActive reports whether this fork has activated given the current block
// number and timestamp.
func (f ForkID) IsActive(num uint64, time uint64) bool {
	switch {
	case f.Block != nil:
		return num >= *f.Block
	case f.Timestamp != nil:
		return time >= *f.Timestamp
	default:
		return true
	}
}

func blockFork(name string, v *big.Int) ForkID {
	if v == nil {
		return ForkID{Name: name}
	}
	n := v.Uint64()
	return ForkID{Name: name, Block: &n}
}

func timeFork(name string, v *uint64) ForkID {
	if v == nil {
		return ForkID{Name: name}
	}
	t := *v
	return ForkID{Name: name, Timestamp: &t}
}

// ForkSchedule enumerates every scheduled fork in c, in activation order.
// Forks left unset (nil field) are omitted.
func (c *ChainConfig) ForkSchedule() []ForkID {
	candidates := []struct {
		name  string
		block *big.Int
		time  *uint64
	}{
		{name: "Homestead", block: c.HomesteadBlock},
		{name: "EIP150", block: c.EIP150Block},
		{name: "EIP155", block: c.EIP155Block},
		{name: "EIP158", block: c.EIP158Block},
		{name: "Byzantium", block: c.ByzantiumBlock},
		{name: "Constantinople", block: c.ConstantinopleBlock},
		{name: "Petersburg", block: c.PetersburgBlock},
		{name: "Istanbul", block: c.IstanbulBlock},
		{name: "MuirGlacier", block: c.MuirGlacierBlock},
		{name: "Berlin", block: c.BerlinBlock},
		{name: "London", block: c.LondonBlock},
		{name: "ArrowGlacier", block: c.ArrowGlacierBlock},
		{name: "GrayGlacier", block: c.GrayGlacierBlock},
		{name: "Shanghai", time: c.ShanghaiTime},
		{name: "Cancun", time: c.CancunTime},
		{name: "Prague", time: c.PragueTime},
		{name: "Osaka", time: c.OsakaTime},
	}

	var out []ForkID
	for _, cand := range candidates {
		if cand.block == nil && cand.time == nil {
			continue
		}
		if cand.block != nil {
			out = append(out, blockFork(cand.name, cand.block))
		} else {
			out = append(out, timeFork(cand.name, cand.time))
		}
	}
	return out
}

// ActiveForks returns the subset of c's schedule already activated at the
// given block number and timestamp.
func (c *ChainConfig) ActiveForks(num uint64, time uint64) []ForkID {
	var out []ForkID
	for _, f := range c.ForkSchedule() {
		if f.IsActive(num, time) {
			out = append(out, f)
		}
	}
	return out
}

// PendingForks returns the subset of c's schedule not yet activated.
func (c *ChainConfig) PendingForks(num uint64, time uint64) []ForkID {
	var out []ForkID
	for _, f := range c.ForkSchedule() {
		if !f.IsActive(num, time) {
			out = append(out, f)
		}
	}
	return out
}

// NextForkAfter returns the earliest scheduled fork strictly after the
// given block number and timestamp, or nil if none remain.
func (c *ChainConfig) NextForkAfter(num uint64, time uint64) *ForkID {
	pending := c.PendingForks(num, time)
	if len(pending) == 0 {
		return nil
	}
	return &pending[0]
}
