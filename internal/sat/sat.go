// Package sat implements ordinal numbering arithmetic: block height, epoch
// and rarity of an individual satoshi.
package sat

import "fmt"

const (
	HalvingInterval    = 210_000
	DifficultyInterval = 2_016
	CycleEpochs        = 6
	InitialSubsidy     = 50 * 100_000_000
	epochs             = 34
)

type Rarity int

const (
	Common Rarity = iota
	Uncommon
	Rare
	Epic
	Legendary
	Mythic
)

func (r Rarity) String() string {
	switch r {
	case Uncommon:
		return "uncommon"
	case Rare:
		return "rare"
	case Epic:
		return "epic"
	case Legendary:
		return "legendary"
	case Mythic:
		return "mythic"
	default:
		return "common"
	}
}

var epochStarts = func() [epochs]uint64 {
	var starts [epochs]uint64
	var total uint64
	for i := 0; i < epochs; i++ {
		starts[i] = total
		total += HalvingInterval * Subsidy(uint64(i)*HalvingInterval)
	}
	return starts
}()

// Supply is the total number of sats that will ever be mined.
var Supply = epochStarts[epochs-1]

// Subsidy is the block reward in sats at height.
func Subsidy(height uint64) uint64 {
	epoch := height / HalvingInterval
	if epoch >= 64 {
		return 0
	}
	return InitialSubsidy >> epoch
}

type Sat uint64

func (s Sat) Epoch() uint64 {
	for i := epochs - 1; i > 0; i-- {
		if uint64(s) >= epochStarts[i] {
			return uint64(i)
		}
	}
	return 0
}

func (s Sat) Height() uint64 {
	epoch := s.Epoch()
	subsidy := Subsidy(epoch * HalvingInterval)
	if subsidy == 0 {
		return epoch * HalvingInterval
	}
	return epoch*HalvingInterval + (uint64(s)-epochStarts[epoch])/subsidy
}

// Third is the offset of the sat within its block's subsidy.
func (s Sat) Third() uint64 {
	epoch := s.Epoch()
	subsidy := Subsidy(epoch * HalvingInterval)
	if subsidy == 0 {
		return 0
	}
	return (uint64(s) - epochStarts[epoch]) % subsidy
}

func (s Sat) Valid() bool {
	return uint64(s) < Supply
}

func (s Sat) Rarity() Rarity {
	if s == 0 {
		return Mythic
	}
	height := s.Height()
	epochOffset := height % HalvingInterval
	periodOffset := height % DifficultyInterval
	third := s.Third()
	switch {
	case third != 0:
		return Common
	case epochOffset == 0 && periodOffset == 0:
		return Legendary
	case epochOffset == 0:
		return Epic
	case periodOffset == 0:
		return Rare
	default:
		return Uncommon
	}
}

// Degree renders the sat in ordinal degree notation: cycle°epoch′period″third‴.
func (s Sat) Degree() string {
	height := s.Height()
	cycle := height / (CycleEpochs * HalvingInterval)
	return fmt.Sprintf("%d°%d′%d″%d‴", cycle, height%HalvingInterval, height%DifficultyInterval, s.Third())
}
