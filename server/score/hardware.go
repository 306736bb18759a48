// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package score

import (
	"fmt"
	"sort"
)

const (
	// OneGBInKB is a gigabyte expressed in kilobytes.
	OneGBInKB int64 = 1024 * 1024
	// OneTBInKB is a terabyte expressed in kilobytes.
	OneTBInKB int64 = 1024 * 1024 * 1024
	// DefaultMaxDiskTB is the disk capacity, in TB, above which capacity
	// scoring is clamped.
	DefaultMaxDiskTB int64 = 96
	// MaxDiskTBLimit bounds the configurable MaxDiskTB.
	MaxDiskTBLimit int64 = 1 << 20
	// DefaultHardwareForkHeight is the first height scored with the terabyte
	// capacity algorithm.
	DefaultHardwareForkHeight int64 = 1
)

// DiskUnits converts a disk capacity in KB into hardware score units, given
// the capacity clamp in TB.
type DiskUnits func(diskKB, maxTB int64) int64

// HardwareAlgorithm is a disk capacity scoring algorithm and the first height
// it applies to.
type HardwareAlgorithm struct {
	Name       string
	FromHeight int64
	Units      DiskUnits
}

// LegacyDiskUnits counts whole gigabytes.
func LegacyDiskUnits(diskKB, _ int64) int64 {
	return diskKB / OneGBInKB
}

// CapacityTBUnits counts terabytes. Capacities in (0.95, 1] TB count as 1,
// capacities in (1, maxTB] TB are truncated to whole TB and larger capacities
// are clamped to maxTB. Anything at or below 0.95 TB scores 0.
func CapacityTBUnits(diskKB, maxTB int64) int64 {
	switch {
	case diskKB > maxTB*OneTBInKB:
		return maxTB
	case diskKB > OneTBInKB:
		return diskKB / OneTBInKB
	case 20*diskKB > 19*OneTBInKB: // > 0.95 TB
		return 1
	}
	return 0
}

// hardwareSchedule is sorted by ascending FromHeight.
type hardwareSchedule []HardwareAlgorithm

func newHardwareSchedule(algos ...HardwareAlgorithm) (hardwareSchedule, error) {
	s := hardwareSchedule(algos)
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].FromHeight < s[j].FromHeight
	})
	if len(s) == 0 || s[0].FromHeight > 0 {
		return nil, fmt.Errorf("no hardware algorithm for height 0")
	}
	for i := 1; i < len(s); i++ {
		if s[i].FromHeight == s[i-1].FromHeight {
			return nil, fmt.Errorf("hardware algorithms %s and %s share height %d",
				s[i-1].Name, s[i].Name, s[i].FromHeight)
		}
	}
	return s, nil
}

// at returns the algorithm with the greatest FromHeight <= height.
func (s hardwareSchedule) at(height int64) HardwareAlgorithm {
	i := sort.Search(len(s), func(i int) bool {
		return s[i].FromHeight > height
	})
	if i == 0 {
		return s[0]
	}
	return s[i-1]
}
