package partitions

import (
	"fmt"
	"sort"
)

// Partition is the set of patches assigned to one rank
type Partition struct {
	// Rank that owns the partition
	ID int

	// Patch membership
	Patches    []int // Patch ids, ascending
	NumPatches int   // len(Patches)
	MaxPatches int   // Largest NumPatches across the layout

	// Estimated cost, summed from the per-patch weights
	Weight int
}

// PartitionLayout manages the complete assignment of patches to ranks
type PartitionLayout struct {
	// All partitions, indexed by rank
	Partitions []Partition

	// Global sizing information
	MaxPatches    int // max(NumPatches) across all partitions
	TotalPatches  int // Sum of NumPatches across partitions
	NumPartitions int // Number of ranks

	// Patch to partition mapping
	PToP map[int]int // patch id -> rank
}

// NewPartitionLayout builds a layout from a patch id to rank assignment.
// weights may be nil, in which case every patch weighs one.
func NewPartitionLayout(numPartitions int, assignment map[int]int, weights map[int]int) (*PartitionLayout, error) {
	if numPartitions < 1 {
		return nil, fmt.Errorf("invalid number of partitions %d", numPartitions)
	}
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{ID: i, Patches: make([]int, 0)}
	}

	ids := make([]int, 0, len(assignment))
	for id := range assignment {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		rank := assignment[id]
		if rank < 0 || rank >= numPartitions {
			return nil, fmt.Errorf("patch %d assigned to invalid rank %d", id, rank)
		}
		w := 1
		if weights != nil {
			w = weights[id]
		}
		partitions[rank].Patches = append(partitions[rank].Patches, id)
		partitions[rank].NumPatches++
		partitions[rank].Weight += w
	}

	maxPatches := 0
	for _, p := range partitions {
		if p.NumPatches > maxPatches {
			maxPatches = p.NumPatches
		}
	}
	for i := range partitions {
		partitions[i].MaxPatches = maxPatches
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		MaxPatches:    maxPatches,
		TotalPatches:  len(ids),
		NumPartitions: numPartitions,
		PToP:          assignment,
	}
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	return layout, nil
}

// GetPartition returns the rank assigned to patch id, or -1
func (pl *PartitionLayout) GetPartition(id int) int {
	rank, ok := pl.PToP[id]
	if !ok {
		return -1
	}
	return rank
}

// ValidateLayout checks partition consistency
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("have %d partitions, expected %d", len(pl.Partitions), pl.NumPartitions)
	}

	// Verify MaxPatches
	actualMax := 0
	total := 0
	seen := make(map[int]bool, len(pl.PToP))
	for _, p := range pl.Partitions {
		if p.NumPatches > actualMax {
			actualMax = p.NumPatches
		}
		if p.MaxPatches != pl.MaxPatches {
			return fmt.Errorf("partition %d: MaxPatches %d != layout MaxPatches %d",
				p.ID, p.MaxPatches, pl.MaxPatches)
		}
		if p.NumPatches != len(p.Patches) {
			return fmt.Errorf("partition %d: NumPatches %d but holds %d patches",
				p.ID, p.NumPatches, len(p.Patches))
		}
		for _, id := range p.Patches {
			if seen[id] {
				return fmt.Errorf("patch %d assigned to more than one partition", id)
			}
			seen[id] = true
			if pl.PToP[id] != p.ID {
				return fmt.Errorf("patch %d listed in partition %d but mapped to %d", id, p.ID, pl.PToP[id])
			}
		}
		total += p.NumPatches
	}
	if actualMax != pl.MaxPatches {
		return fmt.Errorf("computed MaxPatches %d != stored MaxPatches %d", actualMax, pl.MaxPatches)
	}
	if total != pl.TotalPatches || total != len(pl.PToP) {
		return fmt.Errorf("partitions hold %d patches, layout maps %d", total, len(pl.PToP))
	}
	return nil
}

// PartitionStatistics computes load balance metrics
func (pl *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		MinPatches:    pl.TotalPatches,
		MaxPatches:    0,
		AvgPatches:    float64(pl.TotalPatches) / float64(pl.NumPartitions),
	}

	for _, p := range pl.Partitions {
		if p.NumPatches < stats.MinPatches {
			stats.MinPatches = p.NumPatches
		}
		if p.NumPatches > stats.MaxPatches {
			stats.MaxPatches = p.NumPatches
		}
	}

	if stats.AvgPatches > 0 {
		stats.Imbalance = float64(stats.MaxPatches) / stats.AvgPatches
	}
	return stats
}

// PartitionStats summarizes how evenly patches are spread over ranks
type PartitionStats struct {
	NumPartitions int
	MinPatches    int
	MaxPatches    int
	AvgPatches    float64
	Imbalance     float64 // MaxPatches / AvgPatches
}
