package partitions

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/notargets/DDKernel/comm"
	"github.com/sirupsen/logrus"
)

// Query is the view of a distributed patch set a Partitioner works from. It
// exposes the locally owned objects, their geometry and their adjacency, and
// the packing used to migrate them.
type Query interface {
	Comm() *comm.Comm
	ObjectCount() int
	ObjectList() []int
	ObjectSizes() ([]int, error)
	ObjectCenter(id int) []float64
	EdgeCount(id int) int
	EdgeList(id int) []int
	Pack(destRank int, ids []int) ([]byte, error)
	Unpack(b []byte) error
}

// Partitioner decides where patches should live. Partition is collective
// and returns, for locally owned patches only, the ones that must move and
// their destination rank.
type Partitioner interface {
	Partition(q Query) (map[int]int, error)
}

// PartitionStrategy defines how patches are grouped
type PartitionStrategy int

const (
	// Simple strategies
	BlockPartition PartitionStrategy = iota // Consecutive ids
	RoundRobin                              // Distribute cyclically

	// Geometry and graph based strategies
	GraphPartition    // Greedy graph growing over neighbor edges
	SpaceFillingCurve // Morton ordering of patch centers
)

var strategyNames = map[PartitionStrategy]string{
	BlockPartition:    "block",
	RoundRobin:        "round_robin",
	GraphPartition:    "graph",
	SpaceFillingCurve: "sfc",
}

func (s PartitionStrategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

// ParseStrategy converts a strategy name as written by String
func ParseStrategy(name string) (PartitionStrategy, error) {
	for s, n := range strategyNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown partition strategy %q", name)
}

// PartitionBuilder computes a partition from the patches of every rank.
// Every rank gathers the same object list and runs the same deterministic
// assignment, so no decision has to be broadcast.
type PartitionBuilder struct {
	Strategy PartitionStrategy

	// Layout is the most recent result
	Layout *PartitionLayout

	log *logrus.Entry
}

// NewPartitionBuilder returns a builder for strategy. log may be nil.
func NewPartitionBuilder(strategy PartitionStrategy, log *logrus.Entry) *PartitionBuilder {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &PartitionBuilder{
		Strategy: strategy,
		log:      log.WithField("component", "partitioner"),
	}
}

// Object is one patch as seen by the partitioner
type Object struct {
	ID     int
	Rank   int
	Size   int
	Center []float64
	Edges  []int
}

// Partition implements Partitioner
func (pb *PartitionBuilder) Partition(q Query) (map[int]int, error) {
	c := q.Comm()
	ids := q.ObjectList()
	sizes, err := q.ObjectSizes()
	if err != nil {
		return nil, fmt.Errorf("size partition objects: %w", err)
	}
	if len(ids) != q.ObjectCount() || len(sizes) != len(ids) {
		return nil, fmt.Errorf("query reports %d objects, lists %d ids and %d sizes",
			q.ObjectCount(), len(ids), len(sizes))
	}
	local := make([]Object, len(ids))
	for i, id := range ids {
		edges := q.EdgeList(id)
		if len(edges) != q.EdgeCount(id) {
			return nil, fmt.Errorf("patch %d reports %d edges, lists %d", id, q.EdgeCount(id), len(edges))
		}
		local[i] = Object{
			ID:     id,
			Rank:   c.Rank(),
			Size:   sizes[i],
			Center: q.ObjectCenter(id),
			Edges:  edges,
		}
	}

	gathered, err := comm.Allgather(c, local)
	if err != nil {
		return nil, fmt.Errorf("gather partition objects: %w", err)
	}
	var objects []Object
	for _, objs := range gathered {
		objects = append(objects, objs...)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].ID < objects[j].ID })

	layout, err := pb.BuildPartitions(objects, c.Size())
	if err != nil {
		return nil, err
	}
	pb.Layout = layout

	exports := make(map[int]int)
	for _, id := range ids {
		if dest := layout.GetPartition(id); dest != c.Rank() {
			exports[id] = dest
		}
	}

	stats := layout.PartitionStatistics()
	pb.log.WithFields(logrus.Fields{
		"rank":      c.Rank(),
		"strategy":  pb.Strategy.String(),
		"patches":   layout.TotalPatches,
		"imbalance": stats.Imbalance,
		"exports":   len(exports),
	}).Debug("computed partition")
	return exports, nil
}

// BuildPartitions creates a partition layout from objects sorted by id
func (pb *PartitionBuilder) BuildPartitions(objects []Object, numPartitions int) (*PartitionLayout, error) {
	assignment := make(map[int]int, len(objects))
	weights := make(map[int]int, len(objects))
	for _, o := range objects {
		weights[o.ID] = o.Size
	}

	switch pb.Strategy {
	case BlockPartition:
		for i, o := range objects {
			assignment[o.ID] = blockRank(i, len(objects), numPartitions)
		}
	case RoundRobin:
		for i, o := range objects {
			assignment[o.ID] = i % numPartitions
		}
	case SpaceFillingCurve:
		order := mortonOrder(objects)
		for i, o := range order {
			assignment[o.ID] = blockRank(i, len(order), numPartitions)
		}
	case GraphPartition:
		assignment = graphPartition(objects, numPartitions)
	default:
		return nil, fmt.Errorf("unsupported partition strategy %v", pb.Strategy)
	}

	return NewPartitionLayout(numPartitions, assignment, weights)
}

// blockRank splits n ordered items into numPartitions consecutive runs whose
// sizes differ by at most one
func blockRank(i, n, numPartitions int) int {
	return i * numPartitions / n
}

const mortonBits = 20

// mortonOrder sorts objects by the Morton key of their centers within the
// bounding box of all centers
func mortonOrder(objects []Object) []Object {
	if len(objects) == 0 {
		return objects
	}
	dim := len(objects[0].Center)
	lo := make([]float64, dim)
	hi := make([]float64, dim)
	for d := 0; d < dim; d++ {
		lo[d], hi[d] = math.Inf(1), math.Inf(-1)
	}
	for _, o := range objects {
		for d, x := range o.Center {
			lo[d] = math.Min(lo[d], x)
			hi[d] = math.Max(hi[d], x)
		}
	}

	keys := make(map[int]uint64, len(objects))
	scale := float64(uint64(1)<<mortonBits - 1)
	for _, o := range objects {
		var key uint64
		cells := make([]uint64, dim)
		for d, x := range o.Center {
			if hi[d] > lo[d] {
				cells[d] = uint64(math.Round((x - lo[d]) / (hi[d] - lo[d]) * scale))
			}
		}
		for b := mortonBits - 1; b >= 0; b-- {
			for d := dim - 1; d >= 0; d-- {
				key = key<<1 | (cells[d]>>uint(b))&1
			}
		}
		keys[o.ID] = key
	}

	order := append([]Object(nil), objects...)
	sort.SliceStable(order, func(i, j int) bool {
		ki, kj := keys[order[i].ID], keys[order[j].ID]
		if ki != kj {
			return ki < kj
		}
		return order[i].ID < order[j].ID
	})
	return order
}

// graphPartition grows each partition breadth first from the smallest
// unassigned id until it holds its share, so partitions stay connected where
// the graph allows it
func graphPartition(objects []Object, numPartitions int) map[int]int {
	byID := make(map[int]int, len(objects))
	for i, o := range objects {
		byID[o.ID] = i
	}
	assignment := make(map[int]int, len(objects))
	taken := make([]bool, len(objects))

	for part := 0; part < numPartitions; part++ {
		target := len(objects)/numPartitions + boolToInt(part < len(objects)%numPartitions)
		count := 0
		next := 0
		var queue []int
		for count < target {
			if len(queue) == 0 {
				for next < len(objects) && taken[next] {
					next++
				}
				if next == len(objects) {
					break
				}
				taken[next] = true
				queue = append(queue, next)
			}
			i := queue[0]
			queue = queue[1:]
			assignment[objects[i].ID] = part
			count++

			edges := append([]int(nil), objects[i].Edges...)
			sort.Ints(edges)
			for _, nbr := range edges {
				j, ok := byID[nbr]
				if ok && !taken[j] {
					taken[j] = true
					queue = append(queue, j)
				}
			}
		}
		// unvisited queue entries go back to the pool
		for _, i := range queue {
			taken[i] = false
		}
	}
	return assignment
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
