package comm

import (
	"fmt"
	"math"
)

// Collective calls must be made by every rank in the same order. Each call
// uses its own negative tag so collectives never match point-to-point traffic.
func (c *Comm) nextCollTag() int {
	c.collSeq++
	return -c.collSeq
}

// Allgather returns the value contributed by every rank, indexed by rank
func Allgather[T any](c *Comm, v T) ([]T, error) {
	tag := c.nextCollTag()
	if c.rank != 0 {
		c.Send(0, tag, v)
		res, err := c.Recv(0, tag)
		if err != nil {
			return nil, err
		}
		all, ok := res.([]T)
		if !ok {
			return nil, fmt.Errorf("comm: allgather got %T", res)
		}
		return all, nil
	}
	all := make([]T, c.Size())
	all[0] = v
	for r := 1; r < c.Size(); r++ {
		res, err := c.Recv(r, tag)
		if err != nil {
			return nil, err
		}
		val, ok := res.(T)
		if !ok {
			return nil, fmt.Errorf("comm: allgather got %T from rank %d", res, r)
		}
		all[r] = val
	}
	for r := 1; r < c.Size(); r++ {
		c.Send(r, tag, append([]T(nil), all...))
	}
	return all, nil
}

// Bcast returns root's value on every rank
func Bcast[T any](c *Comm, root int, v T) (T, error) {
	tag := c.nextCollTag()
	if c.rank == root {
		for r := 0; r < c.Size(); r++ {
			if r != root {
				c.Send(r, tag, v)
			}
		}
		return v, nil
	}
	var zero T
	res, err := c.Recv(root, tag)
	if err != nil {
		return zero, err
	}
	val, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("comm: bcast got %T", res)
	}
	return val, nil
}

// Alltoall sends out[r] to rank r and returns the values received, indexed by
// source rank. len(out) must equal the world size.
func Alltoall[T any](c *Comm, out []T) ([]T, error) {
	if len(out) != c.Size() {
		return nil, fmt.Errorf("comm: alltoall given %d values for %d ranks", len(out), c.Size())
	}
	tag := c.nextCollTag()
	for r := 0; r < c.Size(); r++ {
		if r != c.rank {
			c.Send(r, tag, out[r])
		}
	}
	in := make([]T, c.Size())
	in[c.rank] = out[c.rank]
	for r := 0; r < c.Size(); r++ {
		if r == c.rank {
			continue
		}
		res, err := c.Recv(r, tag)
		if err != nil {
			return nil, err
		}
		val, ok := res.(T)
		if !ok {
			return nil, fmt.Errorf("comm: alltoall got %T from rank %d", res, r)
		}
		in[r] = val
	}
	return in, nil
}

// Barrier blocks until every rank has entered it
func (c *Comm) Barrier() error {
	_, err := Allgather(c, struct{}{})
	return err
}

// AllreduceSum sums v over all ranks. The sum is taken in rank order so every
// rank sees a bitwise identical result.
func (c *Comm) AllreduceSum(v float64) (float64, error) {
	all, err := Allgather(c, v)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, x := range all {
		sum += x
	}
	return sum, nil
}

// AllreduceMax returns the largest v over all ranks
func (c *Comm) AllreduceMax(v float64) (float64, error) {
	all, err := Allgather(c, v)
	if err != nil {
		return 0, err
	}
	m := math.Inf(-1)
	for _, x := range all {
		m = math.Max(m, x)
	}
	return m, nil
}

// AllreduceSumInt sums v over all ranks
func (c *Comm) AllreduceSumInt(v int) (int, error) {
	all, err := Allgather(c, v)
	if err != nil {
		return 0, err
	}
	sum := 0
	for _, x := range all {
		sum += x
	}
	return sum, nil
}

// ExscanSumInt returns the sum of v over all lower ranks, and the total
func (c *Comm) ExscanSumInt(v int) (offset, total int, err error) {
	all, err := Allgather(c, v)
	if err != nil {
		return 0, 0, err
	}
	for r, x := range all {
		if r < c.rank {
			offset += x
		}
		total += x
	}
	return offset, total, nil
}
