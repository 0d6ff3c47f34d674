package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/notargets/DDKernel/comm"
	"github.com/notargets/DDKernel/patch"
)

// TimedDomain is the view of a patch set the Timer records alongside domain
// timings
type TimedDomain interface {
	Patches() []*patch.PatchInfo
}

const noDomain = -1

type timingKey struct {
	domainID int
	name     string
}

type timing struct {
	parent   *timing
	name     string
	domainID int

	calls    int
	sum      float64
	min, max float64
	started  time.Time

	infos    []*InfoJSON
	children []*timing
	byKey    map[timingKey]*timing
}

// InfoJSON accumulates a value attached to a timing with AddInfo
type InfoJSON struct {
	Name     string  `json:"name"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Sum      float64 `json:"sum"`
	NumCalls int     `json:"num_calls"`
}

func newTiming(parent *timing, domainID int, name string) *timing {
	return &timing{
		parent:   parent,
		name:     name,
		domainID: domainID,
		min:      math.Inf(1),
		max:      math.Inf(-1),
		byKey:    make(map[timingKey]*timing),
	}
}

func (t *timing) child(domainID int, name string) *timing {
	key := timingKey{domainID, name}
	if c, ok := t.byKey[key]; ok {
		return c
	}
	c := newTiming(t, domainID, name)
	t.byKey[key] = c
	t.children = append(t.children, c)
	return c
}

// label is the name shown for this timing inside its parent's path. The
// domain prefix appears only where the domain changes.
func (t *timing) label() string {
	if t.domainID != noDomain && (t.parent == nil || t.parent.domainID != t.domainID) {
		return fmt.Sprintf("(Domain %d) %s", t.domainID, t.name)
	}
	return t.name
}

// Timer records nested wall-clock timings. Timings are keyed by their path,
// so repeated Start/Stop pairs with the same name accumulate calls.
type Timer struct {
	root    *timing
	current *timing
	domains map[int]TimedDomain
	now     func() time.Time
}

// NewTimer returns an empty timer
func NewTimer() *Timer {
	root := newTiming(nil, noDomain, "")
	return &Timer{
		root:    root,
		current: root,
		domains: make(map[int]TimedDomain),
		now:     time.Now,
	}
}

// AddDomain associates id with a domain for StartDomainTiming
func (t *Timer) AddDomain(id int, d TimedDomain) error {
	if _, ok := t.domains[id]; ok {
		return NewProtocolError("AddDomain", "domain %d already added", id)
	}
	t.domains[id] = d
	return nil
}

// Start begins the timing name nested in the running timing
func (t *Timer) Start(name string) {
	t.start(noDomain, name)
}

// Stop ends the timing name, which must be the innermost running timing
func (t *Timer) Stop(name string) error {
	return t.stop("Stop", noDomain, name)
}

// StartDomainTiming begins a timing associated with domain id
func (t *Timer) StartDomainTiming(id int, name string) error {
	if _, ok := t.domains[id]; !ok {
		return NewProtocolError("StartDomainTiming", "domain %d was never added", id)
	}
	t.start(id, name)
	return nil
}

// StopDomainTiming ends a timing started with StartDomainTiming
func (t *Timer) StopDomainTiming(id int, name string) error {
	return t.stop("StopDomainTiming", id, name)
}

func (t *Timer) start(domainID int, name string) {
	c := t.current.child(domainID, name)
	c.started = t.now()
	t.current = c
}

func (t *Timer) stop(op string, domainID int, name string) error {
	c := t.current
	if c == t.root {
		return NewProtocolError(op, "no timing is running, cannot stop %q", name)
	}
	if c.name != name || c.domainID != domainID {
		return NewProtocolError(op, "cannot stop %q while %q is running", name, c.name)
	}
	elapsed := t.now().Sub(c.started).Seconds()
	c.calls++
	c.sum += elapsed
	c.min = math.Min(c.min, elapsed)
	c.max = math.Max(c.max, elapsed)
	t.current = c.parent
	return nil
}

// AddInfo attaches a named value to the running timing
func (t *Timer) AddInfo(name string, v float64) error {
	c := t.current
	if c == t.root {
		return NewProtocolError("AddInfo", "no timing is running for info %q", name)
	}
	for _, info := range c.infos {
		if info.Name == name {
			info.NumCalls++
			info.Sum += v
			info.Min = math.Min(info.Min, v)
			info.Max = math.Max(info.Max, v)
			return nil
		}
	}
	c.infos = append(c.infos, &InfoJSON{Name: name, Min: v, Max: v, Sum: v, NumCalls: 1})
	return nil
}

// Report formats every finished timing on this rank, depth first in the
// order the timings were first started
func (t *Timer) Report() (string, error) {
	if t.current != t.root {
		return "", NewProtocolError("Report", "timing %q is still running", t.current.name)
	}
	var b strings.Builder
	b.WriteString("\nTIMING RESULTS\n==============\n\n")
	var walk func(tm *timing, prefix string)
	walk = func(tm *timing, prefix string) {
		for _, c := range tm.children {
			title := prefix + c.label()
			b.WriteString(title + "\n")
			b.WriteString(strings.Repeat("-", len(title)) + "\n")
			if c.calls == 1 {
				fmt.Fprintf(&b, "  time (sec): %f\n", c.sum)
			} else {
				fmt.Fprintf(&b, "  calls: %d\n", c.calls)
				fmt.Fprintf(&b, "  average (sec): %f\n", c.sum/float64(c.calls))
				fmt.Fprintf(&b, "  min (sec): %f\n", c.min)
				fmt.Fprintf(&b, "  max (sec): %f\n", c.max)
			}
			b.WriteString("\n")
			walk(c, title+" -> ")
		}
	}
	walk(t.root, "")
	return b.String(), nil
}

// String returns the report, or the error text when a timing is unfinished
func (t *Timer) String() string {
	s, err := t.Report()
	if err != nil {
		return err.Error()
	}
	return s
}

// TimingJSON is one timing in the gathered report
type TimingJSON struct {
	Rank     int          `json:"rank"`
	Name     string       `json:"name"`
	DomainID *int         `json:"domain_id,omitempty"`
	Min      float64      `json:"min"`
	Max      float64      `json:"max"`
	Sum      float64      `json:"sum"`
	NumCalls int          `json:"num_calls"`
	Infos    []*InfoJSON  `json:"infos,omitempty"`
	Timings  []TimingJSON `json:"timings,omitempty"`
}

// PatchJSON describes one patch of a timed domain
type PatchJSON struct {
	ID          int       `json:"id"`
	Rank        int       `json:"rank"`
	RefineLevel int       `json:"refine_level"`
	Ns          []int     `json:"ns"`
	Starts      []float64 `json:"starts"`
	Spacings    []float64 `json:"spacings"`
}

// TimerJSON is the document produced on rank 0 by JSON
type TimerJSON struct {
	CommSize int          `json:"comm_size"`
	Timings  []TimingJSON `json:"timings"`
	Domains  [][2]any     `json:"domains,omitempty"`
}

func (t *Timer) timingsJSON(rank int, tm *timing) []TimingJSON {
	out := make([]TimingJSON, 0, len(tm.children))
	for _, c := range tm.children {
		tj := TimingJSON{
			Rank:     rank,
			Name:     c.name,
			Min:      c.min,
			Max:      c.max,
			Sum:      c.sum,
			NumCalls: c.calls,
			Infos:    c.infos,
			Timings:  t.timingsJSON(rank, c),
		}
		if c.domainID != noDomain {
			id := c.domainID
			tj.DomainID = &id
		}
		out = append(out, tj)
	}
	return out
}

// JSON gathers every rank's timings and the patches of every added domain
// onto rank 0. Every rank must call it; ranks other than 0 receive nil, and
// so does rank 0 when nothing was timed anywhere.
func (t *Timer) JSON(c *comm.Comm) ([]byte, error) {
	if t.current != t.root {
		return nil, NewProtocolError("JSON", "timing %q is still running", t.current.name)
	}
	all, err := comm.Allgather(c, t.timingsJSON(c.Rank(), t.root))
	if err != nil {
		return nil, fmt.Errorf("gather timings: %w", err)
	}

	ids := make([]int, 0, len(t.domains))
	for id := range t.domains {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	domains := make([][2]any, 0, len(ids))
	for _, id := range ids {
		var local []PatchJSON
		for _, p := range t.domains[id].Patches() {
			local = append(local, PatchJSON{
				ID: p.ID, Rank: p.Rank, RefineLevel: p.RefineLevel,
				Ns: p.Ns, Starts: p.Starts, Spacings: p.Spacings,
			})
		}
		gathered, err := comm.Allgather(c, local)
		if err != nil {
			return nil, fmt.Errorf("gather domain %d: %w", id, err)
		}
		var patches []PatchJSON
		for _, g := range gathered {
			patches = append(patches, g...)
		}
		domains = append(domains, [2]any{id, patches})
	}

	if c.Rank() != 0 {
		return nil, nil
	}
	doc := TimerJSON{CommSize: c.Size()}
	for _, timings := range all {
		doc.Timings = append(doc.Timings, timings...)
	}
	if len(doc.Timings) == 0 && len(domains) == 0 {
		return nil, nil
	}
	doc.Domains = domains
	return json.Marshal(doc)
}
