// Package config holds the run configuration of the ddsolve driver. A run is
// described by a TOML file; every field has a default so a file only lists
// what it changes.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/notargets/DDKernel/partitions"
	"github.com/notargets/DDKernel/patch"
	"github.com/sirupsen/logrus"
)

const (
	RefineUniform  = "uniform"
	RefineAdaptive = "adaptive"

	SolverGMG   = "gmg"
	SolverSchur = "schur"

	ProblemSine   = "sine"
	ProblemCosine = "cosine"
)

// Log configures the logrus standard logger
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text or json
}

// Config describes one solve
type Config struct {
	Dim          int     `toml:"dim"`
	N            int     `toml:"n"`
	NumLevels    int     `toml:"num_levels"`
	Refinement   string  `toml:"refinement"`
	RefineRadius float64 `toml:"refine_radius"`

	Ranks       int    `toml:"ranks"`
	Partitioner string `toml:"partitioner"`
	NumGhost    int    `toml:"num_ghost"`

	Solver        string  `toml:"solver"`
	Tolerance     float64 `toml:"tolerance"`
	MaxIterations int     `toml:"max_iterations"`

	// Neumann lists the physical boundary sides with Neumann conditions.
	// Left empty, the problem picks: none for sine, all for cosine.
	Neumann []string `toml:"neumann"`
	Problem string   `toml:"problem"`

	Log Log `toml:"log"`
}

// Default returns the configuration used for every field a file omits
func Default() *Config {
	return &Config{
		Dim:           2,
		N:             16,
		NumLevels:     3,
		Refinement:    RefineUniform,
		RefineRadius:  0.25,
		Ranks:         2,
		Partitioner:   partitions.SpaceFillingCurve.String(),
		NumGhost:      1,
		Solver:        SolverGMG,
		Tolerance:     1e-10,
		MaxIterations: 200,
		Problem:       ProblemSine,
		Log:           Log{Level: "info", Format: "text"},
	}
}

// Load reads and validates the configuration file at path
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Decode reads a configuration from r on top of the defaults and validates
// it. Keys that match no field are an error.
func Decode(r io.Reader) (*Config, error) {
	c := Default()
	md, err := toml.NewDecoder(r).Decode(c)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err = c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FieldError reports an invalid configuration field
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config field %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func fieldError(field, format string, args ...any) error {
	return &FieldError{Field: field, Err: fmt.Errorf(format, args...)}
}

// Validate checks every field and returns all problems found, joined
func (c *Config) Validate() error {
	var errs []error
	if c.Dim != 2 && c.Dim != 3 {
		errs = append(errs, fieldError("dim", "must be 2 or 3, got %d", c.Dim))
	}
	if c.N < 2 || c.N%2 != 0 {
		errs = append(errs, fieldError("n", "must be even and at least 2, got %d", c.N))
	}
	if c.NumLevels < 1 {
		errs = append(errs, fieldError("num_levels", "must be at least 1, got %d", c.NumLevels))
	}
	switch c.Refinement {
	case RefineUniform:
	case RefineAdaptive:
		if c.RefineRadius <= 0 {
			errs = append(errs, fieldError("refine_radius", "must be positive, got %g", c.RefineRadius))
		}
	default:
		errs = append(errs, fieldError("refinement", "unknown refinement %q", c.Refinement))
	}
	if c.Ranks < 1 {
		errs = append(errs, fieldError("ranks", "must be at least 1, got %d", c.Ranks))
	}
	if _, err := partitions.ParseStrategy(c.Partitioner); err != nil {
		errs = append(errs, &FieldError{Field: "partitioner", Err: err})
	}
	if c.NumGhost < 1 {
		errs = append(errs, fieldError("num_ghost", "must be at least 1, got %d", c.NumGhost))
	}
	if c.Solver != SolverGMG && c.Solver != SolverSchur {
		errs = append(errs, fieldError("solver", "unknown solver %q", c.Solver))
	}
	if c.Tolerance <= 0 {
		errs = append(errs, fieldError("tolerance", "must be positive, got %g", c.Tolerance))
	}
	if c.MaxIterations < 1 {
		errs = append(errs, fieldError("max_iterations", "must be at least 1, got %d", c.MaxIterations))
	}
	if c.Problem != ProblemSine && c.Problem != ProblemCosine {
		errs = append(errs, fieldError("problem", "unknown problem %q", c.Problem))
	}
	if _, err := c.NeumannSides(); err != nil {
		errs = append(errs, err)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, &FieldError{Field: "log.level", Err: err})
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fieldError("log.format", "must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// NeumannSides returns the Neumann sides, applying the problem's default
// when none are listed
func (c *Config) NeumannSides() ([]patch.Side, error) {
	if len(c.Neumann) == 0 {
		if c.Problem == ProblemCosine {
			return patch.SidesFor(c.Dim), nil
		}
		return nil, nil
	}
	sides := make([]patch.Side, 0, len(c.Neumann))
	seen := make(map[patch.Side]bool)
	for _, name := range c.Neumann {
		s, err := patch.ParseSide(name)
		if err != nil {
			return nil, &FieldError{Field: "neumann", Err: err}
		}
		if s.Axis() >= c.Dim {
			return nil, fieldError("neumann", "side %v does not exist in %dD", s, c.Dim)
		}
		if seen[s] {
			return nil, fieldError("neumann", "side %v listed twice", s)
		}
		seen[s] = true
		sides = append(sides, s)
	}
	return sides, nil
}

// ConfigureLogger applies the log section to the logrus standard logger
func (c *Config) ConfigureLogger() error {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return &FieldError{Field: "log.level", Err: err}
	}
	logrus.SetLevel(level)
	if c.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
