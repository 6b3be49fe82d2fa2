// Package dataset synthesizes case records for ingestion.
//
// The shape of a batch is deterministic for a given count; its content is
// drawn from the supplied random source.
package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
)

var (
	// ErrNotEnoughCombinations is returned when more records are requested
	// than there are station pairs.
	ErrNotEnoughCombinations = errors.New("not enough station combinations")

	// ErrInvalidCount is returned for a negative record count.
	ErrInvalidCount = errors.New("record count must not be negative")

	// ErrEmptyTable is returned when a lookup table has no entries.
	ErrEmptyTable = errors.New("empty lookup table")
)

// StationPair is a (departure, arrival) pair where departure precedes arrival
// in the station list.
type StationPair struct {
	Departure string
	Arrival   string
}

// Combinations enumerates all unordered pairs of distinct stations in list
// order: the outer index ascends and the inner index ascends past it.
func Combinations(stations []string) []StationPair {
	n := len(stations)
	if n < 2 {
		return nil
	}
	pairs := make([]StationPair, 0, n*(n-1)/2)
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, StationPair{Departure: stations[i], Arrival: stations[j]})
		}
	}
	return pairs
}

// ProfileTokens builds one token per alphabet entry. Each token has the form
// <1-3><letter><1-3><letter> with letters drawn from the alphabet.
func ProfileTokens(rng *rand.Rand, alphabet []string) []string {
	if len(alphabet) == 0 {
		return nil
	}
	tokens := make([]string, len(alphabet))
	for i := range alphabet {
		tokens[i] = profileToken(rng, alphabet)
	}
	return tokens
}

func profileToken(rng *rand.Rand, alphabet []string) string {
	d1 := rng.IntN(3) + 1
	l1 := alphabet[rng.IntN(len(alphabet))]
	d2 := rng.IntN(3) + 1
	l2 := alphabet[rng.IntN(len(alphabet))]
	return strconv.Itoa(d1) + l1 + strconv.Itoa(d2) + l2
}

// Config holds the lookup tables and vector shape of a Generator.
type Config struct {
	Stations []string
	Actions  []string
	Profiles []string
	Dim      int
	// IDOffset is added to the record index to form the primary key.
	IDOffset int64
}

// Generator produces columnar batches of synthetic case records.
type Generator struct {
	cfg    Config
	rng    *rand.Rand
	logger *slog.Logger
}

// NewGenerator returns a Generator drawing from rng. A nil rng uses an
// unseeded source; a nil logger uses slog.Default().
func NewGenerator(cfg Config, rng *rand.Rand, logger *slog.Logger) (*Generator, error) {
	if len(cfg.Actions) == 0 {
		return nil, fmt.Errorf("%w: actions", ErrEmptyTable)
	}
	if len(cfg.Profiles) == 0 {
		return nil, fmt.Errorf("%w: profiles", ErrEmptyTable)
	}
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", cfg.Dim)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{cfg: cfg, rng: rng, logger: logger}, nil
}

// Available returns the number of station pairs, the upper bound for count.
func (g *Generator) Available() int {
	n := len(g.cfg.Stations)
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}

// Generate builds a batch of count records. Record k takes the k-th station
// pair; pairs are never reused or wrapped, so count may not exceed Available.
func (g *Generator) Generate(count int) (*Batch, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	if avail := g.Available(); count > avail {
		return nil, fmt.Errorf("%w: requested %d records, %d pairs available", ErrNotEnoughCombinations, count, avail)
	}

	pairs := Combinations(g.cfg.Stations)
	profiles := ProfileTokens(g.rng, g.cfg.Profiles)

	b := newBatch(count, g.cfg.Dim)
	for k := 0; k < count; k++ {
		r := Record{
			CaseID:    g.cfg.IDOffset + int64(k),
			Action:    g.cfg.Actions[g.rng.IntN(len(g.cfg.Actions))],
			Departure: pairs[k].Departure,
			Arrival:   pairs[k].Arrival,
			Profile:   profiles[g.rng.IntN(len(profiles))],
			Vector:    g.vector(),
		}
		g.logger.Debug("generated record",
			"case_id", r.CaseID,
			"action", r.Action,
			"departure", r.Departure,
			"arrival", r.Arrival,
			"profile", r.Profile)
		b.Append(r)
	}
	return b, nil
}

func (g *Generator) vector() []float32 {
	v := make([]float32, g.cfg.Dim)
	for i := range v {
		v[i] = g.rng.Float32()
	}
	return v
}
