package features

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/saaga0h/parking-edge/pkg/slotid"
	"github.com/saaga0h/parking-edge/pkg/timefmt"
)

// Source supplies feature samples to the gating pipeline
type Source interface {
	Load(ctx context.Context) ([]Sample, error)
}

// SliceSource serves a fixed list of samples
type SliceSource []Sample

// Load returns a copy of the samples
func (s SliceSource) Load(ctx context.Context) ([]Sample, error) {
	return append([]Sample(nil), s...), nil
}

// CSVSource reads samples from a feature CSV with a header row.
// Required columns: timestamp plus every schema feature. An optional slot
// column assigns rows to slots; rows without it use DefaultSlot.
type CSVSource struct {
	Path            string
	Schema          *Schema
	DistanceFeature string
	DefaultSlot     string
	Logger          *slog.Logger
}

// NewCSVSource creates a CSV source using the given schema
func NewCSVSource(path string, schema *Schema, distanceFeature, defaultSlot string, logger *slog.Logger) *CSVSource {
	return &CSVSource{
		Path:            path,
		Schema:          schema,
		DistanceFeature: distanceFeature,
		DefaultSlot:     defaultSlot,
		Logger:          logger,
	}
}

// Load opens the file and parses all rows, sorted by timestamp
func (c *CSVSource) Load(ctx context.Context) ([]Sample, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open features file: %w", err)
	}
	defer f.Close()

	samples, err := c.Read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.Path, err)
	}
	return samples, nil
}

// Read parses samples from r
func (c *CSVSource) Read(ctx context.Context, r io.Reader) ([]Sample, error) {
	if err := c.Schema.Require(c.DistanceFeature); err != nil {
		return nil, fmt.Errorf("distance feature not in schema: %w", err)
	}

	defaultSlot, err := slotid.Normalize(c.DefaultSlot)
	if err != nil {
		return nil, fmt.Errorf("default slot: %w", err)
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	tsCol, ok := columns["timestamp"]
	if !ok {
		return nil, fmt.Errorf("%w: timestamp", ErrMissingFeature)
	}
	slotCol, hasSlot := columns["slot"]

	featureCols := make([]int, c.Schema.Len())
	for i, name := range c.Schema.names {
		col, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingFeature, name)
		}
		featureCols[i] = col
	}
	distanceIdx, _ := c.Schema.Index(c.DistanceFeature)

	var samples []Sample
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := timefmt.Parse(record[tsCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		values := make([]float64, len(featureCols))
		for i, col := range featureCols {
			values[i], err = parseFeature(record[col])
			if err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, c.Schema.names[i], err)
			}
		}

		slot := defaultSlot
		if hasSlot {
			if s := strings.TrimSpace(record[slotCol]); s != "" {
				if slot, err = slotid.Normalize(s); err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
			}
		}

		vec, _ := NewVector(c.Schema, values)
		samples = append(samples, Sample{
			Slot:        slot,
			Timestamp:   ts,
			Vector:      vec,
			RawDistance: values[distanceIdx],
		})
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	if c.Logger != nil {
		c.Logger.Info("Loaded feature samples", "path", c.Path, "count", len(samples))
	}
	return samples, nil
}

// parseFeature parses a numeric cell; empty and "nan" cells become NaN
func parseFeature(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

// GroupBySlot splits samples per slot, keeping each slot's input order
func GroupBySlot(samples []Sample) map[string][]Sample {
	groups := make(map[string][]Sample)
	for _, s := range samples {
		groups[s.Slot] = append(groups[s.Slot], s)
	}
	return groups
}
