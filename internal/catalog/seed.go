// Package catalog loads the reference train list from a YAML seed file.
package catalog

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var clockTime = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

type seedFile struct {
	Trains []seedTrain `yaml:"trains"`
}

type seedTrain struct {
	Number      string   `yaml:"number"`
	Name        string   `yaml:"name"`
	Origin      string   `yaml:"origin"`
	Destination string   `yaml:"destination"`
	Departure   string   `yaml:"departure"`
	Arrival     string   `yaml:"arrival"`
	Duration    string   `yaml:"duration"`
	BasePrice   float64  `yaml:"base_price"`
	Classes     []string `yaml:"classes"`
}

// Upserter stores one train, keyed by its number
type Upserter interface {
	Upsert(ctx context.Context, train *entity.Train) error
}

// Parse decodes and checks a seed document
func Parse(data []byte) ([]*entity.Train, error) {
	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode train seed: %w", err)
	}

	seen := make(map[string]bool, len(doc.Trains))
	trains := make([]*entity.Train, 0, len(doc.Trains))
	for i, st := range doc.Trains {
		train, err := st.toEntity()
		if err != nil {
			return nil, fmt.Errorf("train #%d: %w", i+1, err)
		}
		if seen[train.Number] {
			return nil, fmt.Errorf("train #%d: duplicate number %s", i+1, train.Number)
		}
		seen[train.Number] = true
		trains = append(trains, train)
	}
	return trains, nil
}

func (st seedTrain) toEntity() (*entity.Train, error) {
	switch {
	case st.Number == "":
		return nil, fmt.Errorf("number is required")
	case st.Name == "":
		return nil, fmt.Errorf("name is required")
	case st.Origin == "" || st.Destination == "":
		return nil, fmt.Errorf("origin and destination are required")
	case !clockTime.MatchString(st.Departure) || !clockTime.MatchString(st.Arrival):
		return nil, fmt.Errorf("departure and arrival must be HH:MM")
	case st.BasePrice <= 0:
		return nil, fmt.Errorf("base_price must be positive")
	case len(st.Classes) == 0:
		return nil, fmt.Errorf("at least one class is required")
	}

	classes := make(entity.FareClasses, 0, len(st.Classes))
	for _, code := range st.Classes {
		info, ok := entity.LookupClass(code)
		if !ok {
			return nil, fmt.Errorf("unknown class %q", code)
		}
		classes = append(classes, info.Code)
	}

	return &entity.Train{
		Number:        st.Number,
		Name:          st.Name,
		Origin:        st.Origin,
		Destination:   st.Destination,
		DepartureTime: st.Departure,
		ArrivalTime:   st.Arrival,
		Duration:      st.Duration,
		BasePrice:     st.BasePrice,
		Classes:       classes,
	}, nil
}

// Seed upserts every train from the file. Running it twice leaves one row per train.
func Seed(ctx context.Context, path string, repo Upserter) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read train seed %s: %w", path, err)
	}

	trains, err := Parse(data)
	if err != nil {
		return 0, err
	}

	for _, train := range trains {
		if err := repo.Upsert(ctx, train); err != nil {
			return 0, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"file":   path,
		"trains": len(trains),
	}).Info("Train catalog seeded")
	return len(trains), nil
}
