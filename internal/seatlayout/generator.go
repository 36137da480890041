// Package seatlayout builds mock coach grids for a train class and travel date.
// Availability is simulated: every bookable cell is independently marked
// available with a fixed probability.
package seatlayout

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/ds124wfegd/railbook/internal/entity"
)

// DefaultAvailability is the share of bookable cells generated as available
const DefaultAvailability = 0.7

// NoLayoutMessage is shown when the train does not offer the requested class
const NoLayoutMessage = "Seat layout is not available for the selected class on this train"

type Seating string

const (
	SeatingBerth Seating = "berth" // open bays: lower/middle/upper + side berths
	SeatingCabin Seating = "cabin" // closed cabins, 3-column grid
	SeatingChair Seating = "chair" // rows of chairs split by an aisle
)

// ClassConfig fixes the grid shape of one fare class
type ClassConfig struct {
	Rows      int
	Bays      int // berth groups per row, or chairs per side for chair cars
	HasMiddle bool
	HasSide   bool
	Seating   Seating
	Prefix    string
}

// DefaultConfigs are the coach shapes per fare class
var DefaultConfigs = map[entity.FareClass]ClassConfig{
	entity.ClassFirstAC:   {Rows: 10, Bays: 1, Seating: SeatingCabin, Prefix: "H1"},
	entity.ClassSecondAC:  {Rows: 18, Bays: 1, HasSide: true, Seating: SeatingBerth, Prefix: "A1"},
	entity.ClassThirdAC:   {Rows: 18, Bays: 1, HasMiddle: true, HasSide: true, Seating: SeatingBerth, Prefix: "B1"},
	entity.ClassSleeper:   {Rows: 18, Bays: 1, HasMiddle: true, HasSide: true, Seating: SeatingBerth, Prefix: "S1"},
	entity.ClassChairCar:  {Rows: 15, Bays: 2, Seating: SeatingChair, Prefix: "C1"},
	entity.ClassSecondSit: {Rows: 20, Bays: 3, HasMiddle: true, Seating: SeatingChair, Prefix: "D1"},
}

type Generator struct {
	configs      map[entity.FareClass]ClassConfig
	availability float64
}

type Option func(*Generator)

// WithAvailability overrides the available/booked ratio
func WithAvailability(ratio float64) Option {
	return func(g *Generator) {
		if ratio >= 0 && ratio <= 1 {
			g.availability = ratio
		}
	}
}

// WithConfig replaces the shape of one class
func WithConfig(class entity.FareClass, cfg ClassConfig) Option {
	return func(g *Generator) {
		g.configs[class] = cfg
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		configs:      make(map[entity.FareClass]ClassConfig, len(DefaultConfigs)),
		availability: DefaultAvailability,
	}
	for class, cfg := range DefaultConfigs {
		g.configs[class] = cfg
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ConfigFor returns the grid shape for a class
func (g *Generator) ConfigFor(class entity.FareClass) (ClassConfig, bool) {
	cfg, ok := g.configs[class]
	return cfg, ok
}

// Generate returns the layout of the train in the given class on the given date.
// The same (train, class, date) always yields the same grid; any change yields a
// fresh one, so selections made on a previous layout do not carry over.
// Unsupported classes produce an empty layout carrying NoLayoutMessage.
func (g *Generator) Generate(train *entity.Train, class entity.FareClass, date entity.TravelDate) *entity.SeatLayout {
	layout := &entity.SeatLayout{
		TrainID: train.ID,
		Class:   class,
		Date:    date,
		Rows:    [][]entity.Seat{},
	}

	cfg, ok := g.configs[class]
	if !ok || !train.Supports(class) {
		layout.Message = NoLayoutMessage
		return layout
	}

	rnd := rand.New(rand.NewSource(Seed(train.Number, class, date)))
	layout.Rows = g.Build(cfg, rnd)
	return layout
}

// Seed derives a stable random seed from the layout key
func Seed(trainNumber string, class entity.FareClass, date entity.TravelDate) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s", trainNumber, class, date.String())
	return int64(h.Sum64() >> 1)
}

// Build lays out cfg.Rows rows; bookable cells are numbered from 1 in
// generation order and marked available with the generator's probability.
func (g *Generator) Build(cfg ClassConfig, rnd *rand.Rand) [][]entity.Seat {
	b := &builder{cfg: cfg, rnd: rnd, availability: g.availability}

	rows := make([][]entity.Seat, 0, cfg.Rows)
	for r := 0; r < cfg.Rows; r++ {
		rows = append(rows, b.row(r))
	}
	return rows
}

type builder struct {
	cfg          ClassConfig
	rnd          *rand.Rand
	availability float64
	next         int
}

func (b *builder) row(r int) []entity.Seat {
	var kinds []entity.BerthType

	switch b.cfg.Seating {
	case SeatingCabin:
		// lower, upper, then the corridor: a door every second cabin
		corridor := entity.BerthEmpty
		if r%2 == 0 {
			corridor = entity.BerthDoor
		}
		kinds = []entity.BerthType{entity.BerthLower, entity.BerthUpper, corridor}

	case SeatingChair:
		side := chairSide(b.cfg.Bays, b.cfg.HasMiddle)
		kinds = append(kinds, side...)
		kinds = append(kinds, entity.BerthAisle)
		for i := len(side) - 1; i >= 0; i-- {
			kinds = append(kinds, side[i])
		}

	default:
		bays := b.cfg.Bays
		if bays < 1 {
			bays = 1
		}
		for i := 0; i < bays; i++ {
			kinds = append(kinds, entity.BerthLower)
			if b.cfg.HasMiddle {
				kinds = append(kinds, entity.BerthMiddle)
			}
			kinds = append(kinds, entity.BerthUpper)
		}
		if b.cfg.HasSide {
			kinds = append(kinds, entity.BerthAisle)
			if r%2 == 0 {
				kinds = append(kinds, entity.BerthSideLower)
			} else {
				kinds = append(kinds, entity.BerthSideUpper)
			}
		}
	}

	row := make([]entity.Seat, 0, len(kinds))
	for c, kind := range kinds {
		row = append(row, b.cell(r, c, kind))
	}
	return row
}

func (b *builder) cell(r, c int, kind entity.BerthType) entity.Seat {
	seat := entity.Seat{Row: r, Column: c, Berth: kind}
	if !kind.Bookable() {
		seat.ID = fmt.Sprintf("%s-R%dC%d", b.cfg.Prefix, r, c)
		return seat
	}

	b.next++
	seat.Number = b.next
	seat.ID = fmt.Sprintf("%s-%d", b.cfg.Prefix, b.next)
	seat.Status = entity.SeatBooked
	if b.rnd.Float64() < b.availability {
		seat.Status = entity.SeatAvailable
	}
	return seat
}

// chairSide lists one side of a chair row from the window inwards
func chairSide(perSide int, hasMiddle bool) []entity.BerthType {
	if perSide < 1 {
		perSide = 1
	}
	side := []entity.BerthType{entity.BerthWindow}
	for i := 1; i < perSide-1; i++ {
		if hasMiddle {
			side = append(side, entity.BerthMiddleSeat)
		} else {
			side = append(side, entity.BerthAisleSeat)
		}
	}
	if perSide > 1 {
		side = append(side, entity.BerthAisleSeat)
	}
	return side
}
