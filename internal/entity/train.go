package entity

import (
	"strings"
	"time"
)

type FareClass string

const (
	ClassFirstAC   FareClass = "1A"
	ClassSecondAC  FareClass = "2A"
	ClassThirdAC   FareClass = "3A"
	ClassSleeper   FareClass = "SL"
	ClassChairCar  FareClass = "CC"
	ClassSecondSit FareClass = "2S"
)

// ClassInfo описывает класс обслуживания: отображаемое имя и множитель к базовой цене
type ClassInfo struct {
	Code       FareClass `json:"code"`
	Name       string    `json:"name"`
	Multiplier float64   `json:"multiplier"`
}

var fareClasses = map[FareClass]ClassInfo{
	ClassFirstAC:   {Code: ClassFirstAC, Name: "First AC", Multiplier: 3.5},
	ClassSecondAC:  {Code: ClassSecondAC, Name: "AC 2 Tier", Multiplier: 2.2},
	ClassThirdAC:   {Code: ClassThirdAC, Name: "AC 3 Tier", Multiplier: 1.6},
	ClassSleeper:   {Code: ClassSleeper, Name: "Sleeper", Multiplier: 1.0},
	ClassChairCar:  {Code: ClassChairCar, Name: "AC Chair Car", Multiplier: 1.3},
	ClassSecondSit: {Code: ClassSecondSit, Name: "Second Sitting", Multiplier: 0.6},
}

var classOrder = []FareClass{ClassFirstAC, ClassSecondAC, ClassThirdAC, ClassSleeper, ClassChairCar, ClassSecondSit}

// AllClasses returns every fare class from the most to the least expensive
func AllClasses() []ClassInfo {
	out := make([]ClassInfo, 0, len(classOrder))
	for _, c := range classOrder {
		out = append(out, fareClasses[c])
	}
	return out
}

// LookupClass returns metadata for a fare class code. Codes are matched case-insensitively.
func LookupClass(code string) (ClassInfo, bool) {
	info, ok := fareClasses[FareClass(strings.ToUpper(strings.TrimSpace(code)))]
	return info, ok
}

type Train struct {
	ID            int64       `json:"id" db:"id"`
	Number        string      `json:"number" db:"number"`
	Name          string      `json:"name" db:"name"`
	Origin        string      `json:"origin" db:"origin"`
	Destination   string      `json:"destination" db:"destination"`
	DepartureTime string      `json:"departure_time" db:"departure_time"` // HH:MM
	ArrivalTime   string      `json:"arrival_time" db:"arrival_time"`     // HH:MM
	Duration      string      `json:"duration" db:"duration"`
	BasePrice     float64     `json:"base_price" db:"base_price"`
	Classes       FareClasses `json:"classes" db:"classes"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// Supports reports whether the train offers the given fare class
func (t *Train) Supports(class FareClass) bool {
	for _, c := range t.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// PriceFor returns the per-seat base price in the given class
func (t *Train) PriceFor(class FareClass) float64 {
	info, ok := fareClasses[class]
	if !ok {
		return t.BasePrice
	}
	return t.BasePrice * info.Multiplier
}

// Route returns "Origin → Destination"
func (t *Train) Route() string {
	return t.Origin + " → " + t.Destination
}

type TrainSearch struct {
	Origin      string    `form:"from"`
	Destination string    `form:"to"`
	Class       FareClass `form:"class"`
	Date        string    `form:"date"`
}
