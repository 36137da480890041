package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type TravelDate struct {
	time.Time
}

const travelDateLayout = "2006-01-02"

func ParseTravelDate(s string) (TravelDate, error) {
	t, err := time.ParseInLocation(travelDateLayout, s, time.UTC)
	if err != nil {
		return TravelDate{}, fmt.Errorf("invalid travel date %q: expected YYYY-MM-DD", s)
	}
	return TravelDate{Time: t}, nil
}

func (d TravelDate) String() string {
	return d.Format(travelDateLayout)
}

func (d *TravelDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTravelDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d TravelDate) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(travelDateLayout) + `"`), nil
}

func (d TravelDate) Value() (driver.Value, error) {
	return d.Time, nil
}

func (d *TravelDate) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case time.Time:
		d.Time = time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("cannot scan type %T into TravelDate", value)
	}
	return nil
}

func (d *TravelDate) scanString(s string) error {
	if len(s) > len(travelDateLayout) {
		s = s[:len(travelDateLayout)]
	}
	parsed, err := ParseTravelDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// FareClasses хранится в Postgres как TEXT[]
type FareClasses []FareClass

func (c FareClasses) Value() (driver.Value, error) {
	arr := make(pq.StringArray, len(c))
	for i, class := range c {
		arr[i] = string(class)
	}
	return arr.Value()
}

func (c *FareClasses) Scan(value interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(value); err != nil {
		return fmt.Errorf("cannot scan fare classes: %w", err)
	}
	out := make(FareClasses, len(arr))
	for i, s := range arr {
		out[i] = FareClass(s)
	}
	*c = out
	return nil
}

// Passengers хранится как JSONB документ внутри бронирования
type Passengers []Passenger

func (p Passengers) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	// lib/pq sends []byte as bytea, jsonb needs text
	return string(data), nil
}

func (p *Passengers) Scan(value interface{}) error {
	if value == nil {
		*p = Passengers{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan type %T into Passengers", value)
	}
	return json.Unmarshal(data, p)
}
