package entity

import "time"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// SeniorCitizenAge is the age from which a passenger is flagged as senior
const SeniorCitizenAge = 60

// PassengerDetails is the form a user fills in for one traveller
type PassengerDetails struct {
	Name           string    `json:"name" binding:"required,min=2,max=100"`
	Age            int       `json:"age" binding:"required,min=1,max=120"`
	Gender         Gender    `json:"gender" binding:"required,oneof=male female other"`
	PreferredBerth BerthType `json:"preferred_berth,omitempty" binding:"omitempty,oneof=lower middle upper side_lower side_upper window aisle_seat middle_seat"`
}

type Passenger struct {
	PassengerDetails
	Senior     bool   `json:"senior"`
	SeatID     string `json:"seat_id,omitempty"`
	SeatNumber int    `json:"seat_number,omitempty"`
}

// NewPassenger derives the seniority flag from the details
func NewPassenger(d PassengerDetails) Passenger {
	return Passenger{
		PassengerDetails: d,
		Senior:           d.Age >= SeniorCitizenAge,
	}
}

// SavedProfile is a passenger template stored for a user
type SavedProfile struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Age       int       `json:"age" db:"age"`
	Gender    Gender    `json:"gender" db:"gender"`
	Berth     BerthType `json:"preferred_berth" db:"preferred_berth"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (p *SavedProfile) Details() PassengerDetails {
	return PassengerDetails{
		Name:           p.Name,
		Age:            p.Age,
		Gender:         p.Gender,
		PreferredBerth: p.Berth,
	}
}
