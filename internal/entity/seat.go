package entity

type BerthType string

const (
	BerthLower      BerthType = "lower"
	BerthMiddle     BerthType = "middle"
	BerthUpper      BerthType = "upper"
	BerthSideLower  BerthType = "side_lower"
	BerthSideUpper  BerthType = "side_upper"
	BerthWindow     BerthType = "window"
	BerthAisleSeat  BerthType = "aisle_seat"
	BerthMiddleSeat BerthType = "middle_seat"
	BerthAisle      BerthType = "aisle"
	BerthDoor       BerthType = "door"
	BerthEmpty      BerthType = "empty"
)

// Bookable reports whether a cell of this type carries a seat number
func (b BerthType) Bookable() bool {
	switch b {
	case BerthAisle, BerthDoor, BerthEmpty:
		return false
	}
	return true
}

type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatBooked    SeatStatus = "booked"
	SeatSelected  SeatStatus = "selected"
)

type Seat struct {
	ID     string     `json:"id"`
	Number int        `json:"number,omitempty"`
	Row    int        `json:"row"`
	Column int        `json:"column"`
	Berth  BerthType  `json:"berth"`
	Status SeatStatus `json:"status,omitempty"`
}

// SeatLayout is the coach grid for one train, class and travel date
type SeatLayout struct {
	TrainID int64      `json:"train_id"`
	Class   FareClass  `json:"class"`
	Date    TravelDate `json:"date"`
	Rows    [][]Seat   `json:"rows"`
	Message string     `json:"message,omitempty"`
}

// Empty reports whether nothing was generated (unsupported class)
func (l *SeatLayout) Empty() bool {
	return l == nil || len(l.Rows) == 0
}

// Find returns the seat with the given id
func (l *SeatLayout) Find(seatID string) (*Seat, bool) {
	if l == nil {
		return nil, false
	}
	for r := range l.Rows {
		for c := range l.Rows[r] {
			if l.Rows[r][c].ID == seatID {
				return &l.Rows[r][c], true
			}
		}
	}
	return nil, false
}

// Seats returns every bookable seat in generation order
func (l *SeatLayout) Seats() []Seat {
	var out []Seat
	if l == nil {
		return out
	}
	for _, row := range l.Rows {
		for _, seat := range row {
			if seat.Berth.Bookable() {
				out = append(out, seat)
			}
		}
	}
	return out
}
