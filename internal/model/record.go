// Package model defines the core domain models used throughout the application.
package model

import "time"

// RecordMode distinguishes the two mutually exclusive granularities a business
// date's revenue can be recorded in: many per-ride entries, or one daily
// aggregate entry. It is a first-class field, never inferred from free text.
type RecordMode string

// Record mode constants.
const (
	ModeDetailed      RecordMode = "DETAILED"
	ModeSimpleSummary RecordMode = "SIMPLE_SUMMARY"
)

// PaymentMethod indicates how a fare was settled.
type PaymentMethod string

// Payment method constants.
const (
	PaymentCash    PaymentMethod = "CASH"
	PaymentCard    PaymentMethod = "CARD"
	PaymentEMoney  PaymentMethod = "E_MONEY"
	PaymentQR      PaymentMethod = "QR"
	PaymentTicket  PaymentMethod = "TICKET"
	PaymentUnknown PaymentMethod = "UNKNOWN"
)

// RideType indicates how the ride was obtained.
type RideType string

// Ride type constants.
const (
	RideHail     RideType = "HAIL"
	RideApp      RideType = "APP"
	RideDispatch RideType = "DISPATCH"
	RideStand    RideType = "STAND"
	RideReserved RideType = "RESERVED"
	RideOther    RideType = "OTHER"
)

// Coordinates is an optional pickup/dropoff location fix.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Record represents a single revenue record. A Detailed record is one ride; a
// SimpleSummary record is a single aggregate entry covering its whole business
// date. All monetary fields are integers in the smallest currency unit.
//
// Identity is the ID; edits replace the record with the same ID.
type Record struct {
	Timestamp        time.Time
	ID               string
	Mode             RecordMode
	PaymentMethod    PaymentMethod
	RideType         RideType
	Amount           int
	Toll             int
	ReturnToll       int
	NonCashAmount    int
	PickupLocation   string
	DropoffLocation  string
	PickupCoords     *Coordinates
	DropoffCoords    *Coordinates
	PassengersMale   int
	PassengersFemale int
	Remarks          string
	IsBadCustomer    bool

	// SimpleSummary-only fields. Zero for Detailed records.
	RideCount   int
	WorkMinutes int
	StartClock  string // "HH:MM" local clock time the day started
	EndClock    string // "HH:MM" local clock time the day ended
	Note        string
}

// Sales returns the record's contribution to a day's total sales.
func (r *Record) Sales() int {
	return r.Amount
}

// Rides returns the number of rides the record stands for: one per Detailed
// record, the recorded ride count for a SimpleSummary.
func (r *Record) Rides() int {
	if r.Mode == ModeSimpleSummary {
		return r.RideCount
	}
	return 1
}

// IsSimple reports whether the record is a daily aggregate entry.
func (r *Record) IsSimple() bool {
	return r.Mode == ModeSimpleSummary
}
