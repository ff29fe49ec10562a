package models

import "time"

// PreferenceProfile stores a user's scheduling preferences. PreferredShift
// empty means no shift preference. Compactness is a 1-10 dial: low values
// prefer spread-out days, high values prefer tightly packed ones.
type PreferenceProfile struct {
	ID              string             `db:"id" json:"id"`
	UserID          string             `db:"user_id" json:"user_id"`
	PreferredShift  Shift              `db:"preferred_shift" json:"preferred_shift,omitempty"`
	Compactness     int                `db:"compactness" json:"compactness"`
	AvoidDays       []Weekday          `db:"-" json:"avoid_days"`
	WeightOverrides map[string]float64 `db:"-" json:"weight_overrides,omitempty"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`
}

// AvoidsDay reports whether the given day is in the avoid set.
func (p *PreferenceProfile) AvoidsDay(day Weekday) bool {
	if p == nil {
		return false
	}
	for _, d := range p.AvoidDays {
		if d == day {
			return true
		}
	}
	return false
}
