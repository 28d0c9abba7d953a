package accounts

import (
	"strings"
	"time"
)

// Address is a two-line postal address.
type Address struct {
	Line1 string `json:"line1" bson:"line1"`
	Line2 string `json:"line2" bson:"line2"`
}

// Patient is a registered patient account.
type Patient struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Phone        string    `json:"phone,omitempty" bson:"phone"`
	Gender       string    `json:"gender,omitempty" bson:"gender"`
	DateOfBirth  string    `json:"dob,omitempty" bson:"dob"`
	Address      Address   `json:"address" bson:"address"`
	ImageURL     string    `json:"image,omitempty" bson:"image"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// Doctor is a provisioned doctor account.
type Doctor struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Speciality   string    `json:"speciality" bson:"speciality"`
	Degree       string    `json:"degree,omitempty" bson:"degree"`
	Experience   string    `json:"experience,omitempty" bson:"experience"`
	About        string    `json:"about,omitempty" bson:"about"`
	Fees         int64     `json:"fees" bson:"fees"`
	Address      Address   `json:"address" bson:"address"`
	ImageURL     string    `json:"image,omitempty" bson:"image"`
	Available    bool      `json:"available" bson:"available"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`

	// SlotsBooked is the ledger view (date -> times), filled on single-doctor lookups.
	SlotsBooked map[string][]string `json:"slots_booked,omitempty" bson:"-"`
}

// PatientSummary is the patient display block embedded in appointment listings.
type PatientSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone,omitempty"`
	Gender      string  `json:"gender,omitempty"`
	DateOfBirth string  `json:"dob,omitempty"`
	Address     Address `json:"address"`
	ImageURL    string  `json:"image,omitempty"`
}

// DoctorSummary is the doctor display block embedded in appointment listings.
type DoctorSummary struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Speciality string  `json:"speciality"`
	Fees       int64   `json:"fees"`
	Address    Address `json:"address"`
	ImageURL   string  `json:"image,omitempty"`
}

// Summary returns the display block for p.
func (p *Patient) Summary() PatientSummary {
	return PatientSummary{
		ID:          p.ID,
		Name:        p.Name,
		Email:       p.Email,
		Phone:       p.Phone,
		Gender:      p.Gender,
		DateOfBirth: p.DateOfBirth,
		Address:     p.Address,
		ImageURL:    p.ImageURL,
	}
}

// Summary returns the display block for d.
func (d *Doctor) Summary() DoctorSummary {
	return DoctorSummary{
		ID:         d.ID,
		Name:       d.Name,
		Email:      d.Email,
		Speciality: d.Speciality,
		Fees:       d.Fees,
		Address:    d.Address,
		ImageURL:   d.ImageURL,
	}
}

// DoctorFilter narrows directory listings.
type DoctorFilter struct {
	Speciality    string
	AvailableOnly bool
}

// ProfileUpdate carries the optional patient profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name        *string  `json:"name"`
	Phone       *string  `json:"phone"`
	Gender      *string  `json:"gender"`
	DateOfBirth *string  `json:"dob"`
	Address     *Address `json:"address"`
}

// Validate validates the profile update
func (u *ProfileUpdate) Validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return ErrInvalidName
	}
	if u.DateOfBirth != nil && *u.DateOfBirth != "" {
		if _, err := time.Parse("2006-01-02", *u.DateOfBirth); err != nil {
			return ErrInvalidDateOfBirth
		}
	}
	return nil
}

// Apply copies the set fields onto p.
func (u *ProfileUpdate) Apply(p *Patient) {
	if u.Name != nil {
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Phone != nil {
		p.Phone = strings.TrimSpace(*u.Phone)
	}
	if u.Gender != nil {
		p.Gender = strings.TrimSpace(*u.Gender)
	}
	if u.DateOfBirth != nil {
		p.DateOfBirth = *u.DateOfBirth
	}
	if u.Address != nil {
		p.Address = *u.Address
	}
}

// NormalizeEmail lower-cases and trims an address so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
