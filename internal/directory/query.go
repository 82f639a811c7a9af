package directory

import "strings"

const (
	DefaultDoctorLimit = 10
	MaxDoctorLimit     = 100
)

// DoctorFilter selects doctors for the public directory listing.
type DoctorFilter struct {
	// Search matches name or specialization, case-insensitively.
	Search         string
	Specialization string
	// IncludeInactive is honoured for admins only.
	IncludeInactive bool
	Skip            int
	Limit           int
}

type DoctorPage struct {
	Doctors []Doctor
	Total   int
	Skip    int
	Limit   int
}

func (f DoctorFilter) normalize() DoctorFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultDoctorLimit
	}
	if f.Limit > MaxDoctorLimit {
		f.Limit = MaxDoctorLimit
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
	f.Search = strings.TrimSpace(f.Search)
	f.Specialization = strings.TrimSpace(f.Specialization)
	return f
}
