// Package clinicfile reads a clinic description from YAML: providers with
// their weekly hours, shared resources and the booked appointments. It lets
// the availability rules run without a database.
package clinicfile

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hackgods/dental-availability/internal/availability"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownResource = errors.New("unknown resource")
)

// File is the on-disk layout.
type File struct {
	Timezone     string            `yaml:"timezone"`
	SlotStep     time.Duration     `yaml:"slot_step"`
	MaxDuration  time.Duration     `yaml:"max_duration"`
	Providers    []ProviderSpec    `yaml:"providers"`
	Resources    []ResourceSpec    `yaml:"resources"`
	Appointments []AppointmentSpec `yaml:"appointments"`
}

// ProviderSpec keys Hours by weekday name ("monday"). An omitted ID is
// derived from the name.
type ProviderSpec struct {
	ID    uuid.UUID                        `yaml:"id"`
	Name  string                           `yaml:"name"`
	Hours map[string]availability.DayHours `yaml:"hours"`
}

type ResourceSpec struct {
	ID          uuid.UUID                 `yaml:"id"`
	Name        string                    `yaml:"name"`
	Type        availability.ResourceType `yaml:"type"`
	Unavailable bool                      `yaml:"unavailable"`
}

// AppointmentSpec refers to its provider and resource by name or ID. Times
// are RFC 3339 or clinic-local "2006-01-02T15:04".
type AppointmentSpec struct {
	ID       uuid.UUID           `yaml:"id"`
	Provider string              `yaml:"provider"`
	Resource string              `yaml:"resource"`
	Start    string              `yaml:"start"`
	End      string              `yaml:"end"`
	Status   availability.Status `yaml:"status"`
}

type Provider struct {
	ID    uuid.UUID
	Name  string
	Hours availability.WorkingHours
}

// Clinic is a resolved File.
type Clinic struct {
	Location     *time.Location
	Policy       availability.Policy
	Providers    []Provider
	Resources    []availability.Resource
	Appointments []availability.Appointment
}

func Load(path string) (*Clinic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clinic file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Parse(data []byte) (*Clinic, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode clinic file: %w", err)
	}
	return f.Resolve()
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func derivedID(kind, name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(kind+":"+strings.ToLower(name)))
}

// Resolve validates the file and turns names into IDs.
func (f File) Resolve() (*Clinic, error) {
	loc := time.Local
	if f.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(f.Timezone); err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
	}

	c := &Clinic{
		Location: loc,
		Policy:   availability.Policy{SlotStep: f.SlotStep, MaxDuration: f.MaxDuration},
	}

	for _, ps := range f.Providers {
		if ps.Name == "" && ps.ID == uuid.Nil {
			return nil, errors.New("provider needs a name or an id")
		}
		id := ps.ID
		if id == uuid.Nil {
			id = derivedID("provider", ps.Name)
		}
		hours := availability.WorkingHours{ProviderID: id, Days: make(map[time.Weekday]availability.DayHours, len(ps.Hours))}
		for name, day := range ps.Hours {
			wd, ok := weekdays[strings.ToLower(name)]
			if !ok {
				return nil, fmt.Errorf("provider %q: unknown weekday %q", ps.Name, name)
			}
			hours.Days[wd] = day
		}
		if err := hours.Validate(); err != nil {
			return nil, fmt.Errorf("provider %q: %w", ps.Name, err)
		}
		c.Providers = append(c.Providers, Provider{ID: id, Name: ps.Name, Hours: hours})
	}

	for _, rs := range f.Resources {
		if !rs.Type.Valid() {
			return nil, fmt.Errorf("resource %q: unknown type %q", rs.Name, rs.Type)
		}
		id := rs.ID
		if id == uuid.Nil {
			id = derivedID("resource", rs.Name)
		}
		c.Resources = append(c.Resources, availability.Resource{ID: id, Type: rs.Type, Name: rs.Name, Available: !rs.Unavailable})
	}

	for i, as := range f.Appointments {
		a, err := c.resolveAppointment(i, as)
		if err != nil {
			return nil, fmt.Errorf("appointment %d: %w", i+1, err)
		}
		c.Appointments = append(c.Appointments, a)
	}

	return c, nil
}

func (c *Clinic) resolveAppointment(i int, as AppointmentSpec) (availability.Appointment, error) {
	p, err := c.Provider(as.Provider)
	if err != nil {
		return availability.Appointment{}, err
	}
	a := availability.Appointment{
		ID:         as.ID,
		ProviderID: p.ID,
		Status:     as.Status,
	}
	if a.ID == uuid.Nil {
		a.ID = derivedID("appointment", fmt.Sprintf("%d", i))
	}
	if a.Status == "" {
		a.Status = availability.StatusScheduled
	}
	if !a.Status.Valid() {
		return a, fmt.Errorf("unknown status %q", a.Status)
	}
	if as.Resource != "" {
		r, err := c.Resource(as.Resource)
		if err != nil {
			return a, err
		}
		a.ResourceID = &r.ID
	}
	if a.Start, err = c.ParseTime(as.Start); err != nil {
		return a, fmt.Errorf("start: %w", err)
	}
	if a.End, err = c.ParseTime(as.End); err != nil {
		return a, fmt.Errorf("end: %w", err)
	}
	if !a.Interval().Valid() {
		return a, fmt.Errorf("%w: start %s is not before end %s", availability.ErrInvalidInterval, as.Start, as.End)
	}
	return a, nil
}

// Provider finds a provider by ID or case-insensitive name.
func (c *Clinic) Provider(ref string) (Provider, error) {
	id, idErr := uuid.Parse(ref)
	for _, p := range c.Providers {
		if (idErr == nil && p.ID == id) || strings.EqualFold(p.Name, ref) {
			return p, nil
		}
	}
	return Provider{}, fmt.Errorf("%w: %q", ErrUnknownProvider, ref)
}

// Resource finds a resource by ID or case-insensitive name.
func (c *Clinic) Resource(ref string) (availability.Resource, error) {
	id, idErr := uuid.Parse(ref)
	for _, r := range c.Resources {
		if (idErr == nil && r.ID == id) || strings.EqualFold(r.Name, ref) {
			return r, nil
		}
	}
	return availability.Resource{}, fmt.Errorf("%w: %q", ErrUnknownResource, ref)
}

var localLayouts = []string{"2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02T15:04:05"}

func (c *Clinic) ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(c.Location), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, c.Location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}

// ParseDate reads "2006-01-02" as a clinic-local calendar day.
func (c *Clinic) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, s, c.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse date %q", s)
	}
	return t, nil
}

// BookingContext returns the provider's hours and every appointment in the
// file. The checker itself ignores appointments of other providers that do
// not hold the requested resource.
func (c *Clinic) BookingContext(p Provider) availability.BookingContext {
	return availability.BookingContext{WorkingHours: p.Hours, Appointments: c.Appointments}
}
