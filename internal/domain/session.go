package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Command selects the search mode of a session.
type Command string

const (
	CommandLowPrice  Command = "/lowprice"
	CommandHighPrice Command = "/highprice"
	CommandBestDeal  Command = "/bestdeal"
)

// ParseCommand recognizes a search command, ignoring a trailing "@botname" and arguments.
func ParseCommand(text string) (Command, bool) {
	f := strings.Fields(strings.TrimSpace(text))
	if len(f) == 0 {
		return "", false
	}
	name, _, _ := strings.Cut(strings.ToLower(f[0]), "@")
	switch c := Command(name); c {
	case CommandLowPrice, CommandHighPrice, CommandBestDeal:
		return c, true
	}
	return "", false
}

// Constrained reports whether the mode filters by price and distance.
func (c Command) Constrained() bool { return c == CommandBestDeal }

// Step names a session attribute. StepComplete means nothing is left to ask.
type Step string

const (
	StepLocation    Step = "location_id"
	StepCheckIn     Step = "check_in"
	StepCheckOut    Step = "check_out"
	StepPriceMin    Step = "price_min"
	StepPriceMax    Step = "price_max"
	StepDistanceMin Step = "distance_min"
	StepDistanceMax Step = "distance_max"
	StepResultsNum  Step = "results_num"
	StepPhotosNum   Step = "photos_num"
	StepComplete    Step = "complete"
)

var (
	unconstrainedSchema = []Step{StepLocation, StepCheckIn, StepCheckOut, StepResultsNum, StepPhotosNum}
	constrainedSchema   = []Step{
		StepLocation, StepCheckIn, StepCheckOut,
		StepPriceMin, StepPriceMax, StepDistanceMin, StepDistanceMax,
		StepResultsNum, StepPhotosNum,
	}
)

// Schema returns the ordered attributes collected for a command.
func Schema(c Command) []Step {
	if c.Constrained() {
		return constrainedSchema
	}
	return unconstrainedSchema
}

type Session struct {
	ID        int64
	ChatID    int64
	Command   Command
	CreatedAt time.Time

	LocationID  *int64
	CheckIn     *time.Time
	CheckOut    *time.Time
	PriceMin    *float64
	PriceMax    *float64
	DistanceMin *float64
	DistanceMax *float64
	ResultsNum  *int
	PhotosNum   *int

	Complete  bool
	Cancelled bool
	Version   int
}

func NewSession(chatID int64, cmd Command, now time.Time) Session {
	return Session{ChatID: chatID, Command: cmd, CreatedAt: now.UTC()}
}

// IsSet reports whether the attribute behind step holds a value.
func (s *Session) IsSet(step Step) bool {
	switch step {
	case StepLocation:
		return s.LocationID != nil
	case StepCheckIn:
		return s.CheckIn != nil
	case StepCheckOut:
		return s.CheckOut != nil
	case StepPriceMin:
		return s.PriceMin != nil
	case StepPriceMax:
		return s.PriceMax != nil
	case StepDistanceMin:
		return s.DistanceMin != nil
	case StepDistanceMax:
		return s.DistanceMax != nil
	case StepResultsNum:
		return s.ResultsNum != nil
	case StepPhotosNum:
		return s.PhotosNum != nil
	}
	return false
}

func (s *Session) unset(step Step) {
	switch step {
	case StepLocation:
		s.LocationID = nil
	case StepCheckIn:
		s.CheckIn = nil
	case StepCheckOut:
		s.CheckOut = nil
	case StepPriceMin:
		s.PriceMin = nil
	case StepPriceMax:
		s.PriceMax = nil
	case StepDistanceMin:
		s.DistanceMin = nil
	case StepDistanceMax:
		s.DistanceMax = nil
	case StepResultsNum:
		s.ResultsNum = nil
	case StepPhotosNum:
		s.PhotosNum = nil
	}
}

// CurrentStep scans the schema backwards for the last populated attribute and
// returns its successor. A session with nothing set starts at the first step.
func (s Session) CurrentStep() Step {
	schema := Schema(s.Command)
	for i := len(schema) - 1; i >= 0; i-- {
		if s.IsSet(schema[i]) {
			if i == len(schema)-1 {
				return StepComplete
			}
			return schema[i+1]
		}
	}
	return schema[0]
}

// Filters are the acceptance bounds of a search. Unconstrained sessions pass everything.
type Filters struct {
	PriceMin, PriceMax       float64
	DistanceMin, DistanceMax float64
}

func (f Filters) Accept(price, distance float64) bool {
	return price >= f.PriceMin && price <= f.PriceMax &&
		distance >= f.DistanceMin && distance <= f.DistanceMax
}

func (s Session) Filters() Filters {
	f := Filters{PriceMax: math.Inf(1), DistanceMax: math.Inf(1)}
	if s.PriceMin != nil {
		f.PriceMin = *s.PriceMin
	}
	if s.PriceMax != nil {
		f.PriceMax = *s.PriceMax
	}
	if s.DistanceMin != nil {
		f.DistanceMin = *s.DistanceMin
	}
	if s.DistanceMax != nil {
		f.DistanceMax = *s.DistanceMax
	}
	return f
}

// Limits bound the user-chosen counts.
type Limits struct {
	MaxResults int
	MaxPhotos  int
}

// Machine mutates sessions one attribute at a time.
type Machine struct {
	limits Limits
	now    func() time.Time
}

func NewMachine(l Limits, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{limits: l, now: now}
}

func (m *Machine) Limits() Limits { return m.limits }

func (m *Machine) Now() time.Time { return m.now() }

// Today is the earliest acceptable check-in date.
func (m *Machine) Today() time.Time { return DateOnly(m.now()) }

// SetAttribute coerces raw into the attribute for step and stores it on s.
// The step must be the session's current step. When the value breaks an
// invariant the attribute is left unset and ErrInvariant is returned.
// Persisting s is up to the caller.
func (m *Machine) SetAttribute(s *Session, step Step, raw string) error {
	if cur := s.CurrentStep(); step != cur {
		return fmt.Errorf("%w: got %s, expecting %s", ErrOutOfOrder, step, cur)
	}
	if err := m.assign(s, step, raw); err != nil {
		return err
	}
	if err := m.check(s, step); err != nil {
		s.unset(step)
		return err
	}
	return nil
}

func (m *Machine) assign(s *Session, step Step, raw string) error {
	switch step {
	case StepLocation:
		v, err := CoerceInt64(raw)
		if err != nil {
			return err
		}
		s.LocationID = &v
	case StepCheckIn, StepCheckOut:
		v, err := CoerceDate(raw)
		if err != nil {
			return err
		}
		if step == StepCheckIn {
			s.CheckIn = &v
		} else {
			s.CheckOut = &v
		}
	case StepPriceMin, StepPriceMax, StepDistanceMin, StepDistanceMax:
		v, err := CoerceDecimal(raw)
		if err != nil {
			return err
		}
		switch step {
		case StepPriceMin:
			s.PriceMin = &v
		case StepPriceMax:
			s.PriceMax = &v
		case StepDistanceMin:
			s.DistanceMin = &v
		default:
			s.DistanceMax = &v
		}
	case StepResultsNum, StepPhotosNum:
		v, err := CoerceInt(raw)
		if err != nil {
			return err
		}
		if step == StepResultsNum {
			s.ResultsNum = &v
		} else {
			s.PhotosNum = &v
		}
	default:
		return fmt.Errorf("%w: unknown attribute %s", ErrOutOfOrder, step)
	}
	return nil
}

func (m *Machine) check(s *Session, step Step) error {
	switch step {
	case StepLocation:
		if *s.LocationID <= 0 {
			return fmt.Errorf("%w: location id must be positive", ErrInvariant)
		}
	case StepCheckIn:
		if s.CheckIn.Before(m.Today()) {
			return fmt.Errorf("%w: check-in is in the past", ErrInvariant)
		}
	case StepCheckOut:
		if !s.CheckOut.After(*s.CheckIn) {
			return fmt.Errorf("%w: check-out must be after check-in", ErrInvariant)
		}
	case StepPriceMin:
		if *s.PriceMin < 0 {
			return fmt.Errorf("%w: minimum price is negative", ErrInvariant)
		}
	case StepPriceMax:
		if *s.PriceMax < *s.PriceMin {
			return fmt.Errorf("%w: maximum price below minimum", ErrInvariant)
		}
	case StepDistanceMin:
		if *s.DistanceMin < 0 {
			return fmt.Errorf("%w: minimum distance is negative", ErrInvariant)
		}
	case StepDistanceMax:
		if *s.DistanceMax < *s.DistanceMin {
			return fmt.Errorf("%w: maximum distance below minimum", ErrInvariant)
		}
	case StepResultsNum:
		if n := *s.ResultsNum; n <= 0 || n > m.limits.MaxResults {
			return fmt.Errorf("%w: results must be within 1..%d", ErrInvariant, m.limits.MaxResults)
		}
	case StepPhotosNum:
		if n := *s.PhotosNum; n < 0 || n > m.limits.MaxPhotos {
			return fmt.Errorf("%w: photos must be within 0..%d", ErrInvariant, m.limits.MaxPhotos)
		}
	}
	return nil
}
