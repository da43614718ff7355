package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hotelbot/internal/domain"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt64(p *int64) any {
	if p == nil || *p == 0 {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valDate(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.Format(domain.DateLayout)
}

// Repo implements domain.Repository on MySQL.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// ---- locations ----

func (r *Repo) AddLocation(ctx context.Context, l domain.Location) error {
	_, err := r.db.ExecContext(ctx, insertLocationSQL,
		l.DestinationID,
		valInt64(&l.GeoID),
		l.Caption,
		l.Name,
		l.NameLower,
	)
	if err != nil {
		return fmt.Errorf("insert location %d: %w", l.DestinationID, err)
	}
	return nil
}

func (r *Repo) GetLocation(ctx context.Context, id int64) (domain.Location, error) {
	l, err := scanLocation(r.db.QueryRowContext(ctx, getLocationSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Location{}, domain.ErrNotFound
	}
	return l, err
}

// GetLocationsByName matches the normalized city name first and falls back
// to a substring match on the caption.
func (r *Repo) GetLocationsByName(ctx context.Context, name string, limit int) ([]domain.Location, error) {
	if limit <= 0 {
		limit = 10
	}
	out, err := r.queryLocations(ctx, locationsByNameSQL, domain.NormalizeName(name), limit)
	if err != nil || len(out) > 0 {
		return out, err
	}
	text := strings.TrimSpace(name)
	if text == "" {
		return nil, nil
	}
	return r.queryLocations(ctx, locationsByCaptionSQL, "%"+escapeLike(text)+"%", limit)
}

func (r *Repo) queryLocations(ctx context.Context, q string, args ...any) ([]domain.Location, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanLocation(sc scanner) (domain.Location, error) {
	var l domain.Location
	var geo sql.NullInt64
	if err := sc.Scan(&l.DestinationID, &geo, &l.Caption, &l.Name, &l.NameLower); err != nil {
		return domain.Location{}, err
	}
	l.GeoID = geo.Int64
	return l, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// ---- sessions ----

func (r *Repo) AddSession(ctx context.Context, s domain.Session) (domain.Session, error) {
	res, err := r.db.ExecContext(ctx, insertSessionSQL, s.ChatID, string(s.Command), s.CreatedAt.UTC())
	if err != nil {
		return domain.Session{}, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Session{}, err
	}
	s.ID = id
	s.Version = 0
	return s, nil
}

func (r *Repo) GetActiveSession(ctx context.Context, chatID int64) (domain.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, activeSessionSQL, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrNotFound
	}
	return s, err
}

func (r *Repo) ListCompletedSessions(ctx context.Context, chatID int64, limit int) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, completedSessionsSQL, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// sessionColumn maps a step onto its column and current value.
func sessionColumn(s *domain.Session, step domain.Step) (string, any, bool) {
	switch step {
	case domain.StepLocation:
		return "location_id", valInt64(s.LocationID), true
	case domain.StepCheckIn:
		return "check_in", valDate(s.CheckIn), true
	case domain.StepCheckOut:
		return "check_out", valDate(s.CheckOut), true
	case domain.StepPriceMin:
		return "price_min", valF64(s.PriceMin), true
	case domain.StepPriceMax:
		return "price_max", valF64(s.PriceMax), true
	case domain.StepDistanceMin:
		return "distance_min", valF64(s.DistanceMin), true
	case domain.StepDistanceMax:
		return "distance_max", valF64(s.DistanceMax), true
	case domain.StepResultsNum:
		return "results_num", valInt(s.ResultsNum), true
	case domain.StepPhotosNum:
		return "photos_num", valInt(s.PhotosNum), true
	}
	return "", nil, false
}

var allSteps = domain.Schema(domain.CommandBestDeal)

func (r *Repo) UpdateSession(ctx context.Context, s *domain.Session, changed ...domain.Step) error {
	if len(changed) == 0 {
		changed = allSteps
	}
	var b strings.Builder
	b.WriteString(updateSessionPrefix)
	args := make([]any, 0, len(changed)+2)
	for _, step := range changed {
		col, v, ok := sessionColumn(s, step)
		if !ok {
			return fmt.Errorf("%w: no column for %s", domain.ErrInvariant, step)
		}
		fmt.Fprintf(&b, ", %s = ?", col)
		args = append(args, v)
	}
	b.WriteString(updateSessionSuffix)
	args = append(args, s.ID, s.Version)

	res, err := r.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return fmt.Errorf("update session %d: %w", s.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.missingOrStale(ctx, s.ID)
	}
	s.Version++
	return nil
}

func (r *Repo) missingOrStale(ctx context.Context, id int64) error {
	var v int
	err := r.db.QueryRowContext(ctx, sessionVersionSQL, id).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrNotFound
	case err != nil:
		return err
	}
	return fmt.Errorf("%w: session %d is at version %d", domain.ErrConflict, id, v)
}

func (r *Repo) CompleteSession(ctx context.Context, s *domain.Session) error {
	res, err := r.db.ExecContext(ctx, completeSessionSQL, s.ID, s.Version)
	if err != nil {
		return fmt.Errorf("complete session %d: %w", s.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.missingOrStale(ctx, s.ID)
	}
	s.Complete = true
	s.Version++
	return nil
}

func (r *Repo) CancelSession(ctx context.Context, chatID int64) error {
	res, err := r.db.ExecContext(ctx, cancelSessionSQL, chatID)
	if err != nil {
		return fmt.Errorf("cancel session of chat %d: %w", chatID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanSession(sc scanner) (domain.Session, error) {
	var (
		s               domain.Session
		cmd             string
		loc             sql.NullInt64
		in, out         sql.NullTime
		pmin, pmax      sql.NullFloat64
		dmin, dmax      sql.NullFloat64
		results, photos sql.NullInt64
	)
	if err := sc.Scan(
		&s.ID, &s.ChatID, &cmd, &s.CreatedAt,
		&loc, &in, &out,
		&pmin, &pmax, &dmin, &dmax,
		&results, &photos,
		&s.Complete, &s.Cancelled, &s.Version,
	); err != nil {
		return domain.Session{}, err
	}
	s.Command = domain.Command(cmd)
	s.CreatedAt = s.CreatedAt.UTC()
	if loc.Valid {
		v := loc.Int64
		s.LocationID = &v
	}
	if in.Valid {
		v := domain.DateOnly(in.Time)
		s.CheckIn = &v
	}
	if out.Valid {
		v := domain.DateOnly(out.Time)
		s.CheckOut = &v
	}
	s.PriceMin = nullF64(pmin)
	s.PriceMax = nullF64(pmax)
	s.DistanceMin = nullF64(dmin)
	s.DistanceMax = nullF64(dmax)
	s.ResultsNum = nullInt(results)
	s.PhotosNum = nullInt(photos)
	return s, nil
}

func nullF64(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// ---- hotels ----

func (r *Repo) AddHotel(ctx context.Context, h domain.Hotel) error {
	_, err := r.db.ExecContext(ctx, insertHotelSQL, h.ID, h.Name, valStr(h.Address), h.StarRating, h.Distance)
	if err != nil {
		return fmt.Errorf("insert hotel %d: %w", h.ID, err)
	}
	return nil
}

func (r *Repo) AddSearchResult(ctx context.Context, sr domain.SearchResult) error {
	_, err := r.db.ExecContext(ctx, insertSearchResultSQL, sr.SessionID, sr.Hotel.ID, sr.Price, sr.URL)
	if err != nil {
		return fmt.Errorf("insert result %d/%d: %w", sr.SessionID, sr.Hotel.ID, err)
	}
	return nil
}

func (r *Repo) ListSearchResults(ctx context.Context, sessionID int64) ([]domain.SearchResult, error) {
	rows, err := r.db.QueryContext(ctx, listSearchResultsSQL, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SearchResult
	for rows.Next() {
		var sr domain.SearchResult
		var addr sql.NullString
		if err := rows.Scan(
			&sr.SessionID, &sr.Price, &sr.URL,
			&sr.Hotel.ID, &sr.Hotel.Name, &addr, &sr.Hotel.StarRating, &sr.Hotel.Distance,
		); err != nil {
			return nil, err
		}
		sr.Hotel.Address = addr.String
		out = append(out, sr)
	}
	return out, rows.Err()
}

func (r *Repo) AddHotelPhotos(ctx context.Context, ps []domain.HotelPhoto) error {
	if len(ps) == 0 {
		return nil
	}
	values := make([]string, 0, len(ps))
	args := make([]any, 0, len(ps)*4)
	for i, p := range ps {
		values = append(values, "(?,?,?,?)")
		args = append(args, p.ImageID, p.HotelID, p.BaseURL, i)
	}
	q := insertPhotosPrefix + strings.Join(values, ",") + insertPhotosOnDup
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert photos: %w", err)
	}
	return nil
}

func (r *Repo) GetHotelPhotos(ctx context.Context, hotelID int64, limit int) ([]domain.HotelPhoto, error) {
	rows, err := r.db.QueryContext(ctx, hotelPhotosSQL, hotelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HotelPhoto
	for rows.Next() {
		var p domain.HotelPhoto
		if err := rows.Scan(&p.ImageID, &p.HotelID, &p.BaseURL); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
