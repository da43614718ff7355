package app

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"hotelbot/internal/domain"
)

/********** alias registries (single source of truth) **********/

var hotelAliases = map[string][]string{
	"id":    {"id", "hotelId", "hotel_id"},
	"name":  {"name", "hotelName"},
	"stars": {"starRating", "star_rating", "stars"},
	// ratePlan.price.current is a display string ("1,234 RUB") and is not read
	"price": {"price", "ratePlan.price.exactCurrent"},
}

var addressParts = []string{
	"address.streetAddress",
	"address.extendedAddress",
	"address.locality",
	"address.region",
	"address.countryName",
}

var centreLabels = map[string]struct{}{
	"центр города": {},
	"city center":  {},
	"city centre":  {},
}

// distance unit → factor to km
var distanceUnits = map[string]float64{
	"":           1,
	"km":         1,
	"км":         1,
	"kilometres": 1,
	"kilometers": 1,
	"m":          0.001,
	"м":          0.001,
	"meters":     0.001,
	"metres":     0.001,
	"mi":         1.609344,
	"mile":       1.609344,
	"miles":      1.609344,
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstNonEmpty: first non-empty string among paths.
func firstNonEmpty(m map[string]any, paths ...string) string {
	for _, p := range paths {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return s
		}
	}
	return ""
}

// getFloatFlexible: number from several paths (float64/int/string like "8,0" or "1 234").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			if f, err := domain.CoerceDecimal(v); err == nil {
				return &f
			}
		}
	}
	return nil
}

// firstInt64Flexible: int64 from several paths (float64/int/string).
func firstInt64Flexible(m map[string]any, paths ...string) *int64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			x := int64(v)
			return &x
		case int:
			x := int64(v)
			return &x
		case int64:
			x := v
			return &x
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return &n
			}
		}
	}
	return nil
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, sep)
}

/********** location mapper **********/

// mapLocation parses a city entity. ok is false for non-city entities.
func mapLocation(e map[string]any) (domain.Location, bool, error) {
	if t := lookupStr(e, "type"); t != "" && !strings.EqualFold(t, "CITY") {
		return domain.Location{}, false, nil
	}
	id := firstInt64Flexible(e, "destinationId")
	if id == nil || *id <= 0 {
		return domain.Location{}, false, fmt.Errorf("%w: location without destinationId", domain.ErrRemoteMalformed)
	}
	var geo int64
	if g := firstInt64Flexible(e, "geoId"); g != nil {
		geo = *g
	}
	name := firstNonEmpty(e, "name")
	caption := domain.CleanCaption(firstNonEmpty(e, "caption"))
	if caption == "" {
		caption = name
	}
	if name == "" {
		name = caption
	}
	return domain.Location{
		DestinationID: *id,
		GeoID:         geo,
		Caption:       caption,
		Name:          name,
		NameLower:     domain.NormalizeName(name),
	}, true, nil
}

/********** hotel mapper **********/

// mapHotel parses one search result into a hotel and its nightly price.
func mapHotel(r map[string]any) (domain.Hotel, float64, error) {
	id := firstInt64Flexible(r, hotelAliases["id"]...)
	if id == nil {
		return domain.Hotel{}, 0, fmt.Errorf("%w: hotel without id", domain.ErrRemoteMalformed)
	}
	name := firstNonEmpty(r, hotelAliases["name"]...)
	if name == "" {
		return domain.Hotel{}, 0, fmt.Errorf("%w: hotel %d without name", domain.ErrRemoteMalformed, *id)
	}
	price := getFloatFlexible(r, hotelAliases["price"]...)
	if price == nil {
		return domain.Hotel{}, 0, fmt.Errorf("%w: hotel %d without price", domain.ErrRemoteMalformed, *id)
	}
	dist, err := centreDistance(r)
	if err != nil {
		return domain.Hotel{}, 0, fmt.Errorf("hotel %d: %w", *id, err)
	}

	h := domain.Hotel{ID: *id, Name: name, Distance: dist}
	if f := getFloatFlexible(r, hotelAliases["stars"]...); f != nil {
		h.StarRating = int(*f)
	}
	parts := make([]string, 0, len(addressParts))
	for _, p := range addressParts {
		parts = append(parts, lookupStr(r, p))
	}
	h.Address = joinNonEmpty(", ", parts...)
	return h, *price, nil
}

// centreDistance finds the city centre landmark and returns its distance in km.
func centreDistance(r map[string]any) (float64, error) {
	marks, _ := lookupAny(r, "landmarks").([]any)
	for _, it := range marks {
		lm, ok := it.(map[string]any)
		if !ok {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(lookupStr(lm, "label")))
		if _, ok := centreLabels[label]; !ok {
			continue
		}
		return parseDistance(lookupStr(lm, "distance"))
	}
	return 0, fmt.Errorf("%w: no city centre landmark", domain.ErrRemoteMalformed)
}

// parseDistance reads strings like "1,2 км", "0.8 miles" or "650 m" into km.
func parseDistance(s string) (float64, error) {
	s = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, ",", ".")))
	i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) && r != '.' && r != ' ' && r != '\u00a0' })
	num, unit := s, ""
	if i >= 0 {
		num, unit = s[:i], strings.TrimSpace(s[i:])
	}
	factor, ok := distanceUnits[strings.TrimSuffix(unit, ".")]
	if !ok {
		return 0, fmt.Errorf("%w: unknown distance unit %q", domain.ErrRemoteMalformed, unit)
	}
	f, err := domain.CoerceDecimal(num)
	if err != nil {
		return 0, fmt.Errorf("%w: distance %q", domain.ErrRemoteMalformed, s)
	}
	return f * factor, nil
}

/********** photo mapper **********/

func mapPhoto(hotelID int64, p map[string]any) (domain.HotelPhoto, error) {
	id := firstInt64Flexible(p, "imageId", "image_id", "id")
	base := firstNonEmpty(p, "baseUrl", "base_url", "url")
	if id == nil || base == "" {
		return domain.HotelPhoto{}, fmt.Errorf("%w: photo of hotel %d", domain.ErrRemoteMalformed, hotelID)
	}
	return domain.HotelPhoto{ImageID: *id, HotelID: hotelID, BaseURL: base}, nil
}

/********** booking link **********/

func bookingURL(base, currency string, hotelID int64, s domain.Session) string {
	q := url.Values{}
	q.Set("q-check-in", s.CheckIn.Format(domain.DateLayout))
	q.Set("q-check-out", s.CheckOut.Format(domain.DateLayout))
	q.Set("q-rooms", "1")
	q.Set("q-room-0-adults", "1")
	q.Set("q-room-0-children", "0")
	q.Set("f-hotel-id", strconv.FormatInt(hotelID, 10))
	q.Set("cur", currency)
	return fmt.Sprintf("%s/ho%d/?%s", strings.TrimRight(base, "/"), hotelID, q.Encode())
}
