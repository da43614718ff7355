package app

import (
	"fmt"
	"strings"

	"hotelbot/internal/domain"
)

func stars(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("★", n)
}

func hotelCard(r domain.SearchResult, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", r.Hotel.Name, stars(r.Hotel.StarRating))
	if r.Hotel.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", r.Hotel.Address)
	}
	fmt.Fprintf(&b, "%.1f km from the centre\n", r.Hotel.Distance)
	fmt.Fprintf(&b, "Price: %.0f %s", r.Price, currency)
	return b.String()
}

// historyEntry summarizes one finished search and the hotels it returned.
func historyEntry(s domain.Session, caption string, results []domain.SearchResult, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", s.CreatedAt.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Command: %s\n", s.Command)
	fmt.Fprintf(&b, "City: %s\n", caption)
	if s.CheckIn != nil && s.CheckOut != nil {
		fmt.Fprintf(&b, "Dates: %s - %s\n", s.CheckIn.Format(domain.DateLayout), s.CheckOut.Format(domain.DateLayout))
	}
	if s.Command.Constrained() && s.PriceMin != nil && s.PriceMax != nil && s.DistanceMin != nil && s.DistanceMax != nil {
		fmt.Fprintf(&b, "Price: %.0f - %.0f %s\n", *s.PriceMin, *s.PriceMax, currency)
		fmt.Fprintf(&b, "Distance: %.1f - %.1f km\n", *s.DistanceMin, *s.DistanceMax)
	}
	if s.ResultsNum != nil {
		fmt.Fprintf(&b, "Results: %d\n", *s.ResultsNum)
	}
	if s.PhotosNum != nil {
		fmt.Fprintf(&b, "Photos: %d\n", *s.PhotosNum)
	}
	if len(results) == 0 {
		b.WriteString("No offers were found.")
		return b.String()
	}
	b.WriteString("Hotels:")
	for _, r := range results {
		fmt.Fprintf(&b, "\n- %s, %.0f %s\n  %s", r.Hotel.Name, r.Price, currency, r.URL)
	}
	return b.String()
}
