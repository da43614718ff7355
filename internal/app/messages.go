package app

import (
	"fmt"

	"hotelbot/internal/domain"
)

const msgCommands = `/lowprice - cheapest hotels in a city
/highprice - most expensive hotels in a city
/bestdeal - hotels within a price range and distance from the centre
/history - your previous searches
/cancel - drop the search in progress`

const (
	msgStart           = "Welcome to hotelbot. I can find hotels for you.\n\n" + msgCommands
	msgHelp            = msgCommands
	msgUnknownCommand  = "I don't know that command.\n\n" + msgCommands
	msgNoSession       = "There is no search in progress. Start one with /lowprice, /highprice or /bestdeal."
	msgSessionActive   = "You already have a %s search in progress. Answer the question below or send /cancel."
	msgCancelled       = "Search cancelled."
	msgNothingToCancel = "There is nothing to cancel."
	msgFailure         = "Sorry, something went wrong on our side. Please try again."
	msgBusy            = "Still working on your previous message, please wait a moment."
	msgStale           = "That button is no longer active."
	msgConflict        = "Your answer crossed with another one. Please send it again."
	msgAlreadyAnswered = "This search was already answered. Send /history to see it."
	msgClarify         = "Which one do you mean?"
	msgNotFoundCity    = "City not found. Please try another name."
	msgFound           = "Found offers: %d"
	msgNoOffers        = "No offers found. Try other dates or filters."
	msgHistoryEmpty    = "Your search history is empty."
	msgHistoryHeader   = "Your last searches:"
	msgBook            = "Book"
)

var commandIntro = map[domain.Command]string{
	domain.CommandLowPrice:  "LowPrice shows the cheapest offers.",
	domain.CommandHighPrice: "HighPrice shows the most expensive offers.",
	domain.CommandBestDeal:  "BestDeal picks offers by price and distance from the city centre.",
}

func prompt(step domain.Step, l domain.Limits) string {
	switch step {
	case domain.StepLocation:
		return "Enter the city name:"
	case domain.StepCheckIn:
		return "Choose the check-in date (YYYY-MM-DD):"
	case domain.StepCheckOut:
		return "Choose the check-out date (YYYY-MM-DD):"
	case domain.StepPriceMin:
		return "Enter the minimum price per night:"
	case domain.StepPriceMax:
		return "Enter the maximum price per night:"
	case domain.StepDistanceMin:
		return "Enter the minimum distance from the city centre, km:"
	case domain.StepDistanceMax:
		return "Enter the maximum distance from the city centre, km:"
	case domain.StepResultsNum:
		return fmt.Sprintf("How many hotels to show (at most %d)?", l.MaxResults)
	case domain.StepPhotosNum:
		return fmt.Sprintf("How many photos per hotel (at most %d, 0 for none)?", l.MaxPhotos)
	}
	return ""
}

// rejection is shown when a value does not coerce or breaks an invariant.
func rejection(step domain.Step, l domain.Limits) string {
	switch step {
	case domain.StepLocation:
		return "I can't use that city. Please try again."
	case domain.StepCheckIn:
		return "Check-in must be a date, today or later. Please try again."
	case domain.StepCheckOut:
		return "Check-out must be a date after check-in. Please try again."
	case domain.StepPriceMin:
		return "The price must be a number, zero or more. Please try again."
	case domain.StepPriceMax:
		return "The price must be a number not below the minimum price. Please try again."
	case domain.StepDistanceMin:
		return "The distance must be a number, zero or more. Please try again."
	case domain.StepDistanceMax:
		return "The distance must be a number not below the minimum distance. Please try again."
	case domain.StepResultsNum:
		return fmt.Sprintf("The number must be between 1 and %d. Please try again.", l.MaxResults)
	case domain.StepPhotosNum:
		return fmt.Sprintf("The number must be between 0 and %d. Please try again.", l.MaxPhotos)
	}
	return msgFailure
}

func confirmation(step domain.Step, s domain.Session, caption, currency string) string {
	switch step {
	case domain.StepLocation:
		return fmt.Sprintf("City: %s", caption)
	case domain.StepCheckIn:
		return fmt.Sprintf("Check-in: %s", s.CheckIn.Format(domain.DateLayout))
	case domain.StepCheckOut:
		return fmt.Sprintf("Check-out: %s", s.CheckOut.Format(domain.DateLayout))
	case domain.StepPriceMin:
		return fmt.Sprintf("Minimum price: %.2f %s", *s.PriceMin, currency)
	case domain.StepPriceMax:
		return fmt.Sprintf("Maximum price: %.2f %s", *s.PriceMax, currency)
	case domain.StepDistanceMin:
		return fmt.Sprintf("Minimum distance: %.1f km", *s.DistanceMin)
	case domain.StepDistanceMax:
		return fmt.Sprintf("Maximum distance: %.1f km", *s.DistanceMax)
	case domain.StepResultsNum:
		return fmt.Sprintf("Hotels to show: %d", *s.ResultsNum)
	case domain.StepPhotosNum:
		return fmt.Sprintf("Photos per hotel: %d", *s.PhotosNum)
	}
	return ""
}
