package models

import (
	"encoding/json"
	"fmt"
)

// ListingKind identifies which details variant a listing carries.
type ListingKind string

const (
	ListingKindCar          ListingKind = "car"
	ListingKindHouseForRent ListingKind = "house-for-rent"
	ListingKindHouseForSale ListingKind = "house-for-sale"
	ListingKindLetgo        ListingKind = "letgo"
	ListingKindHotel        ListingKind = "hotel"
	ListingKindSportsPlayer ListingKind = "sports-player"
)

// NumericGuess reports whether guesses for this kind are prices. Sports
// player rounds are answered with the player's name.
func (k ListingKind) NumericGuess() bool {
	return k != ListingKindSportsPlayer
}

// Details is the kind-specific part of a listing. The set of implementations
// is closed; use VisitDetails for exhaustive dispatch.
type Details interface {
	Kind() ListingKind
	details()
}

// Listing is the immutable item being priced in a round.
type Listing struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Kind    ListingKind `json:"type"`
	Images  []string    `json:"images"`
	Details Details     `json:"details"`
}

// CarDetails describes a car listing.
type CarDetails struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	MileageKm    int    `json:"mileage"`
	Fuel         string `json:"fuel"`
	Transmission string `json:"transmission"`
}

// HouseForRentDetails describes a rental listing.
type HouseForRentDetails struct {
	City         string `json:"city"`
	District     string `json:"district"`
	Rooms        string `json:"rooms"`
	SquareMeters int    `json:"squareMeters"`
	Floor        string `json:"floor"`
	Furnished    bool   `json:"furnished"`
}

// HouseForSaleDetails describes a listing for sale.
type HouseForSaleDetails struct {
	City         string `json:"city"`
	District     string `json:"district"`
	Rooms        string `json:"rooms"`
	SquareMeters int    `json:"squareMeters"`
	BuildingAge  int    `json:"buildingAge"`
}

// LetgoDetails describes a second-hand marketplace item.
type LetgoDetails struct {
	Category  string `json:"category"`
	Condition string `json:"condition"`
	Location  string `json:"location"`
}

// HotelDetails describes a hotel stay.
type HotelDetails struct {
	Name    string `json:"name"`
	City    string `json:"city"`
	Stars   int    `json:"stars"`
	Nights  int    `json:"nights"`
	CheckIn string `json:"checkIn"`
}

// SportsPlayerDetails describes a player whose market value is guessed.
type SportsPlayerDetails struct {
	Name        string `json:"name"`
	Team        string `json:"team"`
	Position    string `json:"position"`
	Age         int    `json:"age"`
	Nationality string `json:"nationality"`
}

func (CarDetails) Kind() ListingKind          { return ListingKindCar }
func (HouseForRentDetails) Kind() ListingKind { return ListingKindHouseForRent }
func (HouseForSaleDetails) Kind() ListingKind { return ListingKindHouseForSale }
func (LetgoDetails) Kind() ListingKind        { return ListingKindLetgo }
func (HotelDetails) Kind() ListingKind        { return ListingKindHotel }
func (SportsPlayerDetails) Kind() ListingKind { return ListingKindSportsPlayer }

func (CarDetails) details()          {}
func (HouseForRentDetails) details() {}
func (HouseForSaleDetails) details() {}
func (LetgoDetails) details()        {}
func (HotelDetails) details()        {}
func (SportsPlayerDetails) details() {}

// ListingVisitor has one method per details variant.
type ListingVisitor interface {
	Car(CarDetails)
	HouseForRent(HouseForRentDetails)
	HouseForSale(HouseForSaleDetails)
	Letgo(LetgoDetails)
	Hotel(HotelDetails)
	SportsPlayer(SportsPlayerDetails)
}

// VisitDetails dispatches the listing details to the matching visitor method.
// Listings without details are not visited.
func (l *Listing) VisitDetails(v ListingVisitor) {
	switch d := l.Details.(type) {
	case CarDetails:
		v.Car(d)
	case HouseForRentDetails:
		v.HouseForRent(d)
	case HouseForSaleDetails:
		v.HouseForSale(d)
	case LetgoDetails:
		v.Letgo(d)
	case HotelDetails:
		v.Hotel(d)
	case SportsPlayerDetails:
		v.SportsPlayer(d)
	}
}

// UnmarshalJSON decodes the details variant selected by the type field.
func (l *Listing) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      string          `json:"id"`
		Title   string          `json:"title"`
		Kind    ListingKind     `json:"type"`
		Images  []string        `json:"images"`
		Details json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	l.ID = raw.ID
	l.Title = raw.Title
	l.Kind = raw.Kind
	l.Images = raw.Images
	l.Details = nil

	if len(raw.Details) == 0 || string(raw.Details) == "null" {
		return nil
	}

	details, err := decodeDetails(raw.Kind, raw.Details)
	if err != nil {
		return err
	}
	l.Details = details
	return nil
}

func decodeDetails(kind ListingKind, data json.RawMessage) (Details, error) {
	switch kind {
	case ListingKindCar:
		return decodeInto[CarDetails](data)
	case ListingKindHouseForRent:
		return decodeInto[HouseForRentDetails](data)
	case ListingKindHouseForSale:
		return decodeInto[HouseForSaleDetails](data)
	case ListingKindLetgo:
		return decodeInto[LetgoDetails](data)
	case ListingKindHotel:
		return decodeInto[HotelDetails](data)
	case ListingKindSportsPlayer:
		return decodeInto[SportsPlayerDetails](data)
	default:
		return nil, fmt.Errorf("unknown listing type %q", kind)
	}
}

func decodeInto[T Details](data json.RawMessage) (Details, error) {
	var d T
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode %s details: %w", d.Kind(), err)
	}
	return d, nil
}
