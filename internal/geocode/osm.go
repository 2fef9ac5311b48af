// Package geocode implements the reverse-geocoding collaborator the processor
// calls after every drive/charge session closes (§4.5), grounded on
// original_source/chipmunk/src/openstreetmap.rs's Nominatim reverse-lookup.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/evtrack/fleetlogger/internal/models"
)

const (
	defaultBaseURL    = "https://nominatim.openstreetmap.org"
	requestTimeout    = 10 * time.Second
	userAgent         = "fleetlogger"
)

// OSMClient is the minimal HTTP-backed Nominatim client. It implements
// tasks.Geocoder.
type OSMClient struct {
	baseURL string
	http    *http.Client
}

// NewOSMClient builds a client against the public Nominatim instance. baseURL, if
// empty, defaults to the public nominatim.openstreetmap.org endpoint used in the
// original source.
func NewOSMClient(baseURL string) *OSMClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OSMClient{baseURL: baseURL, http: &http.Client{Timeout: requestTimeout}}
}

// address mirrors the fields of Nominatim's "address" object actually consumed
// below; see OsmAddress in the original source for the full fallback chains this
// reimplements.
type address struct {
	HouseNumber      string `json:"house_number"`
	HouseNumberAlt   string `json:"housenumber"`
	StreetNumber     string `json:"street_number"`
	Road             string `json:"road"`
	Highway          string `json:"highway"`
	Footway          string `json:"footway"`
	Street           string `json:"street"`
	StreetName       string `json:"street_name"`
	Path             string `json:"path"`
	Pedestrian       string `json:"pedestrian"`
	Square           string `json:"square"`
	Place            string `json:"place"`
	City             string `json:"city"`
	Town             string `json:"town"`
	Township         string `json:"township"`
	County           string `json:"county"`
	CountyCode       string `json:"county_code"`
	Department       string `json:"department"`
	StateDistrict    string `json:"state_district"`
	State            string `json:"state"`
	Postcode         string `json:"postcode"`
	Country          string `json:"country"`
	CountryCode      string `json:"country_code"`
}

func (a address) houseNumber() string {
	switch {
	case a.HouseNumber != "":
		return formatHouseNumbers(a.HouseNumber)
	case a.HouseNumberAlt != "":
		return formatHouseNumbers(a.HouseNumberAlt)
	case a.StreetNumber != "":
		return formatHouseNumbers(a.StreetNumber)
	default:
		return ""
	}
}

// formatHouseNumbers collapses a Nominatim "1;2;3" range into "1 - 3", matching
// OsmAddress::format_house_numbers in the original source.
func formatHouseNumbers(numbers string) string {
	parts := strings.Split(numbers, ";")
	if len(parts) > 1 {
		return fmt.Sprintf("%s - %s", parts[0], parts[len(parts)-1])
	}
	return numbers
}

func (a address) road() string {
	for _, v := range []string{a.Road, a.Highway, a.Footway, a.Street, a.StreetName, a.Path, a.Pedestrian, a.Square, a.Place} {
		if v != "" {
			return v
		}
	}
	return ""
}

func (a address) city() string {
	for _, v := range []string{a.City, a.Town, a.Township} {
		if v != "" {
			return v
		}
	}
	return ""
}

func (a address) county() string {
	for _, v := range []string{a.County, a.CountyCode, a.Department} {
		if v != "" {
			return v
		}
	}
	return ""
}

type nominatimResponse struct {
	PlaceID     *int64   `json:"place_id"`
	OsmType     string   `json:"osm_type"`
	OsmID       *int64   `json:"osm_id"`
	DisplayName string   `json:"display_name"`
	Name        string   `json:"name"`
	Address     *address `json:"address"`
	Error       string   `json:"error"`
}

// Reverse looks up the nearest addressable place for (lat, lon), returning nil,
// nil when Nominatim has nothing at this zoom level rather than treating it as a
// hard error, since sparse coverage (open water, remote terrain) is expected.
func (c *OSMClient) Reverse(ctx context.Context, lat, lon float64) (*models.Address, error) {
	endpoint := fmt.Sprintf("%s/reverse", c.baseURL)
	q := url.Values{
		"lat":            {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":            {strconv.FormatFloat(lon, 'f', -1, 64)},
		"addressdetails": {"1"},
		"extratags":      {"1"},
		"namedetails":    {"1"},
		"zoom":           {"19"},
		"format":         {"jsonv2"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode: unexpected response code %d", resp.StatusCode)
	}

	var out nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("geocode: decoding response: %w", err)
	}
	if out.Error != "" {
		return nil, nil
	}

	addr := &models.Address{
		DisplayName: strPtr(out.DisplayName),
		Name:        strPtr(out.Name),
		Latitude:    &lat,
		Longitude:   &lon,
		OsmID:       out.OsmID,
		OsmType:     strPtr(out.OsmType),
	}
	if out.Address != nil {
		addr.HouseNumber = strPtr(out.Address.houseNumber())
		addr.Road = strPtr(out.Address.road())
		addr.City = strPtr(out.Address.city())
		addr.County = strPtr(out.Address.county())
		addr.Postcode = strPtr(out.Address.Postcode)
		addr.State = strPtr(out.Address.State)
		addr.Country = strPtr(out.Address.Country)
	}
	return addr, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
