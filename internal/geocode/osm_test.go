package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleReverseResponse = `{
	"place_id": 1,
	"osm_type": "way",
	"osm_id": 397458815,
	"display_name": "United States Post Office, 2nd Avenue, Highland Park, North Pole, Fairbanks North Star, Alaska, 99705, United States",
	"name": "United States Post Office",
	"address": {
		"road": "2nd Avenue",
		"city": "North Pole",
		"county": "Fairbanks North Star",
		"state": "Alaska",
		"postcode": "99705",
		"country": "United States"
	}
}`

func TestReverseParsesNominatimResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/reverse", r.URL.Path)
		require.Equal(t, "fleetlogger", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleReverseResponse))
	}))
	defer srv.Close()

	c := NewOSMClient(srv.URL)
	addr, err := c.Reverse(context.Background(), 64.7529099405634, -147.35390714170856)
	require.NoError(t, err)
	require.NotNil(t, addr)
	require.Equal(t, "2nd Avenue", *addr.Road)
	require.Equal(t, "North Pole", *addr.City)
	require.Equal(t, "Fairbanks North Star", *addr.County)
	require.Equal(t, "Alaska", *addr.State)
	require.Equal(t, "99705", *addr.Postcode)
	require.Equal(t, "United States", *addr.Country)
	require.Nil(t, addr.HouseNumber)
}

func TestReverseTreatsErrorFieldAsNoAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "Unable to geocode"}`))
	}))
	defer srv.Close()

	c := NewOSMClient(srv.URL)
	addr, err := c.Reverse(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Nil(t, addr)
}

func TestReverseSurfacesNon200AsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewOSMClient(srv.URL)
	_, err := c.Reverse(context.Background(), 0, 0)
	require.Error(t, err)
}

func TestFormatHouseNumbersCollapsesRange(t *testing.T) {
	require.Equal(t, "1 - 3", formatHouseNumbers("1;2;3"))
	require.Equal(t, "7", formatHouseNumbers("7"))
}

func TestAddressRoadFallsBackThroughChain(t *testing.T) {
	a := address{Footway: "Riverside Path"}
	require.Equal(t, "Riverside Path", a.road())
}
