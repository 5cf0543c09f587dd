package geo

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
	"gopkg.in/yaml.v3"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

type Coordinates struct {
	Latitude  float64 `json:"latitude" yaml:"lat"`
	Longitude float64 `json:"longitude" yaml:"lon"`
}

// Index resolves location labels to coordinates. It is read-only after
// construction and safe for concurrent use.
type Index struct {
	places map[string]Coordinates
}

// defaultPlaces covers the neighbourhoods the relief desk operates in.
var defaultPlaces = map[string]Coordinates{
	"Tambaram":   {12.9249, 80.1000},
	"Velachery":  {12.9756, 80.2201},
	"Perungudi":  {12.9610, 80.2433},
	"Saidapet":   {13.0210, 80.2231},
	"Porur":      {13.0381, 80.1564},
	"Adyar":      {13.0067, 80.2565},
	"T Nagar":    {13.0418, 80.2341},
	"Anna Nagar": {13.0850, 80.2101},
	"Chrompet":   {12.9516, 80.1462},
	"Mylapore":   {13.0339, 80.2619},
}

func NewIndex(places map[string]Coordinates) *Index {
	idx := &Index{places: make(map[string]Coordinates, len(places))}
	for name, c := range places {
		idx.places[name] = c
	}
	return idx
}

// Default returns an index over the built-in gazetteer.
func Default() *Index {
	return NewIndex(defaultPlaces)
}

type gazetteerFile struct {
	Places []struct {
		Name string  `yaml:"name"`
		Lat  float64 `yaml:"lat"`
		Lon  float64 `yaml:"lon"`
	} `yaml:"places"`
}

// LoadTable reads a YAML gazetteer of the form
//
//	places:
//	  - name: Tambaram
//	    lat: 12.9249
//	    lon: 80.1
func LoadTable(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading gazetteer: %w", err)
	}

	var f gazetteerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing gazetteer: %w", err)
	}

	places := make(map[string]Coordinates, len(f.Places))
	for _, p := range f.Places {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("gazetteer entry without a name")
		}
		c := Coordinates{Latitude: p.Lat, Longitude: p.Lon}
		if !c.valid() {
			return nil, fmt.Errorf("gazetteer entry %q has out of range coordinates", name)
		}
		places[name] = c
	}
	return NewIndex(places), nil
}

func (i *Index) Len() int {
	return len(i.places)
}

// Resolve returns the coordinates for a label. An embedded "(lat, lon)"
// suffix wins over the table; table lookups are exact and case-sensitive.
func (i *Index) Resolve(label string) (Coordinates, bool) {
	if c, ok := ParseGPS(label); ok {
		return c, true
	}
	c, ok := i.places[strings.TrimSpace(label)]
	return c, ok
}

// DistanceKm returns the great-circle distance between two labels. ok is
// false when either side cannot be resolved.
func (i *Index) DistanceKm(a, b string) (float64, bool) {
	ca, ok := i.Resolve(a)
	if !ok {
		return 0, false
	}
	cb, ok := i.Resolve(b)
	if !ok {
		return 0, false
	}
	return Haversine(ca, cb), true
}

// Haversine returns the distance in km between two points, rounded to
// two decimals.
func Haversine(a, b Coordinates) float64 {
	angle := s2.LatLngFromDegrees(a.Latitude, a.Longitude).Distance(s2.LatLngFromDegrees(b.Latitude, b.Longitude))
	return math.Round(angle.Radians()*EarthRadiusKm*100) / 100
}

// ParseGPS extracts the coordinates from a label like "Velachery (12.97, 80.22)".
func ParseGPS(label string) (Coordinates, bool) {
	open := strings.Index(label, "(")
	if open < 0 {
		return Coordinates{}, false
	}
	rest := label[open+1:]
	end := strings.Index(rest, ")")
	if end < 0 {
		return Coordinates{}, false
	}

	parts := strings.Split(rest[:end], ",")
	if len(parts) != 2 {
		return Coordinates{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinates{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinates{}, false
	}

	c := Coordinates{Latitude: lat, Longitude: lon}
	if !c.valid() {
		return Coordinates{}, false
	}
	return c, true
}

// StripGPS drops any parenthetical suffix for display.
func StripGPS(label string) string {
	if open := strings.Index(label, "("); open >= 0 {
		return strings.TrimSpace(label[:open])
	}
	return strings.TrimSpace(label)
}

func (c Coordinates) valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}
