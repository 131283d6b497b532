// Package locations holds the catalog of monitored places. The built-in
// catalog covers the three Aragon provincial capitals; a YAML file can
// replace it.
package locations

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Location is a named monitoring point.
type Location struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// Catalog is an ordered, read-only set of locations with unique names.
type Catalog struct {
	list   []Location
	byName map[string]Location
}

type catalogFile struct {
	Locations []Location `yaml:"locations"`
}

// Default returns the built-in Aragon catalog.
func Default() *Catalog {
	c, _ := New([]Location{
		{Name: "Zaragoza", Lat: 41.6488, Lon: -0.8891},
		{Name: "Huesca", Lat: 42.1401, Lon: -0.4080},
		{Name: "Teruel", Lat: 40.3456, Lon: -1.1065},
	})
	return c
}

// New validates list and builds a catalog from it.
func New(list []Location) (*Catalog, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("locations: catalog is empty")
	}
	c := &Catalog{
		list:   make([]Location, 0, len(list)),
		byName: make(map[string]Location, len(list)),
	}
	for i, loc := range list {
		switch {
		case loc.Name == "":
			return nil, fmt.Errorf("locations: entry %d has no name", i)
		case loc.Lat < -90 || loc.Lat > 90:
			return nil, fmt.Errorf("locations: %s: latitude %v out of range", loc.Name, loc.Lat)
		case loc.Lon < -180 || loc.Lon > 180:
			return nil, fmt.Errorf("locations: %s: longitude %v out of range", loc.Name, loc.Lon)
		}
		if _, dup := c.byName[loc.Name]; dup {
			return nil, fmt.Errorf("locations: duplicate location %q", loc.Name)
		}
		c.byName[loc.Name] = loc
		c.list = append(c.list, loc)
	}
	return c, nil
}

// Load reads a catalog from a YAML file of the form
//
//	locations:
//	  - name: Zaragoza
//	    lat: 41.6488
//	    lon: -0.8891
//
// An empty path returns Default().
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("locations: read %s: %w", path, err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("locations: parse %s: %w", path, err)
	}
	return New(f.Locations)
}

// All returns the locations in catalog order.
func (c *Catalog) All() []Location {
	return append([]Location(nil), c.list...)
}

// Names returns the location names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.list))
	for i, l := range c.list {
		out[i] = l.Name
	}
	return out
}

func (c *Catalog) Lookup(name string) (Location, bool) {
	l, ok := c.byName[name]
	return l, ok
}
