// Package directory serves the static Thai administrative geography used by
// location pickers and map placement.
package directory

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"

	"zeelink/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed regions.yaml
var regionsYAML []byte

// Jitter is the width in degrees of the box a profile is scattered within
// around its province centroid.
const Jitter = 0.05

// Name of the secondary district every templated province carries.
const secondaryDistrict = "อำเภอเมืองรอง"

var postalCodeRegex = regexp.MustCompile(`^[0-9]{5}$`)

// SubDistrict is the smallest addressable unit and carries the postal code.
type SubDistrict struct {
	ID   int    `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Zip  string `yaml:"zip" json:"zip"`
}

// District groups sub-districts within a province.
type District struct {
	ID           int           `yaml:"id" json:"id"`
	Name         string        `yaml:"name" json:"name"`
	SubDistricts []SubDistrict `yaml:"sub_districts" json:"sub_districts"`
}

// Province carries its centroid and districts.
type Province struct {
	ID           int        `yaml:"id" json:"id"`
	Name         string     `yaml:"name" json:"name"`
	Lat          float64    `yaml:"lat" json:"lat"`
	Lng          float64    `yaml:"lng" json:"lng"`
	ZipPrefix    string     `yaml:"zip_prefix" json:"-"`
	CityDistrict string     `yaml:"city_district" json:"-"`
	Districts    []District `yaml:"districts" json:"districts"`
}

// Region is a top-level grouping of provinces.
type Region struct {
	ID        int        `yaml:"id" json:"id"`
	Name      string     `yaml:"name" json:"name"`
	Provinces []Province `yaml:"provinces" json:"provinces"`
}

type provinceEntry struct {
	province *Province
	region   string
}

// Directory is an immutable index over the region tree. It is safe for
// concurrent use; returned slices must not be modified.
type Directory struct {
	regions   []Region
	provinces map[string]provinceEntry
}

var loadDefault = sync.OnceValues(func() (*Directory, error) {
	return Load(regionsYAML)
})

// Default returns the directory built from the embedded data set.
func Default() *Directory {
	d, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("directory: embedded data: %v", err))
	}
	return d
}

// Load parses a YAML region tree.
func Load(data []byte) (*Directory, error) {
	var doc struct {
		Regions []Region `yaml:"regions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse regions: %w", err)
	}
	if len(doc.Regions) == 0 {
		return nil, fmt.Errorf("parse regions: no regions")
	}

	d := &Directory{regions: doc.Regions, provinces: make(map[string]provinceEntry)}
	for ri := range d.regions {
		region := &d.regions[ri]
		for pi := range region.Provinces {
			p := &region.Provinces[pi]
			if len(p.Districts) == 0 {
				p.Districts = standardDistricts(p)
			}
			if _, dup := d.provinces[p.Name]; dup {
				return nil, fmt.Errorf("parse regions: duplicate province %q", p.Name)
			}
			d.provinces[p.Name] = provinceEntry{province: p, region: region.Name}
		}
	}
	return d, nil
}

// standardDistricts builds the two-district layout used for provinces the
// data set does not list districts for.
func standardDistricts(p *Province) []District {
	city := p.CityDistrict
	if city == "" {
		city = "เมือง" + p.Name
	}
	return []District{
		{
			ID:   1,
			Name: city,
			SubDistricts: []SubDistrict{
				{ID: 1, Name: "ตำบลในเมือง", Zip: p.ZipPrefix + "000"},
				{ID: 2, Name: "ตำบลนอกเมือง", Zip: p.ZipPrefix + "001"},
			},
		},
		{
			ID:   2,
			Name: secondaryDistrict,
			SubDistricts: []SubDistrict{
				{ID: 3, Name: "ตำบลสุขใจ", Zip: p.ZipPrefix + "100"},
			},
		},
	}
}

// Regions returns the full region tree.
func (d *Directory) Regions() []Region {
	return d.regions
}

// FindProvince looks a province up by its Thai name.
func (d *Directory) FindProvince(name string) (*Province, bool) {
	e, ok := d.provinces[strings.TrimSpace(name)]
	if !ok {
		return nil, false
	}
	return e.province, true
}

// RegionOf returns the name of the region containing province.
func (d *Directory) RegionOf(province string) (string, bool) {
	e, ok := d.provinces[strings.TrimSpace(province)]
	return e.region, ok
}

// DistrictsOf lists the districts of province, or nil if it is unknown.
func (d *Directory) DistrictsOf(province string) []District {
	p, ok := d.FindProvince(province)
	if !ok {
		return nil
	}
	return p.Districts
}

// SubDistrictsOf lists the sub-districts of every district named district.
// District names such as the secondary district repeat across provinces, so
// callers that know the province should use SubDistrictsIn.
func (d *Directory) SubDistrictsOf(district string) []SubDistrict {
	district = strings.TrimSpace(district)
	var out []SubDistrict
	for ri := range d.regions {
		for pi := range d.regions[ri].Provinces {
			for _, dist := range d.regions[ri].Provinces[pi].Districts {
				if dist.Name == district {
					out = append(out, dist.SubDistricts...)
				}
			}
		}
	}
	return out
}

// SubDistrictsIn lists the sub-districts of district within province.
func (d *Directory) SubDistrictsIn(province, district string) []SubDistrict {
	dist, ok := d.findDistrict(province, district)
	if !ok {
		return nil
	}
	return dist.SubDistricts
}

func (d *Directory) findDistrict(province, district string) (*District, bool) {
	p, ok := d.FindProvince(province)
	if !ok {
		return nil, false
	}
	district = strings.TrimSpace(district)
	for i := range p.Districts {
		if p.Districts[i].Name == district {
			return &p.Districts[i], true
		}
	}
	return nil, false
}

// Place returns a map position for province: its centroid moved by up to
// half of Jitter on each axis.
func (d *Directory) Place(province string, rng *rand.Rand) (lat, lng float64, ok bool) {
	p, ok := d.FindProvince(province)
	if !ok {
		return 0, 0, false
	}
	if rng == nil {
		return p.Lat, p.Lng, true
	}
	return p.Lat + (rng.Float64()-0.5)*Jitter, p.Lng + (rng.Float64()-0.5)*Jitter, true
}

// Resolve checks loc against the directory and fills derived fields: the
// region always follows the province, and a blank postal code is taken from
// the sub-district. An empty province means no location.
func (d *Directory) Resolve(loc models.Location) (models.Location, error) {
	loc.Province = strings.TrimSpace(loc.Province)
	loc.District = strings.TrimSpace(loc.District)
	loc.SubDistrict = strings.TrimSpace(loc.SubDistrict)
	loc.PostalCode = strings.TrimSpace(loc.PostalCode)

	if loc.Province == "" {
		if loc.District != "" || loc.SubDistrict != "" {
			return loc, fmt.Errorf("province is required when a district is set")
		}
		loc.Region = ""
		return loc, nil
	}

	e, ok := d.provinces[loc.Province]
	if !ok {
		return loc, fmt.Errorf("unknown province %q", loc.Province)
	}
	loc.Region = e.region

	if loc.District == "" {
		if loc.SubDistrict != "" {
			return loc, fmt.Errorf("district is required when a sub-district is set")
		}
	} else {
		dist, ok := d.findDistrict(loc.Province, loc.District)
		if !ok {
			return loc, fmt.Errorf("district %q is not in %s", loc.District, loc.Province)
		}
		if loc.SubDistrict != "" {
			var sub *SubDistrict
			for i := range dist.SubDistricts {
				if dist.SubDistricts[i].Name == loc.SubDistrict {
					sub = &dist.SubDistricts[i]
					break
				}
			}
			if sub == nil {
				return loc, fmt.Errorf("sub-district %q is not in %s", loc.SubDistrict, loc.District)
			}
			if loc.PostalCode == "" {
				loc.PostalCode = sub.Zip
			}
		}
	}

	if loc.PostalCode != "" && !postalCodeRegex.MatchString(loc.PostalCode) {
		return loc, fmt.Errorf("postal code must be 5 digits")
	}
	return loc, nil
}
