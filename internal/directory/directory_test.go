package directory

import (
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"zeelink/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_LoadsAllRegions(t *testing.T) {
	t.Parallel()
	d := Default()

	regions := d.Regions()
	require.Len(t, regions, 4)
	assert.Equal(t, "ภาคเหนือ", regions[0].Name)

	total := 0
	for _, r := range regions {
		total += len(r.Provinces)
	}
	assert.Equal(t, 65, total)
}

func TestFindProvince(t *testing.T) {
	t.Parallel()
	d := Default()

	p, ok := d.FindProvince(" เชียงใหม่ ")
	require.True(t, ok)
	assert.InDelta(t, 18.7932, p.Lat, 1e-9)
	assert.InDelta(t, 98.9867, p.Lng, 1e-9)
	require.Len(t, p.Districts, 2)
	assert.Equal(t, "เมืองเชียงใหม่", p.Districts[0].Name)

	_, ok = d.FindProvince("Atlantis")
	assert.False(t, ok)
}

func TestBangkokCityDistrict(t *testing.T) {
	t.Parallel()
	districts := Default().DistrictsOf("กรุงเทพมหานคร")
	require.Len(t, districts, 2)
	assert.Equal(t, "เมือง", districts[0].Name)
	assert.Equal(t, "10000", districts[0].SubDistricts[0].Zip)
}

func TestSubDistricts(t *testing.T) {
	t.Parallel()
	d := Default()

	subs := d.SubDistrictsOf("เมืองเชียงใหม่")
	require.Len(t, subs, 2)
	assert.Equal(t, "50000", subs[0].Zip)
	assert.Equal(t, "50001", subs[1].Zip)

	shared := d.SubDistrictsOf("อำเภอเมืองรอง")
	assert.Len(t, shared, 65, "the secondary district exists in every province")

	in := d.SubDistrictsIn("ภูเก็ต", "อำเภอเมืองรอง")
	require.Len(t, in, 1)
	assert.Equal(t, "83100", in[0].Zip)

	assert.Nil(t, d.SubDistrictsIn("ภูเก็ต", "เมืองเชียงใหม่"))
	assert.Nil(t, d.DistrictsOf("nowhere"))
}

func TestRegionOf(t *testing.T) {
	t.Parallel()
	region, ok := Default().RegionOf("ขอนแก่น")
	assert.True(t, ok)
	assert.Equal(t, "ภาคอีสาน", region)
}

func TestPlace_StaysWithinJitter(t *testing.T) {
	t.Parallel()
	d := Default()
	p, _ := d.FindProvince("ภูเก็ต")
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 200; i++ {
		lat, lng, ok := d.Place("ภูเก็ต", rng)
		require.True(t, ok)
		assert.LessOrEqual(t, math.Abs(lat-p.Lat), Jitter/2)
		assert.LessOrEqual(t, math.Abs(lng-p.Lng), Jitter/2)
	}

	lat, lng, ok := d.Place("ภูเก็ต", nil)
	assert.True(t, ok)
	assert.Equal(t, p.Lat, lat)
	assert.Equal(t, p.Lng, lng)

	_, _, ok = d.Place("nowhere", rng)
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	t.Parallel()
	d := Default()

	tests := []struct {
		name    string
		in      models.Location
		want    models.Location
		wantErr bool
	}{
		{
			name: "Fills Region And Postal Code",
			in:   models.Location{Province: "เชียงใหม่", District: "เมืองเชียงใหม่", SubDistrict: "ตำบลนอกเมือง"},
			want: models.Location{Region: "ภาคเหนือ", Province: "เชียงใหม่", District: "เมืองเชียงใหม่", SubDistrict: "ตำบลนอกเมือง", PostalCode: "50001"},
		},
		{
			name: "Keeps Explicit Postal Code",
			in:   models.Location{Province: "ภูเก็ต", District: "อำเภอเมืองรอง", SubDistrict: "ตำบลสุขใจ", PostalCode: "83110"},
			want: models.Location{Region: "ภาคใต้", Province: "ภูเก็ต", District: "อำเภอเมืองรอง", SubDistrict: "ตำบลสุขใจ", PostalCode: "83110"},
		},
		{
			name: "Overrides Wrong Region",
			in:   models.Location{Region: "ภาคใต้", Province: "น่าน"},
			want: models.Location{Region: "ภาคเหนือ", Province: "น่าน"},
		},
		{name: "Empty", in: models.Location{}, want: models.Location{}},
		{name: "Unknown Province", in: models.Location{Province: "Atlantis"}, wantErr: true},
		{name: "District In Other Province", in: models.Location{Province: "น่าน", District: "เมืองเชียงใหม่"}, wantErr: true},
		{name: "Unknown Sub-district", in: models.Location{Province: "น่าน", District: "เมืองน่าน", SubDistrict: "x"}, wantErr: true},
		{name: "Sub-district Without District", in: models.Location{Province: "น่าน", SubDistrict: "ตำบลในเมือง"}, wantErr: true},
		{name: "District Without Province", in: models.Location{District: "เมืองน่าน"}, wantErr: true},
		{name: "Bad Postal Code", in: models.Location{Province: "น่าน", PostalCode: "55-00"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Resolve(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	_, err := Load([]byte("regions: []"))
	assert.Error(t, err)

	_, err = Load([]byte("regions:\n  - name: a\n    provinces:\n      - {name: x}\n      - {name: x}\n"))
	assert.Error(t, err)

	_, err = Load([]byte("regions: ["))
	assert.Error(t, err)
}

func TestDefault_ConcurrentReads(t *testing.T) {
	t.Parallel()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := Default()
			_, _ = d.FindProvince("เลย")
			_ = d.SubDistrictsOf("เมืองเลย")
		}()
	}
	wg.Wait()
}
