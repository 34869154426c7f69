package server

import (
	"zeelink/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetRegions handles GET /api/directory/regions
func (s *Server) GetRegions(c *fiber.Ctx) error {
	return c.JSON(s.store.Directory().Regions())
}

// GetDistricts handles GET /api/directory/provinces/:province/districts
func (s *Server) GetDistricts(c *fiber.Ctx) error {
	province := param(c, "province")
	dir := s.store.Directory()
	if _, ok := dir.FindProvince(province); !ok {
		return respondError(c, models.NewNotFoundError("Province", province))
	}
	return c.JSON(dir.DistrictsOf(province))
}

// GetSubDistricts handles GET /api/directory/provinces/:province/districts/:district/subdistricts
func (s *Server) GetSubDistricts(c *fiber.Ctx) error {
	province, district := param(c, "province"), param(c, "district")
	subs := s.store.Directory().SubDistrictsIn(province, district)
	if subs == nil {
		return respondError(c, models.NewNotFoundError("District", district))
	}
	return c.JSON(subs)
}

// GetThemes handles GET /api/themes
func (s *Server) GetThemes(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"presets": models.ThemePresets(),
		"fonts":   models.Fonts,
		"tags":    models.AvailableTags,
	})
}
