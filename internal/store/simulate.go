package store

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"zeelink/internal/middleware"
	"zeelink/internal/models"
	"zeelink/internal/observability"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// MaxSimulated caps one SimulateProfiles call.
const MaxSimulated = 100

// unusablePassword is stored for simulated identities; it never matches a
// bcrypt comparison, so they cannot sign in.
const unusablePassword = "!"

const simulatedEmailDomain = "simulated.zeelink.local"

// SimulateProfiles fills province with count demo profiles, each owned by
// its own simulated identity and numbered in the bot UID sequence. Profiles
// created before a failure stay and are returned with the error.
func (s *Store) SimulateProfiles(ctx context.Context, actor *models.Identity, province string, count int) ([]*models.Profile, Outcome) {
	span, ctx := observability.NewSpan(ctx, "store.SimulateProfiles",
		attribute.String("province", province), attribute.Int("count", count))
	defer span.End()

	out, o := s.simulateProfiles(ctx, actor, province, count)
	span.SetError(o.Err)
	return out, record("simulate_profiles", o)
}

func (s *Store) simulateProfiles(ctx context.Context, actor *models.Identity, province string, count int) ([]*models.Profile, Outcome) {
	if err := requireAdmin(actor); err != nil {
		return nil, failed(err)
	}
	if count < 1 || count > MaxSimulated {
		return nil, failed(models.NewValidationError(fmt.Sprintf("Count must be between 1 and %d", MaxSimulated)))
	}
	prov, ok := s.dir.FindProvince(province)
	if !ok {
		return nil, failed(models.NewValidationError("Unknown province"))
	}
	region, _ := s.dir.RegionOf(prov.Name)

	unlock := s.locks.lock(seqBotKey)
	defer unlock()

	prefix, n, err := s.nextSeq(ctx, true)
	if err != nil {
		return nil, failed(err)
	}

	faker := gofakeit.New(0)
	created := make([]*models.Profile, 0, count)
	for i := 0; i < count; i++ {
		p, err := s.simulateOne(ctx, faker, prov.Name, region, prefix+strconv.Itoa(n+i))
		if err != nil {
			if len(created) == 0 {
				return nil, failed(err)
			}
			return created, Outcome{Applied: true, Persisted: true, Err: err}
		}
		created = append(created, p)
	}

	middleware.Logger.InfoContext(ctx, "profiles simulated",
		slog.String("province", prov.Name), slog.Int("count", len(created)), slog.String("by", actor.ID))
	return created, applied()
}

func (s *Store) simulateOne(ctx context.Context, faker *gofakeit.Faker, province, region, uid string) (*models.Profile, error) {
	identityID := uuid.NewString()
	first, last := faker.FirstName(), faker.LastName()
	name := first + " " + last[:1] + "."

	identity := &models.Identity{
		ID:           identityID,
		Email:        "sim-" + identityID + "@" + simulatedEmailDomain,
		Name:         name,
		PhotoURL:     "https://picsum.photos/seed/" + identityID + "/200",
		PasswordHash: unusablePassword,
		Role:         models.RoleUser,
	}
	if err := s.identities.Insert(ctx, identity); err != nil {
		return nil, wrapRemote("insert simulated identity", err)
	}

	loc := models.Location{Region: region, Province: province}
	if districts := s.dir.DistrictsOf(province); len(districts) > 0 {
		d := districts[faker.Number(0, len(districts)-1)]
		loc.District = d.Name
		if len(d.SubDistricts) > 0 {
			sd := d.SubDistricts[faker.Number(0, len(d.SubDistricts)-1)]
			loc.SubDistrict = sd.Name
			loc.PostalCode = sd.Zip
		}
	}

	p := &models.Profile{
		ID:            uuid.NewString(),
		IdentityID:    identityID,
		UID:           uid,
		DisplayName:   name,
		PhotoURL:      identity.PhotoURL,
		Bio:           "Simulated User",
		Tags:          models.StringList{},
		Location:      loc,
		ShowOnExplore: true,
		Likes:         int64(faker.Number(0, 49)),
		Theme:         models.DefaultTheme(),
		Links:         models.LinkList{},
		Simulated:     true,
	}

	// Usernames are random; a taken one is simply drawn again.
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		p.Username = "user_" + strings.ToLower(faker.LetterN(5)) + strconv.Itoa(faker.Number(10, 99))
		if err = s.profiles.Insert(ctx, p); err == nil || !models.HasCode(err, models.CodeConflict) {
			break
		}
	}
	if err != nil {
		_ = s.identities.Delete(ctx, identityID)
		return nil, wrapRemote("insert simulated profile", err)
	}

	s.putProfile(p.Clone())
	return p, nil
}
