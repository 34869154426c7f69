package seed

import (
	"context"
	"testing"

	"zeelink/internal/config"
	"zeelink/internal/models"
	"zeelink/internal/repository"
	"zeelink/internal/store"
	"zeelink/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newSeeder(t *testing.T) (*Seeder, *store.Store) {
	t.Helper()
	db := testutil.NewDB(t)
	deps := store.Deps{
		Identities: repository.NewIdentityRepository(db),
		Profiles:   repository.NewProfileRepository(db),
		Questions:  repository.NewQuestionRepository(db),
		Popups:     repository.NewPopupRepository(db),
		Restorer:   repository.NewSnapshotRestorer(db),
	}
	st, err := store.New(&config.Config{UIDPrefix: "022026", PublicBaseURL: "https://zeelink.site/p"}, deps)
	require.NoError(t, err)
	require.NoError(t, st.Init(context.Background()))
	t.Cleanup(st.Teardown)
	return NewSeeder(deps, st), st
}

func TestRun_SeedsEverything(t *testing.T) {
	s, st := newSeeder(t)
	ctx := context.Background()

	res, err := s.Run(ctx, Options{Questions: true, DemoProfile: true, Province: "เชียงใหม่", Simulated: 3, FastHash: true})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Questions)
	assert.Equal(t, 3, res.Simulated)
	require.NotNil(t, res.Demo)
	assert.Equal(t, "0220261", res.Demo.UID)

	questions := st.ListQuestions(false)
	require.Len(t, questions, 3)
	assert.Equal(t, int64(1254), questions[0].Votes)
	assert.Equal(t, int64(856), questions[1].Votes)
	assert.Equal(t, int64(500), questions[2].Votes)

	demo, err := st.ProfileByUsername(ctx, DemoUsername)
	require.NoError(t, err)
	assert.Equal(t, int64(25), demo.Likes)
	assert.Equal(t, "ภาคกลาง", demo.Location.Region)
	assert.True(t, demo.ShowOnExplore)

	assert.Len(t, st.ListVisibleProfiles(), 4)
}

func TestRun_Idempotent(t *testing.T) {
	s, st := newSeeder(t)
	ctx := context.Background()
	opts := Options{Questions: true, DemoProfile: true, FastHash: true}

	first, err := s.Run(ctx, opts)
	require.NoError(t, err)
	second, err := s.Run(ctx, opts)
	require.NoError(t, err)

	assert.Equal(t, 0, second.Questions)
	assert.Equal(t, first.Demo.ID, second.Demo.ID)
	assert.Len(t, st.ListQuestions(true), 3)
	assert.Len(t, st.ListVisibleProfiles(), 1)
}

func TestDemoProfile_CanSignIn(t *testing.T) {
	s, _ := newSeeder(t)
	ctx := context.Background()

	_, err := s.DemoProfile(ctx, true)
	require.NoError(t, err)

	identity, err := s.identities.GetByEmail(ctx, DemoEmail)
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, models.RoleUser, identity.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(DemoPassword)))
}

func TestRun_RejectsUnknownProvince(t *testing.T) {
	s, _ := newSeeder(t)
	_, err := s.Run(context.Background(), Options{Province: "Atlantis", Simulated: 2})
	assert.True(t, models.HasCode(err, models.CodeValidation), "got %v", err)
}
