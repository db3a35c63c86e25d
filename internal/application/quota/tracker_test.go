package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bryanwahyu/contract-shield/internal/application"
	domain "github.com/bryanwahyu/contract-shield/internal/domain/subscription"
	"github.com/bryanwahyu/contract-shield/internal/mock"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

var may20 = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

func newTracker(t *testing.T, credential string) (*Tracker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: may20}
	tr := NewTracker(nil, clock, nil)
	require.NoError(t, tr.SetCredential(context.Background(), credential))
	return tr, clock
}

func TestFreeTierQuota(t *testing.T) {
	tr, _ := newTracker(t, "sk-ant-api03-abcdefghijkl")
	ctx := context.Background()

	for i := range domain.FreeReviewsPerMonth {
		require.True(t, tr.CanReview(), "review %d", i+1)
		require.NoError(t, tr.IncrementReviews(ctx))
	}

	assert.False(t, tr.CanReview())
	assert.Equal(t, 0, tr.Remaining())
	assert.Equal(t, 3, tr.EffectiveUsed())
	assert.Equal(t, 3, tr.Profile().TotalReviews)
}

func TestCanReview_RequiresCredential(t *testing.T) {
	tr, _ := newTracker(t, "")
	assert.False(t, tr.CanReview())
	assert.False(t, tr.HasCredential())
	assert.Equal(t, domain.FreeReviewsPerMonth, tr.Remaining())

	require.NoError(t, tr.SetCredential(context.Background(), "   "))
	assert.False(t, tr.CanReview())
}

func TestLazyMonthlyReset(t *testing.T) {
	tr, clock := newTracker(t, "sk-ant-api03-abcdefghijkl")
	ctx := context.Background()

	for range domain.FreeReviewsPerMonth {
		require.NoError(t, tr.IncrementReviews(ctx))
	}
	require.False(t, tr.CanReview())

	clock.now = time.Date(2026, 6, 3, 9, 0, 0, 0, time.UTC)

	// reads see the new month before anything is written
	assert.Equal(t, 0, tr.EffectiveUsed())
	assert.True(t, tr.CanReview())
	assert.Equal(t, 3, tr.Profile().Subscription.ReviewsUsedThisMonth)

	require.NoError(t, tr.IncrementReviews(ctx))
	p := tr.Profile()
	assert.Equal(t, 1, p.Subscription.ReviewsUsedThisMonth)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), p.Subscription.MonthResetDate)
	assert.True(t, p.Subscription.MonthResetDate.After(clock.now))
	assert.Equal(t, 4, p.TotalReviews)
	assert.Equal(t, 2, tr.Remaining())
}

func TestResetBoundaryIsInclusive(t *testing.T) {
	tr, clock := newTracker(t, "sk-ant-api03-abcdefghijkl")
	require.NoError(t, tr.IncrementReviews(context.Background()))

	clock.now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, tr.EffectiveUsed())
}

func TestDecemberRollsIntoJanuary(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)}
	tr := NewTracker(nil, clock, nil)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), tr.Profile().Subscription.MonthResetDate)
}

func TestProIsUnlimited(t *testing.T) {
	tr, clock := newTracker(t, "")
	ctx := context.Background()

	require.NoError(t, tr.UpgradeToPro(ctx))
	p := tr.Profile()
	assert.Equal(t, domain.TierPro, p.Subscription.Tier)
	require.NotNil(t, p.Subscription.SubscribedAt)
	assert.Equal(t, may20, *p.Subscription.SubscribedAt)

	assert.True(t, tr.CanReview())
	assert.Equal(t, domain.Unlimited, tr.Remaining())
	for range 10 {
		require.NoError(t, tr.IncrementReviews(ctx))
	}
	assert.True(t, tr.CanReview())

	// a second upgrade keeps the original timestamp
	clock.now = may20.Add(48 * time.Hour)
	require.NoError(t, tr.UpgradeToPro(ctx))
	assert.Equal(t, may20, *tr.Profile().Subscription.SubscribedAt)
}

func TestResetMonthlyCount(t *testing.T) {
	tr, _ := newTracker(t, "sk-ant-api03-abcdefghijkl")
	ctx := context.Background()
	for range domain.FreeReviewsPerMonth {
		require.NoError(t, tr.IncrementReviews(ctx))
	}

	require.NoError(t, tr.ResetMonthlyCount(ctx))
	p := tr.Profile()
	assert.Equal(t, 0, p.Subscription.ReviewsUsedThisMonth)
	assert.Equal(t, 3, p.TotalReviews)
	assert.True(t, tr.CanReview())
}

func TestSetProfile(t *testing.T) {
	tr, _ := newTracker(t, "")
	require.NoError(t, tr.SetProfile(context.Background(), "Ada", "ada@example.com"))
	p := tr.Profile()
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, may20, p.JoinedAt)
}

func TestProfileIsCopy(t *testing.T) {
	tr, _ := newTracker(t, "")
	require.NoError(t, tr.UpgradeToPro(context.Background()))

	p := tr.Profile()
	*p.Subscription.SubscribedAt = time.Time{}
	p.Name = "changed"

	assert.Equal(t, may20, *tr.Profile().Subscription.SubscribedAt)
	assert.Empty(t, tr.Profile().Name)
}

func TestLoad_CreatesProfileOnFirstRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock.NewMockProfileRepository(ctrl)

	repo.EXPECT().LoadProfile(gomock.Any()).Return(nil, nil)
	repo.EXPECT().SaveProfile(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p domain.Profile) error {
			assert.Equal(t, domain.TierFree, p.Subscription.Tier)
			assert.Equal(t, may20, p.JoinedAt)
			assert.Equal(t, domain.NextMonthStart(may20), p.Subscription.MonthResetDate)
			return nil
		})

	tr, err := Load(context.Background(), repo, application.ClockFunc(func() time.Time { return may20 }), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tr.Profile().TotalReviews)
}

func TestLoad_Saved(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock.NewMockProfileRepository(ctrl)

	saved := domain.NewProfile(may20.AddDate(0, -2, 0))
	saved.Name = "Ada"
	saved.TotalReviews = 9
	saved.Subscription.Tier = "gold"
	saved.Subscription.ReviewsUsedThisMonth = -4
	repo.EXPECT().LoadProfile(gomock.Any()).Return(&saved, nil)

	tr, err := Load(context.Background(), repo, &fakeClock{now: may20}, nil)
	require.NoError(t, err)
	p := tr.Profile()
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, 9, p.TotalReviews)
	assert.Equal(t, domain.TierFree, p.Subscription.Tier)
	assert.Equal(t, 0, p.Subscription.ReviewsUsedThisMonth)
}

func TestLoad_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock.NewMockProfileRepository(ctrl)
	repo.EXPECT().LoadProfile(gomock.Any()).Return(nil, errors.New("locked"))

	_, err := Load(context.Background(), repo, nil, nil)
	assert.ErrorContains(t, err, "load profile")
}

func TestPersistFailureLeavesStateUnchanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock.NewMockProfileRepository(ctrl)
	ctx := context.Background()

	tr := NewTracker(repo, &fakeClock{now: may20}, nil)
	repo.EXPECT().SaveProfile(gomock.Any(), gomock.Any()).Return(nil)
	require.NoError(t, tr.SetCredential(ctx, "sk-ant-api03-abcdefghijkl"))
	before := tr.Profile()

	repo.EXPECT().SaveProfile(gomock.Any(), gomock.Any()).Return(errors.New("read-only")).Times(3)
	assert.Error(t, tr.IncrementReviews(ctx))
	assert.Error(t, tr.UpgradeToPro(ctx))
	assert.Error(t, tr.SetCredential(ctx, ""))

	assert.Equal(t, before, tr.Profile())
	assert.True(t, tr.HasCredential())
}
