package quota

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bryanwahyu/contract-shield/internal/application"
	domain "github.com/bryanwahyu/contract-shield/internal/domain/subscription"
	"github.com/bryanwahyu/contract-shield/internal/logger"
)

// Tracker owns the profile record and gates new analyses by tier.
//
// Month rollover is lazy: reads treat the used count as zero once the reset
// date has passed, and the next IncrementReviews performs the actual reset.
// Every mutation is written through to the repository before it becomes
// visible.
type Tracker struct {
	repo  domain.ProfileRepository
	clock application.Clock
	log   *logger.Logger

	mu      sync.Mutex
	profile domain.Profile
}

// NewTracker returns a tracker holding a fresh free-tier profile.
func NewTracker(repo domain.ProfileRepository, clock application.Clock, log *logger.Logger) *Tracker {
	if clock == nil {
		clock = application.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Tracker{
		repo:    repo,
		clock:   clock,
		log:     log,
		profile: domain.NewProfile(clock.Now()),
	}
}

// Load builds a tracker from the saved profile, creating and saving a fresh
// one on first run.
func Load(ctx context.Context, repo domain.ProfileRepository, clock application.Clock, log *logger.Logger) (*Tracker, error) {
	t := NewTracker(repo, clock, log)
	if repo == nil {
		return t, nil
	}
	p, err := repo.LoadProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if p == nil {
		if err := t.persist(ctx, t.profile); err != nil {
			return nil, err
		}
		t.log.Info().Msg("created new profile")
		return t, nil
	}
	if p.Subscription.Tier != domain.TierPro {
		p.Subscription.Tier = domain.TierFree
	}
	if p.Subscription.ReviewsUsedThisMonth < 0 {
		p.Subscription.ReviewsUsedThisMonth = 0
	}
	t.profile = *p
	return t, nil
}

// CanReview reports whether a new analysis is allowed right now.
func (t *Tracker) CanReview() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.profile.Subscription.Tier == domain.TierPro {
		return true
	}
	if strings.TrimSpace(t.profile.Credential) == "" {
		return false
	}
	return t.usedLocked() < domain.FreeReviewsPerMonth
}

// Remaining returns the reviews left this month, or domain.Unlimited.
func (t *Tracker) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.profile.Subscription.Tier == domain.TierPro {
		return domain.Unlimited
	}
	return max(0, domain.FreeReviewsPerMonth-t.usedLocked())
}

// IncrementReviews counts one completed analysis. The call that crosses the
// reset date also performs the reset.
func (t *Tracker) IncrementReviews(ctx context.Context) error {
	return t.update(ctx, func(p *domain.Profile, now time.Time) {
		p.TotalReviews++
		if !now.Before(p.Subscription.MonthResetDate) {
			p.Subscription.ReviewsUsedThisMonth = 1
			p.Subscription.MonthResetDate = domain.NextMonthStart(now)
			return
		}
		p.Subscription.ReviewsUsedThisMonth++
	})
}

// UpgradeToPro switches to the pro tier. There is no way back to free.
func (t *Tracker) UpgradeToPro(ctx context.Context) error {
	return t.update(ctx, func(p *domain.Profile, now time.Time) {
		if p.Subscription.Tier == domain.TierPro {
			return
		}
		p.Subscription.Tier = domain.TierPro
		p.Subscription.SubscribedAt = &now
	})
}

// ResetMonthlyCount zeroes the monthly count and starts a new period.
func (t *Tracker) ResetMonthlyCount(ctx context.Context) error {
	return t.update(ctx, func(p *domain.Profile, now time.Time) {
		p.Subscription.ReviewsUsedThisMonth = 0
		p.Subscription.MonthResetDate = domain.NextMonthStart(now)
	})
}

// SetProfile updates the display name and email.
func (t *Tracker) SetProfile(ctx context.Context, name, email string) error {
	return t.update(ctx, func(p *domain.Profile, _ time.Time) {
		p.Name = name
		p.Email = email
	})
}

// SetCredential stores the model credential verbatim. An empty value clears it.
func (t *Tracker) SetCredential(ctx context.Context, credential string) error {
	return t.update(ctx, func(p *domain.Profile, _ time.Time) {
		p.Credential = credential
	})
}

func (t *Tracker) HasCredential() bool {
	return strings.TrimSpace(t.Credential()) != ""
}

func (t *Tracker) Credential() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.profile.Credential
}

// Profile returns a copy of the profile.
func (t *Tracker) Profile() domain.Profile {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.profile
	if p.Subscription.SubscribedAt != nil {
		at := *p.Subscription.SubscribedAt
		p.Subscription.SubscribedAt = &at
	}
	return p
}

// EffectiveUsed returns the used count for the current month after the lazy
// reset rule is applied.
func (t *Tracker) EffectiveUsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usedLocked()
}

func (t *Tracker) usedLocked() int {
	if !t.clock.Now().Before(t.profile.Subscription.MonthResetDate) {
		return 0
	}
	return t.profile.Subscription.ReviewsUsedThisMonth
}

func (t *Tracker) update(ctx context.Context, fn func(p *domain.Profile, now time.Time)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.profile
	fn(&next, t.clock.Now())
	if err := t.persist(ctx, next); err != nil {
		return err
	}
	t.profile = next
	return nil
}

func (t *Tracker) persist(ctx context.Context, p domain.Profile) error {
	if t.repo == nil {
		return nil
	}
	if err := t.repo.SaveProfile(ctx, p); err != nil {
		t.log.Err(err).Str("func", "Tracker.persist").Msg("failed to save profile snapshot")
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}
