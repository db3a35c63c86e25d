package subscription

import "time"

// Tier enum
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

const (
	// FreeReviewsPerMonth is the monthly quota of the free tier.
	FreeReviewsPerMonth = 3

	// Unlimited is reported as the remaining count for tiers without a quota.
	Unlimited = -1
)

// Subscription value object
type Subscription struct {
	Tier                 Tier       `json:"tier"`
	ReviewsUsedThisMonth int        `json:"reviewsUsedThisMonth"`
	MonthResetDate       time.Time  `json:"monthResetDate"`
	SubscribedAt         *time.Time `json:"subscribedAt,omitempty"`
}

// Profile is the per-installation user record owned by the quota tracker.
type Profile struct {
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	JoinedAt     time.Time    `json:"joinedAt"`
	TotalReviews int          `json:"totalReviews"`
	Subscription Subscription `json:"subscription"`
	Credential   string       `json:"credential"`
}

// NextMonthStart returns the first instant of the calendar month after now,
// in now's location.
func NextMonthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
}

// NewProfile returns the profile created once per installation.
func NewProfile(now time.Time) Profile {
	return Profile{
		JoinedAt: now,
		Subscription: Subscription{
			Tier:           TierFree,
			MonthResetDate: NextMonthStart(now),
		},
	}
}
