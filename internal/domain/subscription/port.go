package subscription

import "context"

//go:generate mockgen -source=port.go -destination=../../mock/profile_repo_mock.go -package=mock

// ProfileRepository port (persistence of the profile snapshot)
type ProfileRepository interface {
	// LoadProfile returns nil, nil when nothing has been saved yet.
	LoadProfile(ctx context.Context) (*Profile, error)
	SaveProfile(ctx context.Context, p Profile) error
}
