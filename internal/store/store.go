package store

import (
	"context"
	"errors"

	"github.com/nhle/bikerent/internal/model"
)

// ErrNoProfile is returned when no profile has been cached.
var ErrNoProfile = errors.New("no cached profile")

// ProfileCache persists the signed-in user between runs. It is cleared
// whenever the session ends.
type ProfileCache interface {
	SaveProfile(ctx context.Context, p model.Profile) error
	GetProfile(ctx context.Context) (*model.Profile, error)
	ClearProfiles(ctx context.Context) error
}
