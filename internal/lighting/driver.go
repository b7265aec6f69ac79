package lighting

import (
	"context"
	"errors"
	"fmt"

	"vocalights/internal/domain"
)

// ErrUnsupported is returned by drivers for commands their hardware cannot
// carry out.
var ErrUnsupported = errors.New("command not supported by backend")

// Driver translates structured commands into backend wire calls.
//
// Apply returns an error when the call as a whole failed (transport,
// authentication). Bridge-style backends additionally report a Status per
// device identifier so partial failures are visible.
type Driver interface {
	Apply(ctx context.Context, ids []string, cmd domain.Command) ([]domain.Status, error)
	State(ctx context.Context, id string) (domain.DeviceState, error)
}

// statusError folds per-device statuses into a single error.
func statusError(statuses []domain.Status) error {
	var errs []error
	for _, s := range statuses {
		if !s.OK {
			errs = append(errs, fmt.Errorf("%s: %s", s.ID, s.Detail))
		}
	}
	return errors.Join(errs...)
}
