// Package profile resolves the display name a callee sees for an incoming
// caller.
package profile

import (
	"context"
	"errors"

	"github.com/dkeye/callmatch/internal/domain"
)

var ErrNotFound = errors.New("profile not found")

// Static serves names from a fixed map.
type Static map[domain.ParticipantID]string

func (s Static) DisplayName(_ context.Context, pid domain.ParticipantID) (string, error) {
	if name, ok := s[pid]; ok {
		return name, nil
	}
	return "", ErrNotFound
}
