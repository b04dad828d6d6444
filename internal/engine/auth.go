package engine

import "github.com/predix/prediction-engine/internal/model"

// Privileged roles. Every privileged operation runs one requireRole check
// against the Config record at its top, so the error behavior never
// diverges across operations.
type role int

const (
	roleOwner role = iota
	roleOperator
)

// requireRole returns ErrUnauthorized unless sender holds the role in cfg.
func requireRole(cfg *model.Config, sender string, r role) error {
	switch r {
	case roleOwner:
		if sender == cfg.OwnerAddr {
			return nil
		}
	case roleOperator:
		if sender == cfg.OperatorAddr {
			return nil
		}
	}
	return ErrUnauthorized
}
