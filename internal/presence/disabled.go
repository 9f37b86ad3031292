package presence

import (
	"context"

	"commute/internal/types"
)

// Disabled is used when no Firebase database is configured.
type Disabled struct{}

func (Disabled) AreEnabled(context.Context, types.ID) bool { return false }

func (Disabled) Start(context.Context, Attributes, State) error { return ErrNotSupported }

func (Disabled) Update(context.Context, types.ID, State) error { return ErrNotSupported }

func (Disabled) End(context.Context, types.ID, State) error { return ErrNotSupported }
