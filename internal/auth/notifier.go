// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package auth

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ResetNotification carries a freshly issued reset token to its owner.
type ResetNotification struct {
	// ID identifies this delivery; duplicates with the same ID are the same notification.
	ID        ulid.ULID
	UserID    int64
	Username  string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// ResetNotifier delivers reset tokens (email, message queue, ...).
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, n ResetNotification) error
}

type discardNotifier struct{}

func (discardNotifier) NotifyPasswordReset(context.Context, ResetNotification) error { return nil }

// WriterNotifier writes reset notifications to an io.Writer.
// Intended for local development and the admin CLI.
type WriterNotifier struct {
	w io.Writer
}

// NewWriterNotifier creates a WriterNotifier writing to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// NotifyPasswordReset writes the token and its expiry.
func (n *WriterNotifier) NotifyPasswordReset(_ context.Context, rn ResetNotification) error {
	_, err := fmt.Fprintf(n.w, "password reset for %s <%s>\n  token:   %s\n  expires: %s\n  id:      %s\n",
		rn.Username, rn.Email, rn.Token, rn.ExpiresAt.Format(time.RFC3339), rn.ID)
	if err != nil {
		return oops.Code("NOTIFY_WRITE_FAILED").With("notification_id", rn.ID.String()).Wrap(err)
	}
	return nil
}
