// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/studentdiary/diary/internal/auth"
)

// MockResetNotifier is a mock of auth.ResetNotifier.
type MockResetNotifier struct {
	mock.Mock
}

// NewMockResetNotifier creates a MockResetNotifier whose expectations are
// asserted when the test ends.
func NewMockResetNotifier(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockResetNotifier {
	m := &MockResetNotifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockResetNotifier) NotifyPasswordReset(ctx context.Context, n auth.ResetNotification) error {
	ret := m.Called(ctx, n)
	return ret.Error(0)
}

var _ auth.ResetNotifier = (*MockResetNotifier)(nil)
