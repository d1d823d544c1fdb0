// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/studentdiary/diary/internal/auth"
)

// MockUserLocker is a mock of auth.UserLocker.
type MockUserLocker struct {
	mock.Mock
}

// NewMockUserLocker creates a MockUserLocker whose expectations are
// asserted when the test ends.
func NewMockUserLocker(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockUserLocker {
	m := &MockUserLocker{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockUserLocker) Lock(ctx context.Context, key string) (func(), error) {
	ret := m.Called(ctx, key)
	unlock, _ := ret.Get(0).(func())
	return unlock, ret.Error(1)
}

var _ auth.UserLocker = (*MockUserLocker)(nil)
