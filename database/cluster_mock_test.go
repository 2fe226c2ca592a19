package database

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// Mock cluster API
type MockClusterAPI struct {
	mock.Mock
}

func (m *MockClusterAPI) GetMapping(ctx context.Context, index string) ([]byte, error) {
	args := m.Called(ctx, index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockClusterAPI) CreateIndex(ctx context.Context, index string, body map[string]any) error {
	args := m.Called(ctx, index, body)
	return args.Error(0)
}

func (m *MockClusterAPI) DeleteIndex(ctx context.Context, index string) error {
	args := m.Called(ctx, index)
	return args.Error(0)
}

func (m *MockClusterAPI) PutMapping(ctx context.Context, index string, properties map[string]any) error {
	args := m.Called(ctx, index, properties)
	return args.Error(0)
}

func (m *MockClusterAPI) Reindex(ctx context.Context, source string, dest string, waitForCompletion bool, timeout time.Duration) error {
	args := m.Called(ctx, source, dest, waitForCompletion, timeout)
	return args.Error(0)
}

func (m *MockClusterAPI) UpdateAliases(ctx context.Context, actions []map[string]any) error {
	args := m.Called(ctx, actions)
	return args.Error(0)
}

func (m *MockClusterAPI) PutAlias(ctx context.Context, index string, name string) error {
	args := m.Called(ctx, index, name)
	return args.Error(0)
}

func (m *MockClusterAPI) IndexExists(ctx context.Context, index string) (bool, error) {
	args := m.Called(ctx, index)
	return args.Bool(0), args.Error(1)
}

func (m *MockClusterAPI) IndexDocument(ctx context.Context, index string, id string, doc any) error {
	args := m.Called(ctx, index, id, doc)
	return args.Error(0)
}

func (m *MockClusterAPI) UpdateDocument(ctx context.Context, index string, id string, partial any) error {
	args := m.Called(ctx, index, id, partial)
	return args.Error(0)
}

func (m *MockClusterAPI) Search(ctx context.Context, index string, body map[string]any) ([]byte, error) {
	args := m.Called(ctx, index, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockClusterAPI) Count(ctx context.Context, index string) (int64, error) {
	args := m.Called(ctx, index)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockClusterAPI) Refresh(ctx context.Context, index string) error {
	args := m.Called(ctx, index)
	return args.Error(0)
}
