// Package mocks provides testify mocks of the collaborator interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/upstream"
	"github.com/stretchr/testify/mock"
)

var (
	_ upstream.VideoPlatform = (*MockVideoPlatform)(nil)
	_ upstream.Researcher    = (*MockResearcher)(nil)
)

// MockVideoPlatform is a mock implementation of upstream.VideoPlatform interface.
type MockVideoPlatform struct {
	mock.Mock
}

func (m *MockVideoPlatform) ListIndexes(ctx context.Context, credential string) ([]upstream.Index, error) {
	args := m.Called(ctx, credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]upstream.Index), args.Error(1)
}

func (m *MockVideoPlatform) ListVideos(ctx context.Context, credential, indexID string) ([]upstream.Metadata, error) {
	args := m.Called(ctx, credential, indexID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]upstream.Metadata), args.Error(1)
}

func (m *MockVideoPlatform) FetchVideoMetadata(ctx context.Context, credential, indexID, videoID string) (*upstream.Metadata, error) {
	args := m.Called(ctx, credential, indexID, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*upstream.Metadata), args.Error(1)
}

func (m *MockVideoPlatform) AnalyzeItem(ctx context.Context, credential, videoID, prompt string) (string, error) {
	args := m.Called(ctx, credential, videoID, prompt)

	return args.String(0), args.Error(1)
}

// MockResearcher is a mock implementation of upstream.Researcher interface.
type MockResearcher struct {
	mock.Mock
}

func (m *MockResearcher) RunResearch(ctx context.Context, credential, query string, timeout time.Duration) (*upstream.ResearchResult, error) {
	args := m.Called(ctx, credential, query, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*upstream.ResearchResult), args.Error(1)
}

// StreamResearch replays the []string returned as the first mocked value
// through onDelta, then returns the mocked error.
func (m *MockResearcher) StreamResearch(ctx context.Context, credential, query string, timeout time.Duration, onDelta func(string) error) error {
	args := m.Called(ctx, credential, query, timeout)

	if deltas, ok := args.Get(0).([]string); ok {
		for _, delta := range deltas {
			if err := onDelta(delta); err != nil {
				return err
			}
		}
	}

	return args.Error(1)
}
