package domain_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/questhold/questhold/internal/library/domain"
	"github.com/questhold/questhold/pkg/logger"
)

// MockMetadataProvider is a mock implementation of a metadata provider.
type MockMetadataProvider struct {
	mock.Mock
	name     string
	priority int
}

func newMockProvider(name string, priority int) *MockMetadataProvider {
	return &MockMetadataProvider{name: name, priority: priority}
}

func (m *MockMetadataProvider) Name() string  { return m.name }
func (m *MockMetadataProvider) Priority() int { return m.priority }

func (m *MockMetadataProvider) FetchMetadata(ctx context.Context, title string) (*domain.MetadataCandidate, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MetadataCandidate), args.Error(1)
}

// MockIdentityProvider also supports lookups by id.
type MockIdentityProvider struct {
	MockMetadataProvider
}

func (m *MockIdentityProvider) FetchByID(ctx context.Context, originalID string) (*domain.MetadataCandidate, error) {
	args := m.Called(ctx, originalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MetadataCandidate), args.Error(1)
}

// blockingProvider ignores its context until released.
type blockingProvider struct {
	release chan struct{}
}

func (p *blockingProvider) Name() string  { return "slow" }
func (p *blockingProvider) Priority() int { return 100 }
func (p *blockingProvider) FetchMetadata(context.Context, string) (*domain.MetadataCandidate, error) {
	<-p.release
	return &domain.MetadataCandidate{Title: "too late"}, nil
}

type MatcherTestSuite struct {
	suite.Suite

	ctx      context.Context
	registry *domain.ProviderRegistry
	matcher  *domain.Matcher
	library  *domain.Library
	outcomes map[string]domain.ProviderOutcome
}

func (suite *MatcherTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.registry = domain.NewProviderRegistry(logger.NewNoopLogger())

	var err error
	suite.matcher, err = domain.NewMatcher(suite.registry, domain.MatcherConfig{
		ProviderTimeout: 200 * time.Millisecond,
	}, logger.NewNoopLogger())
	suite.Require().NoError(err)

	suite.outcomes = map[string]domain.ProviderOutcome{}
	suite.matcher.SetObserver(func(provider string, outcome domain.ProviderOutcome) {
		suite.outcomes[provider] = outcome
	})
	suite.library = &domain.Library{ID: uuid.New(), Name: "PC"}
}

func (suite *MatcherTestSuite) TestMatch_FirstMatchByPriorityWins() {
	// Arrange
	low := newMockProvider("low", 1)
	high := newMockProvider("high", 10)
	suite.registry.Register(low)
	suite.registry.Register(high)

	release := time.Date(1998, 11, 19, 0, 0, 0, 0, time.UTC)
	high.On("FetchMetadata", mock.Anything, "Half-Life").Return(&domain.MetadataCandidate{
		OriginalID:     "hl1",
		Title:          "Half-Life",
		Description:    "Crowbars.",
		Release:        &release,
		CoverURLs:      []string{"https://img/cover.jpg", "https://img/cover2.jpg"},
		ScreenshotURLs: []string{"https://img/s1.jpg", "https://img/s1.jpg", "https://img/s2.jpg"},
		Developers:     []string{"Valve"},
	}, nil)

	// Act
	result, err := suite.matcher.Match(suite.ctx, "/games/Half-Life", suite.library)

	// Assert
	suite.Require().NoError(err)
	suite.Require().True(result.Matched())
	suite.Equal("high", result.Provider)
	suite.Equal([]string{"high"}, result.Consulted)

	game := result.Game
	suite.Equal("Half-Life", game.Title)
	suite.Equal("/games/Half-Life", game.Path)
	suite.Equal(suite.library.ID, *game.LibraryID)
	suite.Equal("hl1", game.ProviderIDs["high"])
	suite.Require().NotNil(game.CoverImage)
	suite.Equal("https://img/cover.jpg", game.CoverImage.OriginalURL)
	suite.Nil(game.HeaderImage)
	suite.Len(game.Images, 2)
	suite.Equal(domain.FieldSourcePlugin, game.FieldMetadata[domain.FieldTitle].Source.Type)
	suite.Equal("high", game.FieldMetadata[domain.FieldTitle].Source.PluginID)
	suite.Contains(game.FieldMetadata, domain.FieldDevelopers)
	suite.NotContains(game.FieldMetadata, domain.FieldPublishers)

	low.AssertNotCalled(suite.T(), "FetchMetadata", mock.Anything, mock.Anything)
	suite.Equal(domain.OutcomeMatched, suite.outcomes["high"])
}

func (suite *MatcherTestSuite) TestMatch_FailuresFallThrough() {
	// Arrange
	broken := newMockProvider("broken", 30)
	empty := newMockProvider("empty", 20)
	good := newMockProvider("good", 10)
	suite.registry.Register(broken)
	suite.registry.Register(empty)
	suite.registry.Register(good)

	broken.On("FetchMetadata", mock.Anything, "Portal").Return(nil, errors.New("boom"))
	empty.On("FetchMetadata", mock.Anything, "Portal").Return(nil, nil)
	good.On("FetchMetadata", mock.Anything, "Portal").Return(&domain.MetadataCandidate{Title: "Portal"}, nil)

	// Act
	result, err := suite.matcher.Match(suite.ctx, "/games/Portal", suite.library)

	// Assert
	suite.Require().NoError(err)
	suite.True(result.Matched())
	suite.Equal("good", result.Provider)
	suite.Equal([]string{"broken", "empty", "good"}, result.Consulted)
	suite.Equal(domain.OutcomeError, suite.outcomes["broken"])
	suite.Equal(domain.OutcomeNoMatch, suite.outcomes["empty"])
}

func (suite *MatcherTestSuite) TestMatch_NoProviderMatches() {
	// Arrange
	p := newMockProvider("p", 1)
	suite.registry.Register(p)
	p.On("FetchMetadata", mock.Anything, "Unknown").Return(nil, nil)

	// Act
	result, err := suite.matcher.Match(suite.ctx, "/games/Unknown", suite.library)

	// Assert
	suite.Require().NoError(err)
	suite.False(result.Matched())
	suite.Equal("Unknown", result.Title)
}

func (suite *MatcherTestSuite) TestMatch_NoProvidersRegistered() {
	result, err := suite.matcher.Match(suite.ctx, "/games/Anything", suite.library)

	suite.Require().NoError(err)
	suite.False(result.Matched())
	suite.Empty(result.Consulted)
}

func (suite *MatcherTestSuite) TestMatch_SlowProviderTimesOut() {
	// Arrange
	slow := &blockingProvider{release: make(chan struct{})}
	defer close(slow.release)
	fallback := newMockProvider("fallback", 1)
	suite.registry.Register(slow)
	suite.registry.Register(fallback)
	fallback.On("FetchMetadata", mock.Anything, "Myst").Return(&domain.MetadataCandidate{Title: "Myst"}, nil)

	// Act
	start := time.Now()
	result, err := suite.matcher.Match(suite.ctx, "/games/Myst", suite.library)

	// Assert
	suite.Require().NoError(err)
	suite.Less(time.Since(start), 2*time.Second)
	suite.Equal("fallback", result.Provider)
	suite.Equal(domain.OutcomeTimeout, suite.outcomes["slow"])
}

func (suite *MatcherTestSuite) TestMatch_CancelledContextIsAnError() {
	// Arrange
	p := newMockProvider("p", 1)
	suite.registry.Register(p)
	ctx, cancel := context.WithCancel(suite.ctx)
	p.On("FetchMetadata", mock.Anything, "Doom").Run(func(mock.Arguments) { cancel() }).Return(nil, context.Canceled)

	// Act
	result, err := suite.matcher.Match(ctx, "/games/Doom", suite.library)

	// Assert
	suite.ErrorIs(err, context.Canceled)
	suite.Nil(result)
}

func (suite *MatcherTestSuite) TestMatch_UsesTitleRegex() {
	// Arrange
	suite.Require().NoError(suite.matcher.Configure(domain.MatcherConfig{
		ExtractTitleUsingRegex: true,
		TitleRegex:             domain.DefaultTitleRegex,
	}))
	p := newMockProvider("p", 1)
	suite.registry.Register(p)
	p.On("FetchMetadata", mock.Anything, "Outcast").Return(&domain.MetadataCandidate{Title: "Outcast"}, nil)

	// Act
	result, err := suite.matcher.Match(suite.ctx, "/games/Outcast [GOG] [v1.1]", suite.library)

	// Assert
	suite.Require().NoError(err)
	suite.True(result.Matched())
	p.AssertExpectations(suite.T())
}

func (suite *MatcherTestSuite) TestConfigure_InvalidRegexKeepsPrevious() {
	err := suite.matcher.Configure(domain.MatcherConfig{ExtractTitleUsingRegex: true, TitleRegex: "("})

	suite.Error(err)
	suite.Equal("Game [x]", suite.matcher.LookupTitle("/games/Game [x]"))
}

func (suite *MatcherTestSuite) TestRematch_UsesKnownID() {
	// Arrange
	ip := &MockIdentityProvider{MockMetadataProvider: MockMetadataProvider{name: "igdb", priority: 5}}
	suite.registry.Register(ip)
	ip.On("FetchByID", mock.Anything, "1234").Return(&domain.MetadataCandidate{OriginalID: "1234", Title: "Fixed Title"}, nil)

	libID := suite.library.ID
	game := &domain.Game{
		ID:          uuid.New(),
		LibraryID:   &libID,
		Path:        "/games/Wrong Name",
		ProviderIDs: map[string]string{"igdb": "1234"},
	}

	// Act
	result, err := suite.matcher.Rematch(suite.ctx, game)

	// Assert
	suite.Require().NoError(err)
	suite.Equal("Fixed Title", result.Game.Title)
	ip.AssertNotCalled(suite.T(), "FetchMetadata", mock.Anything, mock.Anything)
}

func (suite *MatcherTestSuite) TestRematch_FallsBackToTitle() {
	// Arrange
	ip := &MockIdentityProvider{MockMetadataProvider: MockMetadataProvider{name: "igdb", priority: 5}}
	suite.registry.Register(ip)
	ip.On("FetchMetadata", mock.Anything, "Thief").Return(&domain.MetadataCandidate{Title: "Thief"}, nil)

	game := &domain.Game{ID: uuid.New(), Path: "/games/Thief"}

	// Act
	result, err := suite.matcher.Rematch(suite.ctx, game)

	// Assert
	suite.Require().NoError(err)
	suite.True(result.Matched())
	ip.AssertNotCalled(suite.T(), "FetchByID", mock.Anything, mock.Anything)
}

func TestMatcherSuite(t *testing.T) {
	suite.Run(t, new(MatcherTestSuite))
}

func TestProviderRegistry_OrderAndReplace(t *testing.T) {
	registry := domain.NewProviderRegistry(logger.NewNoopLogger())
	registry.Register(newMockProvider("b", 5))
	registry.Register(newMockProvider("a", 5))
	registry.Register(newMockProvider("c", 9))
	registry.Register(newMockProvider("b", 1))

	var names []string
	for _, p := range registry.Providers() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)

	assert.True(t, registry.Unregister("a"))
	assert.False(t, registry.Unregister("a"))
	assert.Len(t, registry.Providers(), 2)
}

func TestExtractTitle(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "Baldur's Gate.zip")
	assert.NoError(t, os.WriteFile(file, nil, 0644))
	versioned := filepath.Join(dir, "Game v1.2")
	assert.NoError(t, os.Mkdir(versioned, 0755))

	re := regexp.MustCompile(domain.DefaultTitleRegex)

	assert.Equal(t, "Baldur's Gate", domain.ExtractTitle(file, nil))
	assert.Equal(t, "Game v1.2", domain.ExtractTitle(versioned, nil))
	assert.Equal(t, "Outcast", domain.ExtractTitle(filepath.Join(dir, "Outcast [GOG]"), re))
	assert.Equal(t, "[Tagged]", domain.ExtractTitle(filepath.Join(dir, "[Tagged]"), re))
}
