package nsg

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/nsgwatch/internal/logger"
	"github.com/yourusername/nsgwatch/internal/models"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Rules(ctx context.Context) ([]models.Rule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Rule), args.Error(1)
}

func smtpRule(name string, prefixes ...string) models.Rule {
	return models.Rule{
		Name:             name,
		Direction:        "Inbound",
		Protocol:         "Tcp",
		DestinationPorts: []string{"25"},
		SourcePrefixes:   prefixes,
	}
}

func fixtureRules() []models.Rule {
	return []models.Rule{
		smtpRule("GSUITE_Rule_1", "192.168.0.1/24"),
		smtpRule("GSUITE_Rule_2", "192.168.1.1/24"),
		smtpRule("O365_Rule_1", "192.168.2.1/24"),
		smtpRule("O365_Rule_2", "192.168.3.1/24"),
		smtpRule("Mimecast", "10.10.0.0/16"),
		{
			Name:             "O365_HTTPS",
			Direction:        "Inbound",
			DestinationPorts: []string{"443"},
			SourcePrefixes:   []string{"192.168.9.0/24"},
		},
	}
}

func newTestFetcher(source RuleSource) *Fetcher {
	quiet := logger.NewLogger(logger.Config{Level: logger.LevelFatal})
	c := DefaultClassifier()
	return NewFetcher(source, c, c.Providers(), "", quiet)
}

func TestFetcher_Fetch(t *testing.T) {
	source := new(mockSource)
	source.On("Rules", mock.Anything).Return(fixtureRules(), nil)

	result, err := newTestFetcher(source).Fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.NewCIDRSet("192.168.0.1/24", "192.168.1.1/24"), result["gsuite"])
	assert.Equal(t, models.NewCIDRSet("192.168.2.1/24", "192.168.3.1/24"), result["o365"])
	assert.Len(t, result, 2)
	source.AssertExpectations(t)
}

func TestFetcher_EmptyProvidersPresent(t *testing.T) {
	source := new(mockSource)
	source.On("Rules", mock.Anything).Return([]models.Rule{smtpRule("Mimecast", "10.0.0.0/8")}, nil)

	result, err := newTestFetcher(source).Fetch(context.Background())

	require.NoError(t, err)
	require.Contains(t, result, "o365")
	require.Contains(t, result, "gsuite")
	assert.Empty(t, result["o365"])
	assert.Empty(t, result["gsuite"])
}

func TestFetcher_Filters(t *testing.T) {
	tests := []struct {
		name     string
		rule     models.Rule
		expected int
	}{
		{
			name:     "outbound rule ignored",
			rule:     models.Rule{Name: "o365-out", Direction: "Outbound", DestinationPorts: []string{"25"}, SourcePrefixes: []string{"1.1.1.1/32"}},
			expected: 0,
		},
		{
			name:     "missing direction treated as inbound",
			rule:     models.Rule{Name: "o365-any", DestinationPorts: []string{"25"}, SourcePrefixes: []string{"1.1.1.1/32"}},
			expected: 1,
		},
		{
			name:     "wildcard port does not match",
			rule:     models.Rule{Name: "o365-all", Direction: "Inbound", DestinationPorts: []string{"*"}, SourcePrefixes: []string{"1.1.1.1/32"}},
			expected: 0,
		},
		{
			name:     "port range does not match",
			rule:     models.Rule{Name: "o365-range", Direction: "Inbound", DestinationPorts: []string{"20-30"}, SourcePrefixes: []string{"1.1.1.1/32"}},
			expected: 0,
		},
		{
			name:     "port in list matches",
			rule:     models.Rule{Name: "o365-list", Direction: "Inbound", DestinationPorts: []string{"587", "25"}, SourcePrefixes: []string{"1.1.1.1/32", "2.2.2.2/32"}},
			expected: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := new(mockSource)
			source.On("Rules", mock.Anything).Return([]models.Rule{tt.rule}, nil)

			result, err := newTestFetcher(source).Fetch(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.expected, result["o365"].Len())
		})
	}
}

func TestFetcher_SourceError(t *testing.T) {
	source := new(mockSource)
	source.On("Rules", mock.Anything).Return(nil, errors.New("forbidden"))

	result, err := newTestFetcher(source).Fetch(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
	assert.Nil(t, result)
}

func TestFetcher_Classify(t *testing.T) {
	source := new(mockSource)
	source.On("Rules", mock.Anything).Return(fixtureRules(), nil)

	classified, err := newTestFetcher(source).Classify(context.Background())

	require.NoError(t, err)
	require.Len(t, classified, 5)
	assert.Equal(t, "Mimecast", classified[4].Name)
	assert.False(t, classified[4].Matched)
	assert.Equal(t, models.ProviderGSuite, classified[0].Provider)
}

func TestSubstringClassifier(t *testing.T) {
	c := DefaultClassifier()

	tests := []struct {
		name     string
		ruleName string
		expected models.Provider
		matched  bool
	}{
		{"upper case", "O365_Rule_1", models.ProviderO365, true},
		{"mixed case", "allow-GSuite-smtp", models.ProviderGSuite, true},
		{"gsuite checked first", "o365-and-gsuite", models.ProviderGSuite, true},
		{"no match", "Mimecast", models.Provider{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, ok := c.Classify(models.Rule{Name: tt.ruleName})
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.expected, provider)
		})
	}

	custom := NewSubstringClassifier(Match{Provider: models.ProviderGSuite, Substring: "GOOGLE"}, Match{Provider: models.ProviderO365, Substring: ""})
	provider, ok := custom.Classify(models.Rule{Name: "google-mx"})
	assert.True(t, ok)
	assert.Equal(t, models.ProviderGSuite, provider)
	assert.Len(t, custom.Providers(), 1)
}

func TestFetcher_NameWithBothProviders(t *testing.T) {
	source := new(mockSource)
	source.On("Rules", mock.Anything).Return([]models.Rule{
		smtpRule("Allow_O365_GSUITE_Relay", "10.1.0.0/24"),
		smtpRule("O365_Rule_1", "192.168.2.1/24"),
	}, nil)

	got, err := newTestFetcher(source).Fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"10.1.0.0/24"}, got[models.ProviderGSuite.Key].Sorted())
	assert.Equal(t, []string{"192.168.2.1/24"}, got[models.ProviderO365.Key].Sorted())
}
