package route

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePattern_Exact(t *testing.T) {
	m, err := CompilePattern("/api/v1/health")
	require.NoError(t, err)
	assert.Equal(t, "exact", m.Type())

	matched, _ := m.Match("/api/v1/health")
	assert.True(t, matched)

	matched, _ = m.Match("/api/v1/health/extra")
	assert.False(t, matched)
}

func TestCompilePattern_Template(t *testing.T) {
	m, err := CompilePattern("/api/v1/users/{userId}")
	require.NoError(t, err)
	assert.Equal(t, "template", m.Type())

	matched, params := m.Match("/api/v1/users/42")
	require.True(t, matched)
	assert.Equal(t, "42", params["userId"])

	// A path parameter never spans a slash.
	matched, _ = m.Match("/api/v1/users/42/bookings")
	assert.False(t, matched)

	matched, _ = m.Match("/api/v1/users/")
	assert.False(t, matched)
}

func TestCompilePattern_TemplateMultipleParams(t *testing.T) {
	m, err := CompilePattern("/api/v1/hotels/{hotelId}/rooms/{roomId}")
	require.NoError(t, err)

	matched, params := m.Match("/api/v1/hotels/h1/rooms/r9")
	require.True(t, matched)
	assert.Equal(t, "h1", params["hotelId"])
	assert.Equal(t, "r9", params["roomId"])
}

func TestCompilePattern_DeepWildcard(t *testing.T) {
	m, err := CompilePattern("/api/v1/flights/**")
	require.NoError(t, err)
	assert.Equal(t, "wildcard", m.Type())

	for _, path := range []string{
		"/api/v1/flights/",
		"/api/v1/flights/search",
		"/api/v1/flights/LHR/JFK/2026-09-01",
	} {
		matched, _ := m.Match(path)
		assert.True(t, matched, "path %s should match", path)
	}

	matched, _ := m.Match("/api/v1/hotels/search")
	assert.False(t, matched)
}

func TestCompilePattern_SingleSegmentWildcard(t *testing.T) {
	m, err := CompilePattern("/api/v1/cars/*/availability")
	require.NoError(t, err)

	matched, _ := m.Match("/api/v1/cars/c7/availability")
	assert.True(t, matched)

	matched, _ = m.Match("/api/v1/cars/c7/extra/availability")
	assert.False(t, matched)
}

func TestMethodMatcher(t *testing.T) {
	m := NewMethodMatcher([]string{"GET", "POST"})

	assert.True(t, m.Match(http.MethodGet))
	assert.True(t, m.Match(http.MethodPost))
	assert.True(t, m.Match("get"))
	assert.False(t, m.Match(http.MethodDelete))

	// HEAD rides on GET routes.
	assert.True(t, m.Match(http.MethodHead))

	wildcard := NewMethodMatcher([]string{"*"})
	assert.True(t, wildcard.Match(http.MethodPatch))
}

func TestSpecificity_Ordering(t *testing.T) {
	// Exact beats template beats wildcard; longer literals beat shorter.
	exact := specificity("/api/v1/flights/deals")
	template := specificity("/api/v1/flights/{flightId}")
	wildcard := specificity("/api/v1/flights/**")

	assert.Greater(t, exact, template)
	assert.Greater(t, template, wildcard)

	assert.Greater(t, specificity("/api/v1/flights/search/**"), specificity("/api/v1/flights/**"))
}
