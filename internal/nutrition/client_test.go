package nutrition

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_QueryAndAuthHeader(t *testing.T) {
	var gotPath, gotQuery, gotMax, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("query")
		gotMax = r.URL.Query().Get("maxResults")
		gotKey = r.Header.Get("X-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"foods":[{"id":"f1","name":"Lentil Soup","nutritionPerServing":[{"name":"Calories","amount":420,"unit":"kcal"}]}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	foods, err := c.Search(context.Background(), "lentil soup", 1)
	require.NoError(t, err)

	assert.Equal(t, "/foods/search", gotPath)
	assert.Equal(t, "lentil soup", gotQuery)
	assert.Equal(t, "1", gotMax)
	assert.Equal(t, "test-key", gotKey)

	require.Len(t, foods, 1)
	assert.Equal(t, "Lentil Soup", foods[0].Name)
	require.Len(t, foods[0].NutritionPerServing, 1)
	assert.InDelta(t, 420, foods[0].NutritionPerServing[0].Amount, 0.01)
}

func TestSearch_Non200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Search(context.Background(), "anything", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestSearch_NoKeySkipsHeader(t *testing.T) {
	var sawHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header["X-Api-Key"]
		w.Write([]byte(`{"foods":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	foods, err := c.Search(context.Background(), "x", 1)
	require.NoError(t, err)
	assert.Empty(t, foods)
	assert.False(t, sawHeader)
}
