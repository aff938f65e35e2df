package msgraph_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/Tiliavir/time-tracking-app/internal/msgraph"
)

func TestGetCalendarViewFollowsNextLink(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, `outlook.timezone="Europe/Berlin"`, r.Header.Get("Prefer"))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "":
			assert.Equal(t, "/me/calendarView", r.URL.Path)
			assert.Equal(t, "2026-02-27T00:00:00Z", r.URL.Query().Get("startDateTime"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"value":           []map[string]any{{"id": "a", "subject": "First"}},
				"@odata.nextLink": srv.URL + "/me/calendarView?page=2",
			})
		case "2":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"value": []map[string]any{{"id": "b", "subject": "Second"}},
			})
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	client := msgraph.NewClient(ctx,
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "secret", TokenType: "Bearer"}),
		msgraph.WithBaseURL(srv.URL),
	)

	from := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)
	events, err := client.GetCalendarView(ctx, from, from.AddDate(0, 0, 1), "Europe/Berlin")
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, "Second", events[1].Subject)
}

func TestGetCalendarViewReportsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"InvalidAuthenticationToken"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	ctx := context.Background()
	client := msgraph.NewClient(ctx,
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "expired"}),
		msgraph.WithBaseURL(srv.URL),
	)

	_, err := client.GetCalendarView(ctx, time.Now(), time.Now().Add(time.Hour), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "InvalidAuthenticationToken")
}
