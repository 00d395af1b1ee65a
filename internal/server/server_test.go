package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/sonos-display-go/internal/auth"
	"github.com/strefethen/sonos-display-go/internal/config"
	"github.com/strefethen/sonos-display-go/internal/sonosapi"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type staticFetcher struct {
	payload *sonosapi.StatePayload
}

func (f staticFetcher) GetState(_ context.Context, _ string) (*sonosapi.StatePayload, error) {
	return f.payload, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		SonosRoom:            "Living Room",
		PollIntervalMs:       50,
		PushPollIntervalMs:   60000,
		PushTimeoutSec:       130,
		PollMaxBackoffMs:     1000,
		HistoryEnabled:       true,
		SQLiteDBPath:         filepath.Join(t.TempDir(), "display.db"),
		HistoryRetentionDays: 30,
		HistoryPruneSchedule: "@daily",
		AdminJWTSecret:       testSecret,
	}
}

func startApp(t *testing.T, cfg config.Config) (*App, *httptest.Server) {
	t.Helper()
	state := "PLAYING"
	fetcher := staticFetcher{payload: &sonosapi.StatePayload{
		PlaybackState: &state,
		CurrentTrack: sonosapi.TrackInfo{
			Type:     sonosapi.TrackTypeTrack,
			Title:    "Bohemian Rhapsody",
			Artist:   "Queen",
			Album:    "A Night at the Opera",
			Duration: 354,
		},
	}}

	app, err := New(cfg, Options{Logger: log.New(io.Discard, "", 0), Fetcher: fetcher})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	srv := httptest.NewServer(app.Handler)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("app did not stop")
		}
		app.Close()
	})
	return app, srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestApp_PollFeedsStatusAndHistory(t *testing.T) {
	_, srv := startApp(t, testConfig(t))

	require.Eventually(t, func() bool {
		var status struct {
			Status    string `json:"status"`
			TrackName string `json:"trackname"`
			Mode      string `json:"mode"`
		}
		getJSON(t, srv.URL+"/status", &status)
		return status.Status == "PLAYING" && status.TrackName == "Bohemian Rhapsody" && status.Mode == "poll"
	}, 2*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		var list struct {
			Data []map[string]any `json:"data"`
		}
		getJSON(t, srv.URL+"/history", &list)
		return len(list.Data) == 1
	}, 2*time.Second, 20*time.Millisecond)

	var health map[string]any
	code := getJSON(t, srv.URL+"/health", &health)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "healthy", health["history"])
	assert.Equal(t, "Living Room", health["room"])
}

func TestApp_WebhookTakesOver(t *testing.T) {
	app, srv := startApp(t, testConfig(t))

	body := `{"type":"transport-state","data":{"roomName":"Living Room","state":{"playbackState":"PLAYING","currentTrack":{"type":"track","title":"Heroes","artist":"David Bowie","album":"Heroes","duration":371}}}}`
	resp, err := http.Post(srv.URL+"/", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		snapshot := app.Engine().Snapshot()
		return snapshot.TrackName == "Heroes" && app.Engine().IsPushActive()
	}, 2*time.Second, 20*time.Millisecond)
}

func TestApp_OperatorRoutesRequireToken(t *testing.T) {
	app, srv := startApp(t, testConfig(t))

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/set-room", strings.NewReader("room=Kitchen"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Living Room", app.Engine().Room())

	token, err := auth.GenerateToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)
	req, err = http.NewRequest(http.MethodPost, srv.URL+"/set-room", strings.NewReader("room=Kitchen"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Kitchen", app.Engine().Room())
}

func TestApp_HistoryDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.HistoryEnabled = false
	_, srv := startApp(t, cfg)

	resp, err := http.Get(srv.URL + "/history")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var health map[string]any
	getJSON(t, srv.URL+"/health", &health)
	assert.Equal(t, "disabled", health["history"])
}

func TestNew_InvalidPruneSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.HistoryPruneSchedule = "whenever"

	_, err := New(cfg, Options{Logger: log.New(io.Discard, "", 0), Fetcher: staticFetcher{}})
	assert.Error(t, err)
}
