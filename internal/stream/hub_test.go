package stream

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/sonos-display-go/internal/display"
	"github.com/strefethen/sonos-display-go/internal/nowplaying"
	"github.com/strefethen/sonos-display-go/internal/sonosapi"
)

func setupHub(t *testing.T) (*Hub, *nowplaying.Engine, *display.DetailControls, string) {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)
	engine := nowplaying.New(nowplaying.Options{Room: "Living Room", Logger: quiet})
	detail := display.NewDetailControls(false, 0)
	hub := NewHub(engine, detail, quiet)

	router := chi.NewRouter()
	RegisterRoutes(router, hub)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return hub, engine, detail, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func playingUpdate(title string) nowplaying.Update {
	state := "PLAYING"
	return nowplaying.Update{
		Source: nowplaying.UpdateSourcePush,
		Payload: &sonosapi.StatePayload{
			PlaybackState: &state,
			CurrentTrack: sonosapi.TrackInfo{
				Type:   sonosapi.TrackTypeTrack,
				Title:  title,
				Artist: "Queen",
				Album:  "A Night at the Opera",
			},
		},
	}
}

func TestHub_SendsCurrentSnapshotOnConnect(t *testing.T) {
	hub, _, _, url := setupHub(t)
	conn := dial(t, url)

	msg := readMessage(t, conn)
	assert.Equal(t, "Living Room", msg.Snapshot.Room)
	assert.Equal(t, nowplaying.StatusUnknown, msg.Snapshot.Status)
	assert.False(t, msg.Display.Visible)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastsTrackChanges(t *testing.T) {
	hub, engine, _, url := setupHub(t)
	first := dial(t, url)
	second := dial(t, url)
	readMessage(t, first)
	readMessage(t, second)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	engine.Apply(context.Background(), playingUpdate("Bohemian Rhapsody"))

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		assert.True(t, msg.Change.IsNewTrack)
		assert.Equal(t, "Bohemian Rhapsody", msg.Snapshot.TrackName)
		assert.True(t, msg.Display.Visible)
		assert.True(t, msg.Display.IsNew)
		assert.Equal(t, "Queen • A Night at the Opera", msg.Display.DetailText)
	}

	// The one-shot flag belongs to the renderer pulling from the engine.
	assert.True(t, engine.IsTrackNew())
}

func TestHub_BroadcastsDetailChanges(t *testing.T) {
	hub, _, detail, url := setupHub(t)
	conn := dial(t, url)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	detail.SetDetail(true, 0)

	msg := readMessage(t, conn)
	assert.True(t, msg.Display.ShowDetails)
	assert.False(t, msg.Change.IsNewTrack)
}

func TestHub_RemovesDisconnectedClients(t *testing.T) {
	hub, _, _, url := setupHub(t)
	conn := dial(t, url)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
