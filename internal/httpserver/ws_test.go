package httpserver

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketPushesSnapshots(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(t)

	if code := doJSON(t, client, http.MethodPost, env.ts.URL+"/profile/name", map[string]string{"name": "PIA"}, nil); code != http.StatusOK {
		t.Fatal("set name failed")
	}

	dialer := websocket.Dialer{Jar: client.Jar, HandshakeTimeout: 5 * time.Second}
	wsURL := strings.Replace(env.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// Initial snapshot arrives immediately after the upgrade.
	var snap snapRes
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Phase != "ready" || snap.Progression.PlayerName != "PIA" {
		t.Fatalf("initial snapshot: %+v", snap)
	}

	// A round started over HTTP is pushed to the socket.
	if code := doJSON(t, client, http.MethodPost, env.ts.URL+"/game/new", nil, nil); code != http.StatusOK {
		t.Fatal("new round failed")
	}
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Session == nil || snap.Session.State != "playing" {
		t.Fatalf("pushed snapshot: %+v", snap)
	}
	if snap.Message != "Inserisci una lettera per iniziare." {
		t.Fatalf("pushed message = %q", snap.Message)
	}
}
