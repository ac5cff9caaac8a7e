package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/asana/internal/app"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func dialHub(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readStatus(t *testing.T, conn *websocket.Conn) statusMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var msg statusMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	return msg
}

func waitClients(t *testing.T, hub *StatusHub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d, want %d", hub.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStatusHub_SendsLastStatusOnConnect(t *testing.T) {
	hub := NewStatusHub(quietLogger())
	hub.Broadcast(app.Exercise{Pose: "plank"})

	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn := dialHub(t, ts.URL)
	msg := readStatus(t, conn)
	if msg.Type != "status" || msg.Exercise.Pose != "plank" {
		t.Errorf("first message = %+v, want plank status", msg)
	}
}

func TestStatusHub_Broadcast(t *testing.T) {
	hub := NewStatusHub(quietLogger())
	ts := httptest.NewServer(hub)
	defer ts.Close()

	a := dialHub(t, ts.URL)
	b := dialHub(t, ts.URL)
	waitClients(t, hub, 2)

	hub.Broadcast(app.Exercise{Pose: "bridge", Running: true, SessionID: "s1"})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readStatus(t, conn)
		if msg.Exercise.SessionID != "s1" || !msg.Exercise.Running {
			t.Errorf("message = %+v, want running session s1", msg)
		}
	}
}

func TestStatusHub_ClientDisconnect(t *testing.T) {
	hub := NewStatusHub(quietLogger())
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn := dialHub(t, ts.URL)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)
}

func TestStatusHub_DropsSlowClient(t *testing.T) {
	hub := NewStatusHub(quietLogger())
	c := &hubClient{send: make(chan []byte, 1)}
	hub.clients[c] = struct{}{}

	hub.Broadcast(app.Exercise{Pose: "bridge"})
	hub.Broadcast(app.Exercise{Pose: "bridge"})

	if hub.Clients() != 0 {
		t.Errorf("Clients() = %d, want the slow client dropped", hub.Clients())
	}
	if _, ok := <-c.send; !ok {
		t.Error("queued message should still be readable")
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed")
	}
}

func TestStatusHub_Close(t *testing.T) {
	hub := NewStatusHub(quietLogger())
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn := dialHub(t, ts.URL)
	waitClients(t, hub, 1)

	hub.Close()
	waitClients(t, hub, 0)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to close")
	}
}
