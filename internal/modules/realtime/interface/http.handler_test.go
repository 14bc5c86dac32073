package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"careLinkWs/internal/modules/realtime/application/handler"
	"careLinkWs/internal/modules/realtime/application/port"
	"careLinkWs/internal/modules/realtime/application/usecase"
	"careLinkWs/internal/modules/realtime/domain"
	"careLinkWs/internal/modules/realtime/infrastructure"
	"careLinkWs/internal/shared/auth"
)

const (
	testSecret       = "test-secret"
	testServiceToken = "service-token"
)

type memoryAudit struct {
	mu      sync.Mutex
	entries []port.AuditEntry
}

func (a *memoryAudit) Record(_ context.Context, entry port.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *memoryAudit) Recent(_ context.Context, userID string, limit int) ([]port.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]port.AuditEntry, 0)
	for i := len(a.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if userID == "" || a.entries[i].UserID == userID {
			out = append(out, a.entries[i])
		}
	}
	return out, nil
}

type testServer struct {
	*httptest.Server
	sessions *usecase.SessionRegistry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hub := infrastructure.NewHub()
	registry := infrastructure.NewHandlerRegistry()
	sessions := usecase.NewSessionRegistry(context.Background(), hub, nil, usecase.SessionConfig{})
	broadcastUC := usecase.NewBroadcastUseCase(hub)
	audit := &memoryAudit{}

	inboundUC := usecase.NewInboundUseCase(sessions, broadcastUC)
	for _, h := range handler.All(inboundUC) {
		registry.Register(h)
	}

	e := echo.New()
	RegisterRoutes(e, RouteDeps{
		Hub:           hub,
		Sessions:      sessions,
		Connect:       usecase.NewConnectUseCase(auth.NewJWTValidator(testSecret), sessions),
		Messaging:     usecase.NewMessagingUseCase(sessions, infrastructure.NewLocalPublisher(registry), audit, broadcastUC),
		Notifications: usecase.NewNotificationsUseCase(sessions, audit),
		Audit:         usecase.NewAuditUseCase(audit),
		Events:        registry,
		ServiceToken:  testServiceToken,
	})

	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
		sessions.Close()
	})
	return &testServer{Server: srv, sessions: sessions}
}

func tokenFor(t *testing.T, name, role string) string {
	t.Helper()
	claims := auth.Claims{
		Name:  name,
		Roles: []string{role},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.ToLower(strings.ReplaceAll(name, " ", "-")),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	decoded := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestRESTRequiresToken(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, _ := srv.do(t, http.MethodGet, "/api/notifications", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp, _ = srv.do(t, http.MethodGet, "/api/notifications", "garbage", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", resp.StatusCode)
	}
	resp, _ = srv.do(t, http.MethodGet, "/api/notifications", tokenFor(t, "Visitor", "guest"), "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown role, got %d", resp.StatusCode)
	}
}

func TestRESTMessageFlowRaisesRecipientNotification(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	patient := tokenFor(t, "John Doe", "patient")
	doctor := tokenFor(t, "Dr. Smith", "doctor")

	resp, body := srv.do(t, http.MethodPost, "/api/messages", patient, `{"recipient":"Dr. Smith","content":"  Hello doctor  "}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", resp.StatusCode, body)
	}
	if body["content"] != "Hello doctor" {
		t.Fatalf("expected trimmed echo, got %v", body["content"])
	}

	resp, body = srv.do(t, http.MethodGet, "/api/notifications", doctor, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["unread"] != float64(1) {
		t.Fatalf("expected one unread notification, got %v", body)
	}
	items := body["items"].([]any)
	first := items[0].(map[string]any)
	if first["message"] != "New message from John Doe" {
		t.Fatalf("unexpected notification %v", first)
	}

	resp, body = srv.do(t, http.MethodGet, "/api/messages?with=John%20Doe", doctor, "")
	if resp.StatusCode != http.StatusOK || len(body["messages"].([]any)) != 1 {
		t.Fatalf("expected doctor to see the conversation, got %d %v", resp.StatusCode, body)
	}

	resp, body = srv.do(t, http.MethodPost, "/api/notifications/read-all", doctor, "")
	if resp.StatusCode != http.StatusOK || body["unread"] != float64(0) {
		t.Fatalf("expected no unread after read-all, got %d %v", resp.StatusCode, body)
	}
}

func TestRESTRejectsInvalidMessages(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	patient := tokenFor(t, "John Doe", "patient")

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{name: "blank content", body: `{"recipient":"Dr. Smith","content":"   "}`, status: http.StatusBadRequest},
		{name: "missing recipient", body: `{"content":"hi"}`, status: http.StatusBadRequest},
		{name: "outside directory", body: `{"recipient":"Jane Smith","content":"hi"}`, status: http.StatusForbidden},
		{name: "too long", body: `{"recipient":"Dr. Smith","content":"` + strings.Repeat("x", 4001) + `"}`, status: http.StatusBadRequest},
		{name: "not json", body: `{`, status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp, _ := srv.do(t, http.MethodPost, "/api/messages", patient, tc.body)
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, resp.StatusCode)
		}
	}
}

func TestRESTNotificationLifecycle(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	patient := tokenFor(t, "John Doe", "patient")

	event := `{"event":"appointmentReminder","userId":"John Doe","data":{"doctorName":"Dr. Smith","date":"2025-04-21","time":"10:00 AM"}}`
	resp, _ := srv.do(t, http.MethodPost, "/api/events", testServiceToken, event)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	_, body := srv.do(t, http.MethodGet, "/api/notifications", patient, "")
	items := body["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 notification, got %v", body)
	}
	item := items[0].(map[string]any)
	if item["type"] != "warning" || item["message"] != "Reminder: You have an appointment with Dr. Smith on 2025-04-21 at 10:00 AM" {
		t.Fatalf("unexpected notification %v", item)
	}
	id := int64(item["id"].(float64))
	path := "/api/notifications/" + jsonNumber(id)

	if resp, _ := srv.do(t, http.MethodPost, path+"/read", patient, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected mark read 200, got %d", resp.StatusCode)
	}
	if resp, _ := srv.do(t, http.MethodPost, "/api/notifications/999999/read", patient, ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", resp.StatusCode)
	}
	if resp, _ := srv.do(t, http.MethodPost, "/api/notifications/abc/read", patient, ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", resp.StatusCode)
	}
	if resp, body := srv.do(t, http.MethodDelete, path, patient, ""); resp.StatusCode != http.StatusOK || len(body["items"].([]any)) != 0 {
		t.Fatalf("expected removal, got %d %v", resp.StatusCode, body)
	}
	if resp, _ := srv.do(t, http.MethodDelete, path, patient, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("removing an absent id must be a no-op, got %d", resp.StatusCode)
	}
}

func TestEventsIngestAuthAndMalformed(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	cases := []struct {
		name   string
		token  string
		body   string
		status int
	}{
		{name: "no token", body: `{"event":"appointmentUpdate","data":{"message":"x"}}`, status: http.StatusUnauthorized},
		{name: "patient token", token: tokenFor(t, "John Doe", "patient"), body: `{"event":"appointmentUpdate","data":{"message":"x"}}`, status: http.StatusForbidden},
		{name: "admin token", token: tokenFor(t, "Admin", "admin"), body: `{"event":"appointmentUpdate","data":{"message":"x"}}`, status: http.StatusAccepted},
		{name: "malformed json", token: testServiceToken, body: `{"event":`, status: http.StatusBadRequest},
		{name: "unknown event", token: testServiceToken, body: `{"event":"explode","data":{}}`, status: http.StatusBadRequest},
		{name: "invalid payload", token: testServiceToken, body: `{"event":"appointmentUpdate","data":{}}`, status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp, _ := srv.do(t, http.MethodPost, "/api/events", tc.token, tc.body)
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, resp.StatusCode)
		}
	}
}

func TestAuditRequiresAdmin(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	patient := tokenFor(t, "John Doe", "patient")
	admin := tokenFor(t, "Admin", "admin")

	srv.do(t, http.MethodPost, "/api/messages", patient, `{"recipient":"Admin","content":"hi"}`)

	if resp, _ := srv.do(t, http.MethodGet, "/api/audit", patient, ""); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for patient, got %d", resp.StatusCode)
	}
	if resp, _ := srv.do(t, http.MethodGet, "/api/audit?limit=x", admin, ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
	resp, body := srv.do(t, http.MethodGet, "/api/audit?user=John%20Doe", admin, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	entries := body["entries"].([]any)
	if len(entries) != 1 || entries[0].(map[string]any)["action"] != usecase.AuditSendMessage {
		t.Fatalf("unexpected audit entries %v", entries)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, body := srv.do(t, http.MethodGet, "/healthz", "", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response %d %v", resp.StatusCode, body)
	}
}

func dial(t *testing.T, srv *testServer, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial: %v (status %d)", err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads envelopes until one matches topic and event.
func readUntil(t *testing.T, conn *websocket.Conn, topic, event string) domain.Envelope {
	t.Helper()
	return readMatching(t, conn, topic+"."+event, func(env domain.Envelope) bool {
		return env.Topic == topic && env.Event == event
	})
}

func readMatching(t *testing.T, conn *websocket.Conn, what string, match func(domain.Envelope) bool) domain.Envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var env domain.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %s: %v", what, err)
		}
		if match(env) {
			return env
		}
	}
}

func TestWebsocketRejectsBadToken(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestWebsocketConnectSnapshotAndMessaging(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	patient := dial(t, srv, tokenFor(t, "John Doe", "patient"))
	connected := readUntil(t, patient, domain.TopicSystem, domain.EventConnected)
	if connected.Target() != "John Doe" || connected.Metadata["sessionId"] == "" {
		t.Fatalf("unexpected connected envelope %+v", connected)
	}
	readUntil(t, patient, domain.TopicNotifications, domain.EventSnapshot)
	readUntil(t, patient, domain.TopicMessages, domain.EventConversation)

	doctor := dial(t, srv, tokenFor(t, "Dr. Smith", "doctor"))
	readUntil(t, doctor, domain.TopicSystem, domain.EventConnected)

	send := map[string]any{
		"action":  "sendMessage",
		"payload": map[string]string{"recipient": "Dr. Smith", "content": "Can we talk?"},
	}
	if err := patient.WriteJSON(send); err != nil {
		t.Fatalf("write: %v", err)
	}

	readMatching(t, doctor, "unread notification", func(env domain.Envelope) bool {
		data, ok := env.Data.(map[string]any)
		return env.Topic == domain.TopicNotifications && env.Event == domain.EventSnapshot && ok && data["unread"] == float64(1)
	})
	incoming := readUntil(t, doctor, domain.TopicMessages, domain.EventNewMessage).Data.(map[string]any)
	if incoming["with"] != "John Doe" {
		t.Fatalf("expected conversation with John Doe, got %v", incoming)
	}

	if err := patient.WriteJSON(map[string]any{"action": "sendMessage", "payload": map[string]string{"recipient": "Jane Smith", "content": "hi"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	errEnv := readUntil(t, patient, domain.TopicSystem, domain.EventError)
	if errEnv.Metadata["reason"] != "recipient not allowed" {
		t.Fatalf("unexpected error envelope %+v", errEnv)
	}

	if err := patient.WriteJSON(map[string]any{"action": "recipients", "payload": map[string]string{"search": "dr."}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	recipients := readUntil(t, patient, domain.TopicMessages, domain.EventRecipients).Data.(map[string]any)
	if got := recipients["recipients"].([]any); len(got) != 2 {
		t.Fatalf("expected two doctors, got %v", got)
	}

	if err := patient.WriteJSON(map[string]any{"action": "teleport"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if env := readUntil(t, patient, domain.TopicSystem, domain.EventError); env.Metadata["reason"] != "unsupported action" {
		t.Fatalf("unexpected error envelope %+v", env)
	}
}

func TestWebsocketReleasesSessionOnClose(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	conn := dial(t, srv, tokenFor(t, "Admin", "admin"))
	readUntil(t, conn, domain.TopicSystem, domain.EventConnected)
	if err := conn.WriteJSON(map[string]any{"action": "join", "payload": map[string]string{"userId": "Admin"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	joined := readUntil(t, conn, domain.TopicSystem, domain.EventJoined).Data.(map[string]any)
	if joined["userId"] != "Admin" || joined["role"] != "admin" {
		t.Fatalf("unexpected join ack %v", joined)
	}
	conn.Close()

	// the session is retained for gap recovery after the last consumer leaves
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := srv.sessions.Lookup("Admin"); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected retained session for Admin")
}

func jsonNumber(id int64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
