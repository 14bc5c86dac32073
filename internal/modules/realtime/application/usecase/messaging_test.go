package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	messaging "careLinkWs/internal/modules/messaging/domain"
	notifications "careLinkWs/internal/modules/notifications/domain"
	"careLinkWs/internal/modules/realtime/domain"
	"careLinkWs/internal/shared/auth"
)

type fixture struct {
	broadcaster   *recordingBroadcaster
	publisher     *recordingPublisher
	audit         *recordingAudit
	sessions      *SessionRegistry
	messaging     *MessagingUseCase
	inbound       *InboundUseCase
	notifications *NotificationsUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		broadcaster: &recordingBroadcaster{},
		publisher:   &recordingPublisher{},
		audit:       &recordingAudit{},
	}
	f.sessions = NewSessionRegistry(context.Background(), f.broadcaster, nil, SessionConfig{})
	t.Cleanup(f.sessions.Close)
	broadcast := NewBroadcastUseCase(f.broadcaster)
	f.messaging = NewMessagingUseCase(f.sessions, f.publisher, f.audit, broadcast)
	f.inbound = NewInboundUseCase(f.sessions, broadcast)
	f.notifications = NewNotificationsUseCase(f.sessions, f.audit)
	return f
}

var (
	patient = Caller{UserID: "John Doe", Role: messaging.RolePatient}
	doctor  = Caller{UserID: "Dr. Smith", Role: messaging.RoleDoctor}
	admin   = Caller{UserID: "Admin", Role: messaging.RoleAdmin}
)

func TestMessagingSendPublishesToRecipient(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	msg, err := f.messaging.Send(context.Background(), patient, "Dr. Smith", "  Can we move my appointment?  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Sender != "John Doe" || msg.Content != "Can we move my appointment?" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if len(f.publisher.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(f.publisher.events))
	}
	event := f.publisher.events[0]
	if event.Event != domain.EventNewMessage || event.UserID != "Dr. Smith" {
		t.Fatalf("unexpected event %+v", event)
	}
	var payload domain.NewMessagePayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ID != msg.ID || payload.Recipient != "Dr. Smith" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if got := f.audit.actions(); len(got) != 1 || got[0] != AuditSendMessage {
		t.Fatalf("unexpected audit trail %v", got)
	}
}

func TestMessagingSendRejectsInvalidInputWithoutSideEffects(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	cases := []struct {
		recipient, content string
		want               error
	}{
		{"Dr. Smith", "   ", messaging.ErrEmptyContent},
		{"", "hello", messaging.ErrMissingRecipient},
		{"Jane Smith", "hello", messaging.ErrRecipientNotAllowed},
	}
	for _, tc := range cases {
		if _, err := f.messaging.Send(context.Background(), patient, tc.recipient, tc.content); !errors.Is(err, tc.want) {
			t.Fatalf("expected %v, got %v", tc.want, err)
		}
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("expected nothing published, got %d", len(f.publisher.events))
	}
	session, _ := f.sessions.Lookup("John Doe")
	if got := len(session.Channel().Messages()); got != 0 {
		t.Fatalf("expected no stored messages, got %d", got)
	}
	if len(f.audit.actions()) != 0 {
		t.Fatalf("expected no audit entries, got %v", f.audit.actions())
	}
}

func TestMessagingSendKeepsLocalEchoWhenPublishFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.publisher.err = errors.New("broker unavailable")

	_, err := f.messaging.Send(context.Background(), patient, "Admin", "hello")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if got := f.messaging.Conversation(patient, "Admin"); len(got.Messages) != 1 {
		t.Fatalf("expected local echo to be kept, got %d messages", len(got.Messages))
	}
}

func TestInboundDeliverMessageNotifiesRecipient(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	payload := domain.NewMessagePayload{ID: 99, Sender: "John Doe", Recipient: "Dr. Smith", Content: "hello"}
	if err := f.inbound.DeliverMessage(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.inbound.DeliverMessage(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error on duplicate: %v", err)
	}

	session, ok := f.sessions.Lookup("Dr. Smith")
	if !ok {
		t.Fatal("expected recipient session to be retained")
	}
	items := session.Store().List()
	if len(items) != 1 || items[0].Message != "New message from John Doe" || items[0].Type != notifications.TypeInfo {
		t.Fatalf("unexpected notifications %+v", items)
	}
	if session.Channel().UnreadCount() != 1 {
		t.Fatalf("expected panel unread 1, got %d", session.Channel().UnreadCount())
	}
	if got := f.broadcaster.forTarget("Dr. Smith", domain.EventNewMessage); len(got) != 2 {
		t.Fatalf("expected newMessage pushes, got %d", len(got))
	}

	// the doctor may now answer the patient who wrote first
	recipients := f.messaging.Recipients(doctor, "john")
	if len(recipients.Recipients) != 1 || recipients.Recipients[0] != "John Doe" {
		t.Fatalf("unexpected recipients %v", recipients.Recipients)
	}
}

func TestInboundDeliverMessageWithoutIDKeepsEveryMessage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, content := range []string{"Your results are in", "Please call the front desk"} {
		payload := domain.NewMessagePayload{Sender: "Dr. Smith", Recipient: "John Doe", Content: content}
		if err := f.inbound.DeliverMessage(context.Background(), payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	session, ok := f.sessions.Lookup("John Doe")
	if !ok {
		t.Fatal("expected recipient session")
	}
	stored := session.Channel().Messages()
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(stored))
	}
	if stored[0].ID == 0 || stored[1].ID <= stored[0].ID {
		t.Fatalf("expected increasing assigned ids, got %d and %d", stored[0].ID, stored[1].ID)
	}
	if got := session.Store().Len(); got != 2 {
		t.Fatalf("expected 2 notifications, got %d", got)
	}
	pushed := f.broadcaster.forTarget("John Doe", domain.EventNewMessage)
	if len(pushed) != 2 {
		t.Fatalf("expected 2 newMessage pushes, got %d", len(pushed))
	}
	if last := pushed[1].Data.(domain.ConversationSnapshot); last.Messages[0].ID != stored[1].ID {
		t.Fatalf("expected pushed message to carry the assigned id, got %+v", last.Messages[0])
	}
}

func TestSelectRecipientMarksEveryConversationRead(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_ = f.inbound.DeliverMessage(context.Background(), domain.NewMessagePayload{ID: 1, Sender: "John Doe", Recipient: "Dr. Smith", Content: "a"})
	_ = f.inbound.DeliverMessage(context.Background(), domain.NewMessagePayload{ID: 2, Sender: "Admin", Recipient: "Dr. Smith", Content: "b"})

	snapshot := f.messaging.SelectRecipient(context.Background(), doctor, "Admin")
	if snapshot.With != "Admin" || len(snapshot.Messages) != 1 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if snapshot.Unread != 0 {
		t.Fatalf("expected unread 0, got %d", snapshot.Unread)
	}
	other := f.messaging.Conversation(doctor, "John Doe")
	if len(other.Messages) != 1 || !other.Messages[0].Read {
		t.Fatalf("expected other conversation to be read as well, got %+v", other.Messages)
	}
	if got := f.broadcaster.forTarget("Dr. Smith", domain.EventConversation); len(got) != 1 {
		t.Fatalf("expected conversation push, got %d", len(got))
	}
}

func TestInboundNotifyFansOutWithoutTarget(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.sessions.Acquire("John Doe", messaging.RolePatient)
	f.sessions.Acquire("Jane Smith", messaging.RolePatient)

	f.inbound.AppointmentUpdate(context.Background(), "", domain.AppointmentUpdatePayload{Message: "Clinic closes early today"})
	f.inbound.AppointmentReminder(context.Background(), "Jane Smith", domain.AppointmentReminderPayload{DoctorName: "Dr. Johnson", Date: "2023-04-21", Time: "2:30 PM"})
	f.inbound.NewNotification(context.Background(), "John Doe", domain.NewNotificationPayload{Message: "Lab results ready", Type: "success", Timestamp: "2023-04-20 10:00:00"})

	john, _ := f.sessions.Lookup("John Doe")
	jane, _ := f.sessions.Lookup("Jane Smith")
	if john.Store().Len() != 2 || jane.Store().Len() != 2 {
		t.Fatalf("unexpected counts john=%d jane=%d", john.Store().Len(), jane.Store().Len())
	}
	latest := jane.Store().List()[0]
	if latest.Type != notifications.TypeWarning || latest.Message != "Reminder: You have an appointment with Dr. Johnson on 2023-04-21 at 2:30 PM" {
		t.Fatalf("unexpected reminder %+v", latest)
	}
	lab := john.Store().List()[0]
	if lab.Type != notifications.TypeSuccess || lab.Timestamp != "2023-04-20 10:00:00" {
		t.Fatalf("unexpected notification %+v", lab)
	}
	if update := john.Store().List()[1]; update.Message != "Appointment update: Clinic closes early today" {
		t.Fatalf("unexpected update %+v", update)
	}
}

func TestInboundNewNotificationParsesTypeCaseInsensitively(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want notifications.Type
	}{
		{raw: "Warning", want: notifications.TypeWarning},
		{raw: "SUCCESS", want: notifications.TypeSuccess},
		{raw: " error ", want: notifications.TypeError},
		{raw: "fatal", want: notifications.TypeInfo},
		{raw: "", want: notifications.TypeInfo},
	}
	for _, tt := range tests {
		f := newFixture(t)
		f.inbound.NewNotification(context.Background(), "John Doe", domain.NewNotificationPayload{Message: "Lab results ready", Type: tt.raw})
		john, ok := f.sessions.Lookup("John Doe")
		if !ok || john.Store().Len() != 1 {
			t.Fatalf("type %q: expected one stored notification", tt.raw)
		}
		if got := john.Store().List()[0].Type; got != tt.want {
			t.Fatalf("type %q: expected %s, got %s", tt.raw, tt.want, got)
		}
	}
}

func TestNotificationsUseCase(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	store := f.sessions.Acquire("John Doe", messaging.RolePatient).Store()
	first := store.Add(notifications.Input{Message: "one"})
	store.Add(notifications.Input{Message: "two"})

	if _, err := f.notifications.MarkRead(context.Background(), patient, 12345); !errors.Is(err, notifications.ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
	snapshot, err := f.notifications.MarkRead(context.Background(), patient, first.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Unread != 1 {
		t.Fatalf("expected 1 unread, got %d", snapshot.Unread)
	}

	if got := f.notifications.Remove(context.Background(), patient, 12345); len(got.Items) != 2 {
		t.Fatalf("removing an unknown id must be a no-op, got %d items", len(got.Items))
	}
	if got := f.notifications.Remove(context.Background(), patient, first.ID); len(got.Items) != 1 {
		t.Fatalf("expected 1 item after remove, got %d", len(got.Items))
	}
	if got := f.notifications.MarkAllRead(context.Background(), patient); got.Unread != 0 {
		t.Fatalf("expected no unread, got %d", got.Unread)
	}
	want := []string{AuditMarkRead, AuditRemoveNotification, AuditMarkAllRead}
	got := f.audit.actions()
	if len(got) != len(want) {
		t.Fatalf("expected audit %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected audit %v, got %v", want, got)
		}
	}
}

func TestAuditUseCaseRequiresAdmin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, _ = f.messaging.Send(context.Background(), patient, "Admin", "hi")
	uc := NewAuditUseCase(f.audit)

	if _, err := uc.Recent(context.Background(), doctor, "", 10); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	entries, err := uc.Recent(context.Background(), admin, "John Doe", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != AuditSendMessage {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestConnectUseCase(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	validator := stubValidator{claims: map[string]*auth.Claims{
		"doctor-token": {Name: "Dr. Smith", Roles: []string{"Doctor"}, SessionID: "s-1", RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1"}},
		"no-role":      {Name: "Ghost", Roles: []string{"owner"}, SessionID: "s-2", RegisteredClaims: jwt.RegisteredClaims{Subject: "u-2"}},
	}}
	uc := NewConnectUseCase(validator, f.sessions)

	if _, err := uc.Execute(context.Background(), ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := uc.Execute(context.Background(), "bogus"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := uc.Execute(context.Background(), "no-role"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}

	_ = f.inbound.DeliverMessage(context.Background(), domain.NewMessagePayload{ID: 5, Sender: "Admin", Recipient: "Dr. Smith", Content: "hello"})

	out, err := uc.Execute(context.Background(), "doctor-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Caller.UserID != "Dr. Smith" || out.Caller.Role != messaging.RoleDoctor {
		t.Fatalf("unexpected caller %+v", out.Caller)
	}
	if out.Notifications.Unread != 1 {
		t.Fatalf("expected retained notification in snapshot, got %d unread", out.Notifications.Unread)
	}
	if out.Conversation.Unread != 1 {
		t.Fatalf("expected retained panel unread, got %d", out.Conversation.Unread)
	}
	uc.Release("Dr. Smith")
}
