package notificator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tutela-wallet/tutela/internal/models"
	"github.com/tutela-wallet/tutela/pkg/logger"
)

type staticEndpoint string

func (s staticEndpoint) GetEndpoint() (string, error) { return string(s), nil }

type recordingStream struct {
	got []*models.Notification
}

func (r *recordingStream) SendNotification(n *models.Notification) {
	r.got = append(r.got, n)
}

type panickyStream struct{}

func (panickyStream) SendNotification(*models.Notification) { panic("broker gone") }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(true)
	require.NoError(t, err)
	return log
}

func TestSendNotificationFansOut(t *testing.T) {
	log := testLogger(t)

	var received models.Notification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	stream := &recordingStream{}
	n := NewNotificator(log, staticEndpoint(server.URL), NewWebhookNotificator(log), stream)

	event := &models.Notification{
		ID:     "evt-1",
		Kind:   models.EventDelegationExecuted,
		Wallet: "0x00000000000000000000000000000000000000aa",
	}
	n.SendNotification(event)

	require.Equal(t, "evt-1", received.ID)
	require.Equal(t, models.EventDelegationExecuted, received.Kind)
	require.Len(t, stream.got, 1)
	require.Equal(t, event, stream.got[0])
}

func TestSendNotificationNoEndpoint(t *testing.T) {
	log := testLogger(t)

	stream := &recordingStream{}
	n := NewNotificator(log, staticEndpoint(""), NewWebhookNotificator(log), stream)

	n.SendNotification(&models.Notification{ID: "evt-2"})

	// The stream still delivers when no webhook endpoint is configured.
	require.Len(t, stream.got, 1)
}

func TestSendNotificationSurvivesPanic(t *testing.T) {
	log := testLogger(t)

	n := NewNotificator(log, staticEndpoint(""), NewWebhookNotificator(log), panickyStream{})
	require.NotPanics(t, func() {
		n.SendNotification(&models.Notification{ID: "evt-3"})
	})
}

func TestWebhookRejectedStatus(t *testing.T) {
	log := testLogger(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	// Delivery failures are logged, never surfaced.
	webhook := NewWebhookNotificator(log)
	require.NotPanics(t, func() {
		webhook.SendNotification(server.URL, &models.Notification{ID: "evt-4"})
	})
}
