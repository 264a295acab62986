package greenapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{
		BaseURL:    server.URL,
		InstanceID: "1101000001",
		APIToken:   "token-abc",
	})
}

func TestSendText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/waInstance1101000001/sendMessage/token-abc", r.URL.Path)
		w.Write([]byte(`{"idMessage":"BAE5F4886F6F2D05"}`))
	})

	resp, err := client.SendText(context.Background(), "972501234567@c.us", "hello")
	require.NoError(t, err)
	assert.Equal(t, "BAE5F4886F6F2D05", resp.IDMessage)
}

func TestSendTextMissingID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := client.SendText(context.Background(), "972501234567@c.us", "hello")
	assert.Error(t, err)
}

func TestReceiveNotification(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/waInstance1101000001/receiveNotification/token-abc", r.URL.Path)
		w.Write([]byte(`{
			"receiptId": 42,
			"body": {
				"typeWebhook": "incomingMessageReceived",
				"idMessage": "abc123",
				"timestamp": 1700000000,
				"senderData": {"chatId": "972501234567@c.us", "senderName": "Dana"},
				"messageData": {"typeMessage": "textMessage", "textMessageData": {"textMessage": "Hi"}}
			}
		}`))
	})

	n, err := client.ReceiveNotification(context.Background())
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, int64(42), n.ReceiptID)
	assert.Equal(t, WebhookIncomingMessage, n.Body.TypeWebhook)
	text, ok := n.Body.MessageData.Text()
	require.True(t, ok)
	assert.Equal(t, "Hi", text)
}

func TestReceiveNotificationEmptyQueue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	})

	n, err := client.ReceiveNotification(context.Background())
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestDeleteNotification(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodDelete, r.Method)
		w.Write([]byte(`{"result":true}`))
	})

	err := client.DeleteNotification(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "/waInstance1101000001/deleteNotification/token-abc/42", gotPath)
}

func TestLastIncomingMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "60", r.URL.Query().Get("minutes"))
		w.Write([]byte(`[{"type":"incoming","idMessage":"m1","timestamp":1700000000,"chatId":"972501234567@c.us","textMessage":"Hi"}]`))
	})

	msgs, err := client.LastIncomingMessages(context.Background(), 60)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "incoming", msgs[0].Type)
	assert.Equal(t, "m1", msgs[0].IDMessage)
}

func TestGetStateInstance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"stateInstance":"authorized"}`))
	})

	state, err := client.GetStateInstance(context.Background())
	require.NoError(t, err)
	assert.True(t, state.Authorized())
}

func TestProviderErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.GetStateInstance(context.Background())
	assert.Error(t, err)
}

func TestMessageDataTextUnknownShape(t *testing.T) {
	md := MessageData{TypeMessage: "imageMessage"}
	_, ok := md.Text()
	assert.False(t, ok)

	md = MessageData{TypeMessage: MessageTypeExtendedText, ExtendedTextMessageData: &ExtendedTextMessageData{Text: "linked text"}}
	text, ok := md.Text()
	assert.True(t, ok)
	assert.Equal(t, "linked text", text)
}
