package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

func TestMessageBodies(t *testing.T) {
	assert.Equal(t, "Your OTP for Logistics MS is: 123456", RegistrationOTP("+1", "123456").Body)
	assert.Equal(t, "Your new OTP for Logistics MS is: 123456", ResendOTP("+1", "123456").Body)
	assert.Equal(t, "Your password reset OTP for Logistics MS is: 123456", PasswordResetOTP("+1", "123456").Body)
	assert.Equal(t, KindPasswordResetOTP, PasswordResetOTP("+1", "1").Kind)
}

func TestLoggerNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLoggerNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, n.Send(context.Background(), RegistrationOTP("+15551234567", "654321")))
	assert.Contains(t, buf.String(), `"destination":"+15551234567"`)

	var nilNotifier *LoggerNotifier
	assert.NoError(t, nilNotifier.Send(context.Background(), Message{}))
}

type fakePublisher struct {
	topic string
	body  []byte
	err   error
}

func (f *fakePublisher) Publish(topic string, body []byte) error {
	f.topic, f.body = topic, body
	return f.err
}

func TestNSQNotifierPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	n := &NSQNotifier{producer: pub, topic: "sms.outbound"}

	require.NoError(t, n.Send(context.Background(), ResendOTP("+15551234567", "111222")))
	assert.Equal(t, "sms.outbound", pub.topic)

	var msg Message
	require.NoError(t, json.Unmarshal(pub.body, &msg))
	assert.Equal(t, KindResendOTP, msg.Kind)
	assert.Equal(t, "+15551234567", msg.Destination)
}

func TestNSQNotifierPropagatesFailure(t *testing.T) {
	n := &NSQNotifier{producer: &fakePublisher{err: errors.New("not connected")}, topic: "sms.outbound"}
	assert.ErrorContains(t, n.Send(context.Background(), Message{}), "not connected")
}

type fakeMessages struct {
	params *twilioapi.CreateMessageParams
	err    error
}

func (f *fakeMessages) CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioapi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioNotifier(t *testing.T) {
	messages := &fakeMessages{}
	n := &TwilioNotifier{messages: messages, from: "+15550001111"}

	require.NoError(t, n.Send(context.Background(), RegistrationOTP("+15551234567", "123456")))
	require.NotNil(t, messages.params)
	assert.Equal(t, "+15551234567", *messages.params.To)
	assert.Equal(t, "+15550001111", *messages.params.From)
	assert.Equal(t, "Your OTP for Logistics MS is: 123456", *messages.params.Body)
}

func TestTwilioNotifierError(t *testing.T) {
	n := &TwilioNotifier{
		messages: &fakeMessages{err: &twilioclient.TwilioRestError{Code: 21211, Message: "Invalid 'To' Phone Number", Status: 400}},
		from:     "+15550001111",
	}

	err := n.Send(context.Background(), RegistrationOTP("+1", "123456"))
	assert.ErrorContains(t, err, "21211")
	assert.ErrorContains(t, err, "status 400")
}

func TestTwilioNotifierStopsOnCancelledContext(t *testing.T) {
	messages := &fakeMessages{}
	n := &TwilioNotifier{messages: messages, from: "+15550001111"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Send(ctx, RegistrationOTP("+15551234567", "123456")), context.Canceled)
	assert.Nil(t, messages.params)
}

func TestNewTwilioNotifierUsesSDKClient(t *testing.T) {
	n := NewTwilioNotifier("AC123", "token", "+15550001111")
	assert.NotNil(t, n.messages)
	assert.Equal(t, "+15550001111", n.from)
}
