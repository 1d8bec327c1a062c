package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() Event {
	return Event{
		Kind:    KindPipeline,
		Station: "hilltop",
		Success: true,
		Title:   "skyglow run finished",
		Message: "registered 3, measured 3, published 3",
		Time:    time.Date(2024, 1, 11, 6, 0, 0, 0, time.UTC),
		Details: map[string]int{"registered": 3},
	}
}

type recordingNotifier struct {
	events []Event
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestMultiReachesEveryTarget(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("broker down")}
	ok := &recordingNotifier{}

	err := Multi{failing, nil, ok}.Notify(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1)

	require.NoError(t, Multi{ok, Nop{}}.Notify(context.Background(), testEvent()))
}

func TestEventText(t *testing.T) {
	e := testEvent()
	assert.Equal(t, e.Message, e.Text())
	e.Error = "publishing failed"
	assert.Equal(t, e.Message+"\nerror: publishing failed", e.Text())
}

type fakeSender struct {
	message string
	params  *types.Params
	errs    []error
}

func (f *fakeSender) Send(message string, params *types.Params) []error {
	f.message, f.params = message, params
	return f.errs
}

func TestShoutrrrNotify(t *testing.T) {
	fake := &fakeSender{errs: []error{nil}}
	s := &Shoutrrr{sender: fake, urls: 1}

	require.NoError(t, s.Notify(context.Background(), testEvent()))
	assert.Equal(t, testEvent().Message, fake.message)
	title, ok := fake.params.Title()
	assert.True(t, ok)
	assert.Equal(t, "skyglow run finished", title)

	fake.errs = []error{nil, errors.New("401 unauthorized")}
	err := s.Notify(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNewShoutrrrRejectsBadURLs(t *testing.T) {
	_, err := NewShoutrrr(nil, 0)
	require.Error(t, err)

	_, err = NewShoutrrr([]string{"nosuchservice://token@host"}, time.Second)
	require.Error(t, err)
}

// fakeToken is an already completed paho token
type fakeToken struct {
	mqtt.Token
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mqtt.Client
	mu         sync.Mutex
	connected  bool
	connectErr error
	connects   int
	messages   []published
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.connectErr == nil {
		c.connected = true
	}
	return doneToken(c.connectErr)
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic, qos, retained, payload.([]byte)})
	return doneToken(nil)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func newTestMQTT(client *fakeClient) *MQTT {
	m := NewMQTT(MQTTConfig{Broker: "tcp://broker:1883", ClientID: "test", Topic: "skyglow/hilltop", Retain: true}, nil)
	m.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		return client
	}
	return m
}

func TestMQTTPublishesStatus(t *testing.T) {
	client := &fakeClient{}
	m := newTestMQTT(client)
	defer m.Close()

	require.NoError(t, m.Notify(context.Background(), testEvent()))
	require.NoError(t, m.Notify(context.Background(), testEvent()))

	assert.Equal(t, 1, client.connects, "connection is reused")
	require.Len(t, client.messages, 2)
	msg := client.messages[0]
	assert.Equal(t, "skyglow/hilltop/status", msg.topic)
	assert.True(t, msg.retained)
	assert.Equal(t, byte(1), msg.qos)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &decoded))
	assert.Equal(t, "pipeline", decoded["kind"])
	assert.Equal(t, "hilltop", decoded["station"])
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, map[string]any{"registered": float64(3)}, decoded["details"])
}

func TestMQTTConnectFailure(t *testing.T) {
	client := &fakeClient{connectErr: errors.New("not authorized")}
	m := newTestMQTT(client)

	err := m.Notify(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorized")
	assert.Empty(t, client.messages)

	// the next event retries the connection
	client.connectErr = nil
	require.NoError(t, m.Notify(context.Background(), testEvent()))
	assert.Equal(t, 2, client.connects)
}

func TestMQTTReconnectsAfterClose(t *testing.T) {
	client := &fakeClient{}
	m := newTestMQTT(client)

	require.NoError(t, m.Notify(context.Background(), testEvent()))
	m.Close()
	assert.False(t, client.IsConnected())

	require.NoError(t, m.Notify(context.Background(), testEvent()))
	assert.Equal(t, 2, client.connects)
}

func TestWaitHonoursTimeoutAndContext(t *testing.T) {
	pending := &fakeToken{done: make(chan struct{})}

	err := wait(context.Background(), pending, 10*time.Millisecond)
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = wait(ctx, pending, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
