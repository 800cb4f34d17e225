package eventsvc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cts/core"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)
	srv.Start()
	t.Cleanup(srv.Shutdown)
	require.True(t, srv.ReadyForConnections(5*time.Second), "embedded NATS not ready")
	return srv.ClientURL()
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	require.NoError(t, err)
	defer pub.Close()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("cts.application.>", ch)
	require.NoError(t, err)
	defer sub.Unsubscribe() //nolint:errcheck
	require.NoError(t, nc.Flush())

	event := map[string]interface{}{"ct_id": 7, "to": "submitted"}
	require.NoError(t, pub.Publish(context.Background(), core.TopicApplicationSubmitted, event))
	require.NoError(t, pub.conn.Flush())

	select {
	case msg := <-ch:
		assert.Equal(t, core.TopicApplicationSubmitted, msg.Subject)
		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, float64(7), got["ct_id"])
		assert.Equal(t, "submitted", got["to"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, pub.Publish(ctx, core.TopicApplicationStatus, event))
}

func TestNew(t *testing.T) {
	pub, err := New("")
	require.NoError(t, err)
	assert.IsType(t, &NoopPublisher{}, pub)
	assert.NoError(t, pub.Publish(context.Background(), core.TopicTemplate3Created, nil))
	assert.NoError(t, pub.Close())

	_, err = New("nats://127.0.0.1:1")
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	rec := new(Recorder)
	_ = rec.Publish(context.Background(), core.TopicAppointmentCreated, 1)
	_ = rec.Publish(context.Background(), core.TopicAppointmentUpdated, 2)
	assert.Equal(t, []string{core.TopicAppointmentCreated, core.TopicAppointmentUpdated}, rec.Topics())
	assert.Equal(t, 2, rec.Events()[1].Data)
	rec.Reset()
	assert.Empty(t, rec.Topics())
}
