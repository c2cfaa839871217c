package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/require"
)

type fakeResult struct {
	id  string
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	return r.id, r.err
}

type fakeTopic struct {
	msgs []*pubsub.Message
	err  error
}

func (f *fakeTopic) Publish(_ context.Context, msg *pubsub.Message) result {
	f.msgs = append(f.msgs, msg)
	return fakeResult{id: "msg-1", err: f.err}
}

func TestPublishMarshalsPayload(t *testing.T) {
	t.Parallel()

	topic := &fakeTopic{}
	pub := &Publisher{topic: topic}

	id, err := pub.Publish(context.Background(), "crawl-batches", map[string]any{"batch_id": "b1", "inserted_count": 3})
	require.NoError(t, err)
	require.Equal(t, "msg-1", id)
	require.Len(t, topic.msgs, 1)

	var body map[string]any
	require.NoError(t, json.Unmarshal(topic.msgs[0].Data, &body))
	require.Equal(t, "b1", body["batch_id"])
	require.InDelta(t, 3, body["inserted_count"], 0)
	require.Equal(t, "crawl-batches", topic.msgs[0].Attributes["topic"])
	require.Equal(t, Source, topic.msgs[0].Attributes["source"])
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "t", "x")
	require.Error(t, err)

	_, err = (&Publisher{topic: &fakeTopic{}}).Publish(context.Background(), "t", make(chan int))
	require.ErrorContains(t, err, "marshal payload")

	_, err = (&Publisher{topic: &fakeTopic{err: errors.New("unavailable")}}).Publish(context.Background(), "t", "x")
	require.ErrorContains(t, err, "unavailable")
}

func TestDialRequiresProjectAndTopic(t *testing.T) {
	t.Parallel()

	_, err := Dial(context.Background(), "", "topic")
	require.Error(t, err)
	_, err = Dial(context.Background(), "project", "")
	require.Error(t, err)
}

func TestCloseWithoutClient(t *testing.T) {
	t.Parallel()

	require.NoError(t, New(nil).Close())
	closed := false
	pub := &Publisher{close: func() error { closed = true; return nil }}
	require.NoError(t, pub.Close())
	require.True(t, closed)
}
