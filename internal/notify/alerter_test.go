package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pgt-ticketing/internal/common/aws"
	"pgt-ticketing/internal/common/config"
	"pgt-ticketing/internal/common/database"
	"pgt-ticketing/internal/common/logger"
)

type recordingChannel struct {
	mu       sync.Mutex
	name     string
	err      error
	subjects []string
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, subject, _ string, _ map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = append(c.subjects, subject)
	return c.err
}

type fakeSNS struct {
	inputs []*sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	id := "msg-1"
	return &sns.PublishOutput{MessageId: &id}, nil
}

type fakeSES struct {
	inputs []*ses.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	id := "mail-1"
	return &ses.SendEmailOutput{MessageId: &id}, nil
}

func newRedis(t *testing.T) (*database.RedisClient, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rc, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })
	return rc, mr
}

func TestNotifier_SendsToEveryChannel(t *testing.T) {
	a := &recordingChannel{name: "a"}
	b := &recordingChannel{name: "b"}
	n := NewNotifier(logger.NewTestLogger(t), nil, time.Hour, a, b)

	require.NoError(t, n.SoldOut(context.Background(), "exhibit-a", "Exhibit A"))
	assert.Equal(t, []string{"Sold out: Exhibit A"}, a.subjects)
	assert.Equal(t, []string{"Sold out: Exhibit A"}, b.subjects)
}

func TestNotifier_DeduplicatesPerResource(t *testing.T) {
	rc, mr := newRedis(t)
	ch := &recordingChannel{name: "a"}
	n := NewNotifier(logger.NewTestLogger(t), rc, time.Minute, ch)
	ctx := context.Background()

	require.NoError(t, n.SoldOut(ctx, "exhibit-a", "Exhibit A"))
	require.NoError(t, n.SoldOut(ctx, "exhibit-a", "Exhibit A"))
	require.NoError(t, n.SoldOut(ctx, "exhibit-b", ""))
	assert.Len(t, ch.subjects, 2)
	assert.Equal(t, "Sold out: exhibit-b", ch.subjects[1])

	mr.FastForward(2 * time.Minute)
	require.NoError(t, n.SoldOut(ctx, "exhibit-a", "Exhibit A"))
	assert.Len(t, ch.subjects, 3)
}

func TestNotifier_DedupeFailureStillAlerts(t *testing.T) {
	rc, mr := newRedis(t)
	mr.SetError("LOADING dataset in memory")

	ch := &recordingChannel{name: "a"}
	n := NewNotifier(logger.NewTestLogger(t), rc, time.Minute, ch)

	require.NoError(t, n.SoldOut(context.Background(), "exhibit-a", "Exhibit A"))
	assert.Len(t, ch.subjects, 1)
}

func TestNotifier_ChannelFailureIsReported(t *testing.T) {
	bad := &recordingChannel{name: "bad", err: errors.New("throttled")}
	good := &recordingChannel{name: "good"}
	n := NewNotifier(logger.NewTestLogger(t), nil, 0, bad, good)

	err := n.SoldOut(context.Background(), "exhibit-a", "Exhibit A")
	assert.EqualError(t, err, "throttled")
	assert.Len(t, good.subjects, 1)
}

func TestAWSChannels(t *testing.T) {
	snsAPI := &fakeSNS{}
	sesAPI := &fakeSES{}
	n := NewNotifier(logger.NewTestLogger(t), nil, time.Hour,
		NewSNSChannel(aws.NewSNSClientWith(snsAPI, "arn:aws:sns:eu-west-1:123456789012:inventory")),
		NewSESChannel(aws.NewSESClientWith(sesAPI, "alerts@museum.example"), []string{"ops@museum.example"}),
	)

	require.NoError(t, n.SoldOut(context.Background(), "exhibit-a", "Exhibit A"))

	require.Len(t, snsAPI.inputs, 1)
	assert.Equal(t, "arn:aws:sns:eu-west-1:123456789012:inventory", *snsAPI.inputs[0].TopicArn)
	assert.Equal(t, "Sold out: Exhibit A", *snsAPI.inputs[0].Subject)
	assert.Equal(t, "exhibit-a", *snsAPI.inputs[0].MessageAttributes["resourceId"].StringValue)

	require.Len(t, sesAPI.inputs, 1)
	assert.Equal(t, "alerts@museum.example", *sesAPI.inputs[0].Source)
	assert.Equal(t, []string{"ops@museum.example"}, sesAPI.inputs[0].Destination.ToAddresses)
}

func TestNopAlerter(t *testing.T) {
	var a Alerter = NopAlerter{}
	assert.NoError(t, a.SoldOut(context.Background(), "x", "y"))
}
