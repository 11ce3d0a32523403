package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"refsync/pkg/testutil"
)

func runContext() context.Context {
	return testutil.RunContext("run-42", time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC))
}

func TestMail_Notify(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	send := func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}
	m, err := NewMail("smtp.example:25", "refsync@example.org", []string{"ops@example.org", "term@example.org"}, WithSendFunc(send))
	require.NoError(t, err)

	require.NoError(t, m.Notify(runContext(), "Refset sync finished", "line one\nline two"))

	assert.Equal(t, "smtp.example:25", gotAddr)
	assert.Equal(t, "refsync@example.org", gotFrom)
	assert.Equal(t, []string{"ops@example.org", "term@example.org"}, gotTo)
	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Refset sync finished\r\n")
	assert.Contains(t, msg, "To: ops@example.org, term@example.org\r\n")
	assert.Contains(t, msg, "Date: Thu, 02 May 2024 08:30:00 +0000\r\n")
	assert.Contains(t, msg, "\r\n\r\nline one\r\nline two")
}

func TestMail_SendError(t *testing.T) {
	m, err := NewMail("smtp.example:25", "refsync@example.org", []string{"ops@example.org"},
		WithSendFunc(func(string, smtp.Auth, string, []string, []byte) error { return errors.New("relay denied") }))
	require.NoError(t, err)

	err = m.Notify(runContext(), "s", "b")
	assert.ErrorContains(t, err, "relay denied")
}

func TestNewMail_Validation(t *testing.T) {
	_, err := NewMail("", "a@b", []string{"c@d"})
	assert.Error(t, err)
	_, err = NewMail("smtp:25", "a@b", nil)
	assert.Error(t, err)
}

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.records = append(f.records, rs...)
	out := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		out = append(out, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return out
}

func TestKafka_Notify(t *testing.T) {
	p := &fakeProducer{}
	k, err := NewKafka(p, "refsync.summaries")
	require.NoError(t, err)

	require.NoError(t, k.Notify(runContext(), "Refset sync finished", "No changes.\n"))

	require.Len(t, p.records, 1)
	rec := p.records[0]
	assert.Equal(t, "refsync.summaries", rec.Topic)
	assert.Equal(t, "run-42", string(rec.Key))

	var msg Message
	require.NoError(t, json.Unmarshal(rec.Value, &msg))
	assert.Equal(t, "run-42", msg.RunID)
	assert.Equal(t, "No changes.\n", msg.Body)
	assert.True(t, msg.SentAt.Equal(time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)))
}

func TestKafka_ProduceError(t *testing.T) {
	k, err := NewKafka(&fakeProducer{err: errors.New("leader not available")}, "t")
	require.NoError(t, err)

	assert.ErrorContains(t, k.Notify(runContext(), "s", "b"), "leader not available")
}

type failing struct{ err error }

func (f failing) Notify(context.Context, string, string) error { return f.err }

func TestFanout(t *testing.T) {
	var buf bytes.Buffer
	logged := NewLog(slog.New(slog.NewTextHandler(&buf, nil)))
	boom := errors.New("boom")

	err := Fanout{failing{err: boom}, logged}.Notify(context.Background(), "subject", "body")

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), "subject")
	assert.NoError(t, Fanout{logged}.Notify(context.Background(), "s", "b"))
}
