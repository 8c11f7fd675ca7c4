package mailer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/resend/resend-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResendEmails struct {
	got         *resend.SendEmailRequest
	hasDeadline bool
	resp        *resend.SendEmailResponse
	err         error
}

func (f *fakeResendEmails) SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.got = params
	_, f.hasDeadline = ctx.Deadline()
	return f.resp, f.err
}

func TestResendTransport_Send(t *testing.T) {
	t.Parallel()

	fake := &fakeResendEmails{resp: &resend.SendEmailResponse{Id: "re_123"}}
	tr := &ResendTransport{emails: fake}

	r, err := tr.Send(context.Background(), validMessage())
	require.NoError(t, err)
	assert.Equal(t, Receipt{MessageID: "re_123", Transport: "resend"}, r)

	require.NotNil(t, fake.got)
	assert.Equal(t, `"FineTuneAI" <relay@example.com>`, fake.got.From)
	assert.Equal(t, []string{"info@example.com"}, fake.got.To)
	assert.Equal(t, "ada@example.com", fake.got.ReplyTo)
	assert.Equal(t, "Hello", fake.got.Subject)
	assert.Equal(t, "<p>Ada</p>", fake.got.Html)
	assert.Equal(t, "Name: Ada", fake.got.Text)
}

func TestResendTransport_TimeoutBoundsCall(t *testing.T) {
	t.Parallel()

	tr, err := NewResendTransport(ResendConfig{APIKey: "re_test"})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, tr.timeout)

	fake := &fakeResendEmails{resp: &resend.SendEmailResponse{Id: "re_1"}}
	tr.emails = fake
	_, err = tr.Send(context.WithoutCancel(context.Background()), validMessage())
	require.NoError(t, err)
	assert.True(t, fake.hasDeadline)
}

func TestResendTransport_SendError(t *testing.T) {
	t.Parallel()

	fake := &fakeResendEmails{err: errors.New("401 invalid api key")}
	tr := &ResendTransport{emails: fake}

	_, err := tr.Send(context.Background(), validMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailer: resend send")
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestResendTransport_InvalidMessageNeverCallsAPI(t *testing.T) {
	t.Parallel()

	fake := &fakeResendEmails{}
	tr := &ResendTransport{emails: fake}

	_, err := tr.Send(context.Background(), Message{FromAddress: "a@b.co"})
	assert.ErrorIs(t, err, ErrNoRecipients)
	assert.Nil(t, fake.got)
}
