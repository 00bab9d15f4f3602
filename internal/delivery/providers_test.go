package delivery

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/mrz1836/postmark"
	"github.com/resend/resend-go/v2"

	"github.com/federalgaz/campaignmail/internal/config"
)

type fakePostmark struct {
	got  postmark.Email
	resp postmark.EmailResponse
	err  error
}

func (f *fakePostmark) SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error) {
	f.got = email
	return f.resp, f.err
}

func TestPostmarkSender_Send(t *testing.T) {
	fake := &fakePostmark{resp: postmark.EmailResponse{MessageID: "pm-1"}}
	sender := &PostmarkSender{client: fake, trackOpens: true}

	msg := testMessage()
	msg.Headers = map[string]string{"X-B": "2", "X-A": "1"}

	id, err := sender.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if id != "pm-1" {
		t.Errorf("Send() id = %q, want pm-1", id)
	}

	got := fake.got
	if !strings.HasSuffix(got.To, "<ahmet@example.com>") {
		t.Errorf("To = %q", got.To)
	}
	if got.HTMLBody != msg.HTML || got.TextBody != msg.Text {
		t.Error("bodies not passed through")
	}
	if got.Tag != "winter-campaign" || got.ReplyTo != "info@federalgaz.com" {
		t.Errorf("Tag/ReplyTo = %q/%q", got.Tag, got.ReplyTo)
	}
	if !got.TrackOpens || got.TrackLinks != "HtmlOnly" {
		t.Errorf("tracking = %v/%q", got.TrackOpens, got.TrackLinks)
	}
	if len(got.Headers) != 2 || got.Headers[0].Name != "X-A" {
		t.Errorf("Headers = %+v, want sorted", got.Headers)
	}
}

func TestPostmarkSender_Errors(t *testing.T) {
	tests := []struct {
		name      string
		fake      *fakePostmark
		temporary bool
	}{
		{"transport", &fakePostmark{err: errors.New("connection reset")}, true},
		{"api error", &fakePostmark{resp: postmark.EmailResponse{ErrorCode: 406, Message: "Inactive recipient"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &PostmarkSender{client: tt.fake}
			_, err := sender.Send(context.Background(), testMessage())
			if !errors.Is(err, ErrSendFailed) {
				t.Fatalf("Send() error = %v, want ErrSendFailed", err)
			}
			if IsTemporary(err) != tt.temporary {
				t.Errorf("IsTemporary() = %v, want %v", IsTemporary(err), tt.temporary)
			}
		})
	}
}

type fakeResend struct {
	got *resend.SendEmailRequest
	err error
}

func (f *fakeResend) SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.got = params
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "re-1"}, nil
}

func TestResendSender_Send(t *testing.T) {
	fake := &fakeResend{}
	sender := &ResendSender{emails: fake}

	id, err := sender.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if id != "re-1" {
		t.Errorf("Send() id = %q", id)
	}
	if len(fake.got.Tags) != 1 || fake.got.Tags[0].Value != "winter-campaign" {
		t.Errorf("Tags = %+v", fake.got.Tags)
	}
	if fake.got.Html == "" || fake.got.Text == "" {
		t.Error("bodies not passed through")
	}

	fake.err = errors.New("rate limited")
	if _, err := sender.Send(context.Background(), testMessage()); !IsTemporary(err) {
		t.Errorf("Send() error = %v, want temporary", err)
	}
}

func TestResendSender_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   bool
		temporary bool
	}{
		{"accepted", http.StatusOK, `{"id":"re-42"}`, false, false},
		{"validation error", http.StatusUnprocessableEntity, `{"statusCode":422,"name":"validation_error","message":"Invalid to field"}`, true, false},
		{"forbidden", http.StatusForbidden, `{"message":"domain not verified"}`, true, false},
		{"rate limited", http.StatusTooManyRequests, `{"message":"too many requests"}`, true, true},
		{"server error", http.StatusInternalServerError, `{"message":"internal"}`, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/emails" {
					t.Errorf("path = %q, want /emails", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			client := resend.NewCustomClient(&http.Client{Transport: &statusRecorder{next: http.DefaultTransport}}, "re_test")
			client.BaseURL, _ = url.Parse(srv.URL + "/")
			sender := &ResendSender{emails: client.Emails}

			id, err := sender.Send(context.Background(), testMessage())
			if !tt.wantErr {
				if err != nil || id != "re-42" {
					t.Fatalf("Send() = %q, %v", id, err)
				}
				return
			}
			if err == nil {
				t.Fatal("Send() should fail")
			}
			if IsTemporary(err) != tt.temporary {
				t.Errorf("IsTemporary() = %v, want %v (error %v)", IsTemporary(err), tt.temporary, err)
			}
			if !strings.Contains(err.Error(), strconv.Itoa(tt.status)) {
				t.Errorf("error = %v, want HTTP status", err)
			}
		})
	}
}

type fakeSES struct {
	simple *ses.SendEmailInput
	raw    *ses.SendRawEmailInput
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.simple = params
	return &ses.SendEmailOutput{MessageId: aws.String("ses-simple")}, nil
}

func (f *fakeSES) SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error) {
	f.raw = params
	return &ses.SendRawEmailOutput{MessageId: aws.String("ses-raw")}, nil
}

func TestSESSender_Send(t *testing.T) {
	fake := &fakeSES{}
	sender := &SESSender{client: fake, configurationSet: "campaigns"}

	id, err := sender.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if id != "ses-simple" || fake.simple == nil {
		t.Fatalf("Send() id = %q, want simple send", id)
	}
	if aws.ToString(fake.simple.ConfigurationSetName) != "campaigns" {
		t.Errorf("ConfigurationSetName = %v", fake.simple.ConfigurationSetName)
	}
	if aws.ToString(fake.simple.Message.Body.Html.Data) != testMessage().HTML {
		t.Error("html body not passed through")
	}
	if len(fake.simple.ReplyToAddresses) != 1 {
		t.Errorf("ReplyToAddresses = %v", fake.simple.ReplyToAddresses)
	}

	msg := testMessage()
	msg.Headers = map[string]string{"List-Unsubscribe": "<mailto:u@federalgaz.com>"}
	id, err = sender.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("Send() raw error = %v", err)
	}
	if id != "ses-raw" || fake.raw == nil {
		t.Fatalf("Send() id = %q, want raw send", id)
	}
	if !bytes.Contains(fake.raw.RawMessage.Data, []byte("List-Unsubscribe: <mailto:u@federalgaz.com>")) {
		t.Error("raw message lost custom header")
	}
}

func TestNewProviderSenders_RequireCredentials(t *testing.T) {
	if _, err := NewPostmarkSender(config.PostmarkConfig{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewPostmarkSender() error = %v", err)
	}
	if _, err := NewResendSender(config.ResendConfig{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewResendSender() error = %v", err)
	}
	if _, err := NewSESSender(config.SESConfig{Region: "eu-central-1", AccessKeyID: "AKIA"}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewSESSender() error = %v", err)
	}
}
