package correct

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompletion struct {
	reply string
	err   error
	calls int
	last  openai.ChatCompletionRequest
}

func (f *fakeCompletion) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.reply}},
		},
	}, nil
}

func TestCorrect_ReturnsTrimmedReply(t *testing.T) {
	fake := &fakeCompletion{reply: "  The quick fox.\n"}
	c := newWithClient(fake, DefaultConfig())

	out, err := c.Correct(context.Background(), "Teh qick fox.")
	require.NoError(t, err)
	assert.Equal(t, "The quick fox.", out)
	assert.Equal(t, 1, fake.calls)
}

func TestCorrect_SendsSystemPromptAndText(t *testing.T) {
	fake := &fakeCompletion{reply: "ok"}
	c := newWithClient(fake, Config{Model: "test-model", Temperature: 0.1})

	_, err := c.Correct(context.Background(), "some scanned text")
	require.NoError(t, err)

	req := fake.last
	assert.Equal(t, "test-model", req.Model)
	assert.InDelta(t, 0.1, req.Temperature, 1e-6)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content, "some scanned text")
}

func TestCorrect_BlankInputSkipsAPI(t *testing.T) {
	fake := &fakeCompletion{}
	c := newWithClient(fake, DefaultConfig())

	out, err := c.Correct(context.Background(), "   \n ")
	require.NoError(t, err)
	assert.Equal(t, "   \n ", out)
	assert.Zero(t, fake.calls)
}

func TestCorrect_RejectsOversizedInput(t *testing.T) {
	fake := &fakeCompletion{}
	c := newWithClient(fake, Config{MaxInputBytes: 8})

	_, err := c.Correct(context.Background(), "this text is longer than eight bytes")
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Zero(t, fake.calls)
}

func TestCorrect_EmptyReplyIsMalformed(t *testing.T) {
	fake := &fakeCompletion{reply: "  \n"}
	c := newWithClient(fake, DefaultConfig())

	_, err := c.Correct(context.Background(), "text")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestCorrect_MapsAPIFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: 429}, ErrUnavailable},
		{"server error", &openai.APIError{HTTPStatusCode: 503}, ErrUnavailable},
		{"bad request", &openai.APIError{HTTPStatusCode: 400}, ErrMalformed},
		{"deadline", context.DeadlineExceeded, ErrTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeCompletion{err: tc.err}
			c := newWithClient(fake, DefaultConfig())

			_, err := c.Correct(context.Background(), "text")
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestTransient(t *testing.T) {
	assert.True(t, Transient(ErrUnavailable))
	assert.True(t, Transient(ErrTimeout))
	assert.True(t, Transient(WrapError("Correct", ErrUnavailable, "")))
	assert.False(t, Transient(ErrTooLarge))
	assert.False(t, Transient(ErrMalformed))
	assert.False(t, Transient(errors.New("other")))
}

func TestMaxTokensFor(t *testing.T) {
	assert.Equal(t, 256, maxTokensFor(""))
	assert.Equal(t, 356, maxTokensFor(string(make([]byte, 300))))
	assert.Equal(t, 16384, maxTokensFor(string(make([]byte, 10<<20))))
}
