package console_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/kapsel/internal/console"
	"github.com/systmms/kapsel/internal/errors"
)

func TestAsk(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	c := console.New(context.Background(), strings.NewReader("first\r\nsecond"), &out, true)

	assert.True(t, c.IsInteractive())

	answer, err := c.Ask("Value for FOO: ")
	require.NoError(t, err)
	assert.Equal(t, "first", answer)

	// last line without newline is still an answer
	answer, err = c.AskPassword("Value for DB_PASSWORD: ")
	require.NoError(t, err)
	assert.Equal(t, "second", answer)

	assert.Equal(t, "Value for FOO: Value for DB_PASSWORD: ", out.String())
}

func TestAskEOFCancels(t *testing.T) {
	t.Parallel()

	c := console.New(context.Background(), strings.NewReader(""), io.Discard, true)
	_, err := c.Ask("Value for FOO: ")
	assert.True(t, errors.IsCanceled(err))
}

func TestAskInterruptCancels(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// a reader that never returns
	r, _ := io.Pipe()
	c := console.New(ctx, r, io.Discard, true)
	_, err := c.Ask("Value for FOO: ")
	assert.ErrorIs(t, err, errors.ErrCanceled)
}

// countingReader counts Read calls on the wrapped reader.
type countingReader struct {
	r     io.Reader
	reads atomic.Int32
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads.Add(1)
	return c.r.Read(p)
}

func TestAskAfterInterruptDoesNotReadAgain(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	in := &countingReader{r: pr}
	c := console.New(ctx, in, io.Discard, true)

	_, err := c.Ask("Value for FOO: ")
	require.ErrorIs(t, err, errors.ErrCanceled)
	require.Eventually(t, func() bool { return in.reads.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err = c.Ask("Value for BAR: ")
	assert.ErrorIs(t, err, errors.ErrCanceled)
	_, err = c.AskPassword("Value for DB_PASSWORD: ")
	assert.ErrorIs(t, err, errors.ErrCanceled)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), in.reads.Load())
}

func TestTell(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	c := console.New(context.Background(), strings.NewReader(""), &out, false)
	c.Tell("hello")
	assert.Equal(t, "hello\n", out.String())
	assert.False(t, c.IsInteractive())
}

func TestAskChoice(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	c := console.New(context.Background(), strings.NewReader("-\nB\n"), &out, true)

	choices := []console.Choice{
		{Key: "b", Value: "bokeh_app"},
		{Key: "n", Value: "notebook"},
		{Key: "c", Value: "unix"},
	}
	got, err := console.AskChoice(c, "Pick? ", choices, []string{"Please enter 'b', 'n', or 'c'."})
	require.NoError(t, err)
	assert.Equal(t, "bokeh_app", got)
	assert.Equal(t, "Pick? Please enter 'b', 'n', or 'c'.\nPick? ", out.String())
}

func TestAskNonEmpty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		def     string
		want    string
		retries int
	}{
		{name: "answer", input: "x\n", want: "x"},
		{name: "default_on_empty", input: "\n", def: "d", want: "d"},
		{name: "reprompt_without_default", input: "\n  \nv\n", want: "v", retries: 2},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			c := console.New(context.Background(), strings.NewReader(tt.input), &out, true)
			got, err := console.AskNonEmpty(c, "Value for FOO: ", tt.def, "Please enter a value for FOO.", false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.retries, strings.Count(out.String(), "Please enter a value for FOO."))
		})
	}
}
