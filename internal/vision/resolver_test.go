package vision

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/rokbot/titlebot/internal/adb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Outcome
		wantErr error
	}{
		{name: "found", in: `{"x": 10, "y": 20}`, want: Outcome{Kind: Found, Point: Point{X: 10, Y: 20}}},
		{name: "not found", in: `{"error": "not found"}` + "\n", want: Outcome{Kind: NotFound, Reason: "not found"}},
		{name: "lost connection", in: `{"x":10,"y":20,"lostConnection":true}`, want: Outcome{Kind: Found, Point: Point{X: 10, Y: 20}, LostConnection: true}},
		{name: "recovery button only", in: `{"x":10,"y":20,"lostConnection":false}`, want: Outcome{Kind: Found, Point: Point{X: 10, Y: 20}}},
		{name: "not json", in: `Traceback (most recent call last)`, wantErr: ErrMalformedOutput},
		{name: "empty", in: ``, wantErr: ErrMalformedOutput},
		{name: "unknown field", in: `{"x":1,"y":2,"confidence":0.9}`, wantErr: ErrMalformedOutput},
		{name: "half point", in: `{"x":1}`, wantErr: ErrMalformedOutput},
		{name: "mixed", in: `{"x":1,"y":2,"error":"nope"}`, wantErr: ErrMalformedOutput},
		{name: "two objects", in: `{"x":1,"y":2}{"x":3,"y":4}`, wantErr: ErrMalformedOutput},
		{name: "wrong type", in: `{"x":"1","y":2}`, wantErr: ErrMalformedOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.in))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type scriptedRunner struct {
	scriptOut []byte
	scriptErr error
	shotErr   error
	calls     [][]string
}

func (s *scriptedRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	s.calls = append(s.calls, append([]string{name}, args...))
	if name == "adb" {
		return []byte("png"), s.shotErr
	}
	return s.scriptOut, s.scriptErr
}

func newTestResolver(t *testing.T, r adb.Runner) *Resolver {
	return newResolverIn(r, t.TempDir())
}

func newResolverIn(r adb.Runner, dir string) *Resolver {
	return NewResolver(r, "python", "check_title.py", dir, "title", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestResolve(t *testing.T) {
	r := &scriptedRunner{scriptOut: []byte(`{"x": 5, "y": 6}`)}
	d := adb.NewDevice("adb", "emulator-5554", "pkg")

	got, err := newTestResolver(t, r).Resolve(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Kind: Found, Point: Point{X: 5, Y: 6}}, got)

	require.Len(t, r.calls, 2)
	assert.Equal(t, "python", r.calls[1][0])
	assert.Equal(t, "check_title.py", r.calls[1][1])
	assert.Equal(t, "emulator-5554", r.calls[1][3])
}

func TestResolveFailures(t *testing.T) {
	d := adb.NewDevice("adb", "emulator-5554", "pkg")

	_, err := newTestResolver(t, &scriptedRunner{scriptErr: errors.New("exit status 2")}).Resolve(context.Background(), d)
	assert.ErrorIs(t, err, ErrRecognition)

	_, err = newTestResolver(t, &scriptedRunner{shotErr: errors.New("device offline")}).Resolve(context.Background(), d)
	assert.ErrorIs(t, err, ErrRecognition)

	_, err = newTestResolver(t, &scriptedRunner{scriptOut: []byte("oops")}).Resolve(context.Background(), d)
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestResolveLeavesNoScreenshots(t *testing.T) {
	dir := t.TempDir()
	d := adb.NewDevice("adb", "127.0.0.1:5555", "pkg")

	found := newResolverIn(&scriptedRunner{scriptOut: []byte(`{"x": 5, "y": 6}`)}, dir)
	for i := 0; i < 5; i++ {
		_, err := found.Resolve(context.Background(), d)
		require.NoError(t, err)
	}

	_, err := newResolverIn(&scriptedRunner{scriptErr: errors.New("exit status 1")}, dir).Resolve(context.Background(), d)
	require.ErrorIs(t, err, ErrRecognition)
	_, err = newResolverIn(&scriptedRunner{scriptOut: []byte("oops")}, dir).Resolve(context.Background(), d)
	require.ErrorIs(t, err, ErrMalformedOutput)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScreenshotPathIsStablePerDevice(t *testing.T) {
	r := newTestResolver(t, &scriptedRunner{})
	d := adb.NewDevice("adb", "127.0.0.1:5555", "pkg")

	assert.Equal(t, r.screenshotPath(d), r.screenshotPath(d))
	assert.Equal(t, "title_127.0.0.1_5555.png", filepath.Base(r.screenshotPath(d)))
	assert.NotEqual(t, r.screenshotPath(d), r.screenshotPath(adb.NewDevice("adb", "emulator-5556", "pkg")))
}
