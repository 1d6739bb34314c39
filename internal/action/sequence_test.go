package action

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rokbot/titlebot/internal/adb"
	"github.com/rokbot/titlebot/internal/config"
	"github.com/rokbot/titlebot/internal/title"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu     sync.Mutex
	calls  []string
	failAt int // 1-based call number that fails, 0 never
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	if r.failAt == len(r.calls) {
		return nil, errors.New("exit status 1")
	}
	return []byte("ok"), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testKingdom() *config.KingdomCfg {
	k := &config.KingdomCfg{Kingdom: "1234"}
	k.Navigation.World = config.Point{X: 89, Y: 978}
	k.Navigation.Search = config.Point{X: 660, Y: 28}
	k.Navigation.XField = config.Point{X: 962, Y: 215}
	k.Navigation.YField = config.Point{X: 1169, Y: 215}
	k.Navigation.SearchButton = config.Point{X: 1331, Y: 212}
	k.Navigation.Home = config.Point{X: 89, Y: 978}
	return k
}

func TestSequencerRunsInOrder(t *testing.T) {
	r := &recordingRunner{}
	s := NewSequencer(r, 0, discardLogger())
	d := adb.NewDevice("adb", "emulator-5554", "pkg")

	require.NoError(t, s.Run(context.Background(), NavigateTo(d, testKingdom(), 512, 300)))

	require.Len(t, r.calls, 9)
	assert.Equal(t, "adb -s emulator-5554 shell input tap 89 978", r.calls[0])
	assert.Equal(t, "adb -s emulator-5554 shell input text 512", r.calls[3])
	assert.Equal(t, "adb -s emulator-5554 shell input text 300", r.calls[6])
	assert.Equal(t, "adb -s emulator-5554 shell input tap 1331 212", r.calls[8])
}

func TestSequencerStopsAtFirstFailure(t *testing.T) {
	r := &recordingRunner{failAt: 3}
	s := NewSequencer(r, 0, discardLogger())
	d := adb.NewDevice("adb", "emulator-5554", "pkg")

	err := s.Run(context.Background(), NavigateTo(d, testKingdom(), 1, 2))

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 2, stepErr.Index)
	assert.Equal(t, "Tapping X Coordinate Field", stepErr.Command.Description)
	assert.Len(t, r.calls, 3, "steps after the failing one must never run")
	assert.Contains(t, err.Error(), "step 3")
}

func TestSequencerWaitsBetweenSteps(t *testing.T) {
	r := &recordingRunner{}
	s := NewSequencer(r, 20*time.Millisecond, discardLogger())
	d := adb.NewDevice("adb", "emulator-5554", "pkg")

	start := time.Now()
	require.NoError(t, s.Run(context.Background(), GrantTitle(d, testKingdom(), title.Duke)))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Len(t, r.calls, 4)
}

func TestSequencerHonoursCancellation(t *testing.T) {
	r := &recordingRunner{}
	s := NewSequencer(r, time.Hour, discardLogger())
	d := adb.NewDevice("adb", "emulator-5554", "pkg")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, ReturnHome(d, testKingdom()))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, r.calls, 1)
}

func TestRefreshApp(t *testing.T) {
	r := &recordingRunner{}
	s := NewSequencer(r, 0, discardLogger())
	d := adb.NewDevice("adb", "emulator-5554", "com.lilithgame.roc.gp")

	require.NoError(t, RefreshApp(context.Background(), s, d, 0))
	require.Len(t, r.calls, 2)
	assert.Contains(t, r.calls[0], "force-stop")
	assert.Contains(t, r.calls[1], "monkey")

	failing := &recordingRunner{failAt: 1}
	err := RefreshApp(context.Background(), NewSequencer(failing, 0, discardLogger()), d, 0)
	assert.ErrorContains(t, err, "failed to stop app")
	assert.Len(t, failing.calls, 1)
}
