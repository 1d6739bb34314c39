package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rokbot/titlebot/internal/adb"
)

var (
	// ErrRecognition means the recognizer process itself failed.
	ErrRecognition = errors.New("recognition failed")
	// ErrMalformedOutput means the recognizer printed something other than one of the known shapes.
	ErrMalformedOutput = errors.New("malformed recognizer output")
)

type Kind int

const (
	Found Kind = iota
	NotFound
)

func (k Kind) String() string {
	if k == Found {
		return "found"
	}
	return "not found"
}

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Outcome is what the recognizer saw on the screenshot.
type Outcome struct {
	Kind  Kind
	Point Point
	// Reason is the recognizer's error text for NotFound outcomes.
	Reason string
	// LostConnection is only reported by the connection-loss check.
	LostConnection bool
}

// Resolver captures a screenshot of a device and asks an external script where the
// target is.
type Resolver struct {
	runner      adb.Runner
	interpreter string
	script      string
	dir         string
	name        string
	logger      *slog.Logger
}

func NewResolver(runner adb.Runner, interpreter, script, screenshotDir, name string, logger *slog.Logger) *Resolver {
	return &Resolver{
		runner:      runner,
		interpreter: interpreter,
		script:      script,
		dir:         screenshotDir,
		name:        name,
		logger:      logger,
	}
}

// Resolve takes a fresh screenshot from d and runs the recognizer on it. There is
// no retry here; callers decide what a NotFound means. The screenshot is removed
// once the recognizer is done with it.
func (r *Resolver) Resolve(ctx context.Context, d *adb.Device) (Outcome, error) {
	shot := r.screenshotPath(d)
	defer r.removeScreenshot(shot)

	if err := adb.Execute(ctx, r.runner, d.Screencap(shot)); err != nil {
		return Outcome{}, fmt.Errorf("%w: screenshot: %v", ErrRecognition, err)
	}

	out, err := r.runner.Run(ctx, r.interpreter, r.script, shot, d.Serial)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %s: %v", ErrRecognition, r.script, err)
	}

	outcome, err := Parse(out)
	if err != nil {
		return Outcome{}, err
	}

	r.logger.Debug("Recognizer result",
		slog.String("check", r.name),
		slog.String("outcome", outcome.Kind.String()),
		slog.Int("x", outcome.Point.X),
		slog.Int("y", outcome.Point.Y),
	)
	return outcome, nil
}

// screenshotPath is fixed per check and device; one device never runs two checks at once.
func (r *Resolver) screenshotPath(d *adb.Device) string {
	serial := strings.NewReplacer(":", "_", "/", "_").Replace(d.Serial)
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s.png", r.name, serial))
}

func (r *Resolver) removeScreenshot(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("Failed to remove screenshot", slog.String("path", path), slog.Any("error", err))
	}
}

type rawOutput struct {
	X              *int    `json:"x"`
	Y              *int    `json:"y"`
	Error          *string `json:"error"`
	LostConnection *bool   `json:"lostConnection"`
}

// Parse decodes one recognizer JSON object. Accepted shapes are {x, y},
// {x, y, lostConnection} and {error}; anything else is ErrMalformedOutput.
func Parse(out []byte) (Outcome, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(out)))
	dec.DisallowUnknownFields()

	var raw rawOutput
	if err := dec.Decode(&raw); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Outcome{}, fmt.Errorf("%w: trailing data after JSON object", ErrMalformedOutput)
	}

	hasPoint := raw.X != nil && raw.Y != nil
	switch {
	case raw.Error != nil && raw.X == nil && raw.Y == nil && raw.LostConnection == nil:
		return Outcome{Kind: NotFound, Reason: *raw.Error}, nil
	case hasPoint && raw.Error == nil:
		o := Outcome{Kind: Found, Point: Point{X: *raw.X, Y: *raw.Y}}
		if raw.LostConnection != nil {
			o.LostConnection = *raw.LostConnection
		}
		return o, nil
	}

	return Outcome{}, fmt.Errorf("%w: %s", ErrMalformedOutput, bytes.TrimSpace(out))
}
