package flowpipe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	infos  []string
	debugs []string
}

func (r *recordingLogger) Debug(msg string, args ...any) { r.debugs = append(r.debugs, msg) }
func (r *recordingLogger) Info(msg string, args ...any)  { r.infos = append(r.infos, msg) }

func TestDefaultLoggerDiscardsEverything(t *testing.T) {
	logger := DefaultLogger()
	assert.NotPanics(t, func() {
		logger.Debug("ignored", "k", "v")
		logger.Info("ignored")
	})
}

func TestCustomLoggerReceivesListenerFailures(t *testing.T) {
	rec := &recordingLogger{}
	p := NewPipeline(HandlerDataType[packet](), WithLogger[packet](rec))

	require.NoError(t, p.On(EventKindProcessorAdded, func(context.Context, Event) error {
		return errors.New("listener exploded")
	}))

	proc := NewProcessor[packet]("p", 10, func(_ context.Context, pkt packet) (packet, error) { return pkt, nil })
	require.NoError(t, p.AddProcessor(proc), "a failing listener must not fail the triggering call")

	require.NotEmpty(t, rec.infos, "listener failure should be logged via Info")
}
