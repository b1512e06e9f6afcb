package serialmux

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendCommandTerminatesLines(t *testing.T) {
	port := NewMockSerialPort("")
	mux := NewSerialMux(port)

	require.NoError(t, mux.SendCommand(`{"type":"msp_vision"}`))
	require.NoError(t, mux.SendCommand("vision reset\n"))
	assert.Equal(t, "{\"type\":\"msp_vision\"}\nvision reset\n", port.Written())
}

func TestSendCommandErrors(t *testing.T) {
	port := NewMockSerialPort("")
	mux := NewSerialMux(port)

	port.ShortWrites = true
	assert.ErrorIs(t, mux.SendCommand("abcd"), ErrWriteFailed)

	port.ShortWrites = false
	boom := errors.New("unplugged")
	port.WriteError = boom
	assert.ErrorIs(t, mux.SendCommand("abcd"), boom)
}

func TestSendCommandConcurrentWritesDoNotInterleave(t *testing.T) {
	port := NewMockSerialPort("")
	mux := NewSerialMux(port)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mux.SendCommand(strings.Repeat("x", 64))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(port.Written(), "\n"), "\n")
	require.Len(t, lines, 20)
	for _, l := range lines {
		assert.Len(t, l, 64)
	}
}

func TestMonitorFansOutLines(t *testing.T) {
	port := NewMockSerialPort("vision reset\n{\"type\":\"attitude\"}\n")
	port.ReadError = io.EOF
	mux := NewSerialMux(port)

	_, a := mux.Subscribe()
	_, b := mux.Subscribe()

	require.NoError(t, mux.Monitor(context.Background()))

	for _, ch := range []chan string{a, b} {
		require.Len(t, ch, 2)
		assert.Equal(t, "vision reset", <-ch)
		assert.Equal(t, `{"type":"attitude"}`, <-ch)
	}
}

func TestMonitorReturnsReadError(t *testing.T) {
	port := NewMockSerialPort("")
	port.ReadError = errors.New("framing error")
	mux := NewSerialMux(port)

	err := mux.Monitor(context.Background())
	assert.EqualError(t, err, "framing error")
}

func TestMonitorStopsOnCancel(t *testing.T) {
	port := NewMockSerialPort("")
	mux := NewSerialMux(port)
	defer mux.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	port := NewMockSerialPort(strings.Repeat("line\n", 100))
	port.ReadError = io.EOF
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	require.NoError(t, mux.Monitor(context.Background()))
	assert.Equal(t, cap(ch), len(ch), "excess lines are dropped")
}

func TestUnsubscribeAndClose(t *testing.T) {
	port := NewMockSerialPort("")
	mux := NewSerialMux(port)

	id, a := mux.Subscribe()
	_, b := mux.Subscribe()

	mux.Unsubscribe(id)
	_, ok := <-a
	assert.False(t, ok)
	mux.Unsubscribe(id)

	require.NoError(t, mux.Close())
	_, ok = <-b
	assert.False(t, ok)
	assert.True(t, port.Closed())
}
