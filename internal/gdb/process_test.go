package gdb

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderDropsMalformedLinesAndContinues(t *testing.T) {
	var mu sync.Mutex
	var diags []string
	diag := func(msg string) {
		mu.Lock()
		diags = append(diags, msg)
		mu.Unlock()
	}

	c, _ := newFakeController(t, func(token, cmd string) []string {
		return []string{
			`!!! not a protocol line`,
			token + `^done,ok="yes"`,
		}
	}, WithDiag(diag))

	res, err := c.Run(context.Background(), "-gdb-version")
	require.NoError(t, err)
	assert.Equal(t, "yes", res.Payload.Str("ok"))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, diags, "malformed line should be reported")
	assert.True(t, strings.Contains(diags[0], "dropped"), "diag: %s", diags[0])
}

func TestWriteLineAppendsNewline(t *testing.T) {
	c, _ := newFakeController(t, respondDone)

	_, err := c.Run(context.Background(), "-gdb-version")
	require.NoError(t, err)

	// The fake's scanner only sees the command if it was newline
	// terminated; reaching here proves the framing. Also confirm the
	// session stays alive for a second command.
	_, err = c.Run(context.Background(), "-list-features")
	require.NoError(t, err)
}

func TestCommandTimeoutAgainstHungDebugger(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	c, _ := newFakeController(t, func(token, cmd string) []string {
		<-block
		return nil
	})

	start := time.Now()
	_, err := c.RunTimeout(context.Background(), "-hangs", 50*time.Millisecond)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
