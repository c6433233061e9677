package gdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprookie/aigdb/internal/mi"
)

func TestDecodeThreadList(t *testing.T) {
	rec, err := mi.Parse(`^done,threads=[{id="2",target-id="Thread 0x7f1 (LWP 41)",state="stopped",frame={level="0",addr="0x401132",func="worker"}},{id="1",target-id="Thread 0x7f0 (LWP 40)",name="main",state="stopped"}],current-thread-id="2"`)
	require.NoError(t, err)

	list, err := decodeThreadList(rec.Payload)
	require.NoError(t, err)
	require.Len(t, list.Threads, 2)
	assert.Equal(t, 2, list.CurrentID)
	assert.Equal(t, 2, list.Threads[0].ID)
	assert.Equal(t, "stopped", list.Threads[0].State)
	require.NotNil(t, list.Threads[0].Frame)
	assert.Equal(t, "worker", list.Threads[0].Frame.Function)
	assert.Equal(t, "main", list.Threads[1].Name)
	assert.Nil(t, list.Threads[1].Frame)
}

func TestDecodeThreadListMissingList(t *testing.T) {
	rec, err := mi.Parse(`^done`)
	require.NoError(t, err)
	_, err = decodeThreadList(rec.Payload)
	assert.Error(t, err)
}

func TestDecodeFrames(t *testing.T) {
	rec, err := mi.Parse(`^done,stack=[frame={level="0",addr="0x401132",func="crash",file="crash.c",fullname="/src/crash.c",line="7"},frame={level="1",addr="0x7f0840",func="__libc_start_main",from="/lib/libc.so.6"}]`)
	require.NoError(t, err)

	frames, err := decodeFrames(rec.Payload)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, 0, frames[0].Level)
	assert.Equal(t, "crash", frames[0].Function)
	assert.Equal(t, 7, frames[0].Line)
	assert.Equal(t, "/src/crash.c", frames[0].FullName)
	assert.Equal(t, "/lib/libc.so.6", frames[1].From)
}

func TestDecodeVariables(t *testing.T) {
	rec, err := mi.Parse(`^done,variables=[{name="p",value="0x0"},{name="n",value="42"}]`)
	require.NoError(t, err)

	vars, err := decodeVariables(rec.Payload, "variables")
	require.NoError(t, err)
	require.Len(t, vars, 2)
	assert.Equal(t, "p", vars[0].Name)
	assert.Equal(t, "0x0", vars[0].Value)
}

func TestDecodeRegisters(t *testing.T) {
	text := "rax            0x0                 0\n" +
		"rip            0x401132            0x401132 <crash+12>\n" +
		"eflags         0x10246             [ PF ZF IF RF ]\n" +
		"not a register line\n"

	set := decodeRegisters(text)
	assert.Equal(t, "0x0", set.Registers["rax"])
	assert.Equal(t, "0x401132", set.Registers["rip"])
	assert.Equal(t, "0x10246", set.Registers["eflags"])
	assert.NotContains(t, set.Registers, "not")
	assert.Equal(t, text, set.Raw)
}

func TestDecodeSignal(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantName   string
		wantReason string
	}{
		{
			name:       "stopped with segfault",
			text:       "It stopped with signal SIGSEGV, Segmentation fault.\n",
			wantName:   "SIGSEGV",
			wantReason: "stopped",
		},
		{
			name:       "terminated with abort",
			text:       "The program being debugged terminated with signal SIGABRT, Aborted.\n",
			wantName:   "SIGABRT",
			wantReason: "terminated",
		},
		{
			name: "no signal line",
			text: "The program being debugged is not being run.\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := decodeSignal(tt.text)
			assert.Equal(t, tt.wantName, info.Name)
			assert.Equal(t, tt.wantReason, info.StopReason)
		})
	}
}

func TestDecodeSharedLibraries(t *testing.T) {
	text := "From                To                  Syms Read   Shared Object Library\n" +
		"0x00007ffff7dd9000  0x00007ffff7df2000  Yes         /lib64/ld-linux-x86-64.so.2\n" +
		"0x00007ffff7a15000  0x00007ffff7b8f000  No          /lib/x86_64-linux-gnu/libc.so.6\n"

	libs := decodeSharedLibraries(text)
	require.Len(t, libs, 2)
	assert.Equal(t, "/lib64/ld-linux-x86-64.so.2", libs[0].Path)
	assert.True(t, libs[0].SymsRead)
	assert.False(t, libs[1].SymsRead)
	assert.Equal(t, "0x00007ffff7a15000", libs[1].From)
}
