package mi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprookie/aigdb/internal/domain"
)

func TestParseResultWithToken(t *testing.T) {
	rec, err := Parse(`12^done,threads=[{id="1",state="stopped"}]`)
	require.NoError(t, err)

	assert.Equal(t, domain.KindResult, rec.Kind)
	assert.True(t, rec.HasTok)
	assert.Equal(t, uint64(12), rec.Token)
	assert.Equal(t, "done", rec.Class)

	threads, ok := rec.Payload.List("threads")
	require.True(t, ok)
	tuples := threads.Tuples()
	require.Len(t, tuples, 1)
	assert.Equal(t, "1", tuples[0].Str("id"))
	assert.Equal(t, "stopped", tuples[0].Str("state"))
}

func TestParseExecAsyncWithoutToken(t *testing.T) {
	rec, err := Parse(`*stopped,reason="signal-received",signal-name="SIGSEGV"`)
	require.NoError(t, err)

	assert.Equal(t, domain.KindExecAsync, rec.Kind)
	assert.False(t, rec.HasTok)
	assert.Equal(t, "stopped", rec.Class)
	assert.Equal(t, "signal-received", rec.Payload.Str("reason"))
	assert.Equal(t, "SIGSEGV", rec.Payload.Str("signal-name"))
}

func TestParseExecAsyncWithToken(t *testing.T) {
	rec, err := Parse(`12*stopped,reason="signal-received",signal-name="SIGSEGV"`)
	require.NoError(t, err)

	assert.Equal(t, domain.KindExecAsync, rec.Kind)
	assert.True(t, rec.HasTok)
	assert.Equal(t, uint64(12), rec.Token)
	assert.Equal(t, "stopped", rec.Class)
	assert.Equal(t, "SIGSEGV", rec.Payload.Str("signal-name"))
}

func TestParseNotifyAsyncWithToken(t *testing.T) {
	rec, err := Parse(`3=thread-created,id="2",group-id="i1"`)
	require.NoError(t, err)

	assert.Equal(t, domain.KindNotifyAsync, rec.Kind)
	assert.True(t, rec.HasTok)
	assert.Equal(t, uint64(3), rec.Token)
	assert.Equal(t, "thread-created", rec.Class)
}

func TestParseKindPerSigil(t *testing.T) {
	tests := []struct {
		name string
		line string
		kind domain.RecordKind
	}{
		{name: "result", line: `^done`, kind: domain.KindResult},
		{name: "exec async", line: `*running,thread-id="all"`, kind: domain.KindExecAsync},
		{name: "status async", line: `+download,section=".text"`, kind: domain.KindStatusAsync},
		{name: "notify async", line: `=thread-created,id="2"`, kind: domain.KindNotifyAsync},
		{name: "console stream", line: `~"hello\n"`, kind: domain.KindConsoleStream},
		{name: "target stream", line: `@"raw target output"`, kind: domain.KindTargetStream},
		{name: "log stream", line: `&"internal log"`, kind: domain.KindLogStream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, rec.Kind)
		})
	}
}

func TestParseStreamUnescapesPayload(t *testing.T) {
	rec, err := Parse(`~"line one\nsaid \"hi\"\t\\done"`)
	require.NoError(t, err)
	assert.Equal(t, "line one\nsaid \"hi\"\t\\done", rec.Text)
}

func TestParseNestedStructures(t *testing.T) {
	line := `^done,stack=[frame={level="0",addr="0x0000555555554612",func="crash",file="crash.c",line="7"},frame={level="1",addr="0x00007ffff7a2d840",func="__libc_start_main",from="/lib/x86_64-linux-gnu/libc.so.6"}]`
	rec, err := Parse(line)
	require.NoError(t, err)

	stack, ok := rec.Payload.List("stack")
	require.True(t, ok)
	frames := stack.Tuples()
	require.Len(t, frames, 2)
	assert.Equal(t, "crash", frames[0].Str("func"))
	assert.Equal(t, "7", frames[0].Str("line"))
	assert.Equal(t, "/lib/x86_64-linux-gnu/libc.so.6", frames[1].Str("from"))
}

func TestParseEmptyContainers(t *testing.T) {
	rec, err := Parse(`^done,threads=[],groups={}`)
	require.NoError(t, err)

	list, ok := rec.Payload.List("threads")
	require.True(t, ok)
	assert.Empty(t, list)

	fields, ok := rec.Payload.Fields("groups")
	require.True(t, ok)
	assert.Empty(t, fields)
}

func TestParseValueListElements(t *testing.T) {
	rec, err := Parse(`^done,register-names=["rax","rbx",""]`)
	require.NoError(t, err)

	names, ok := rec.Payload.List("register-names")
	require.True(t, ok)
	require.Len(t, names, 3)
	assert.Equal(t, domain.Str("rax"), names[0])
	assert.Equal(t, domain.Str(""), names[2])
}

func TestParseRepeatedKeysKeepOrder(t *testing.T) {
	rec, err := Parse(`^done,value="a",value="b"`)
	require.NoError(t, err)

	require.Len(t, rec.Payload, 2)
	assert.Equal(t, domain.Str("a"), rec.Payload[0].Value)
	assert.Equal(t, domain.Str("b"), rec.Payload[1].Value)
	// first wins on keyed lookup
	assert.Equal(t, "a", rec.Payload.Str("value"))
}

func TestParseErrorResult(t *testing.T) {
	rec, err := Parse(`4^error,msg="No symbol table is loaded."`)
	require.NoError(t, err)

	assert.Equal(t, "error", rec.Class)
	assert.Equal(t, "No symbol table is loaded.", rec.Payload.Str("msg"))
}

func TestParseMalformedLines(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "unknown sigil", line: `!done`},
		{name: "bare token", line: `42`},
		{name: "empty line", line: ``},
		{name: "empty class", line: `^,key="v"`},
		{name: "unterminated string", line: `~"never ends`},
		{name: "unterminated tuple", line: `^done,frame={level="0"`},
		{name: "unterminated list", line: `^done,stack=[frame={}`},
		{name: "invalid escape", line: `~"bad \q escape"`},
		{name: "dangling escape", line: `~"bad \`},
		{name: "missing equals", line: `^done,key"v"`},
		{name: "bare value tail", line: `^done,key=value`},
		{name: "token on stream record", line: `7~"hello"`},
		{name: "trailing garbage after stream", line: `~"text" extra`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.line)
			require.Error(t, err)
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.NotEmpty(t, parseErr.Reason)
		})
	}
}

func TestParseIsIdempotent(t *testing.T) {
	line := `12^done,threads=[{id="1",state="stopped"}]`
	first, err := Parse(line)
	require.NoError(t, err)
	second, err := Parse(line)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestIsPrompt(t *testing.T) {
	assert.True(t, IsPrompt("(gdb)"))
	assert.True(t, IsPrompt("(gdb) "))
	assert.False(t, IsPrompt(`^done`))
	assert.False(t, IsPrompt(""))
}
