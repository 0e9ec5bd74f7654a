package wasmengine

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uleb(n int) []byte {
	var b []byte
	for {
		c := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			b = append(b, c|0x80)
			continue
		}
		return append(b, c)
	}
}

func vec(items ...[]byte) []byte {
	out := uleb(len(items))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func name(s string) []byte { return append(uleb(len(s)), s...) }

func section(id byte, body []byte) []byte {
	return append(append([]byte{id}, uleb(len(body))...), body...)
}

// stdoutModule assembles a WASI command whose _start writes reply to
// stdout, then calls proc_exit(exit) when exit >= 0.
func stdoutModule(reply string, exit int) []byte {
	const wasi = "wasi_snapshot_preview1"
	types := vec(
		[]byte{0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f}, // fd_write
		[]byte{0x60, 0x00, 0x00},                               // _start
		[]byte{0x60, 0x01, 0x7f, 0x00},                         // proc_exit
	)
	imports := vec(
		append(append(name(wasi), name("fd_write")...), 0x00, 0x00),
		append(append(name(wasi), name("proc_exit")...), 0x00, 0x02),
	)
	exports := vec(
		append(name("memory"), 0x02, 0x00),
		append(name("_start"), 0x00, 0x02),
	)

	// fd_write(1, iovs=0, 1, nwritten=8)
	code := []byte{0x00, 0x41, 0x01, 0x41, 0x00, 0x41, 0x01, 0x41, 0x08, 0x10, 0x00, 0x1a}
	if exit >= 0 {
		code = append(code, 0x41, byte(exit), 0x10, 0x01)
	}
	code = append(code, 0x0b)

	// iovec{ptr: 16, len} at 0, nwritten at 8, reply at 16.
	data := make([]byte, 16, 16+len(reply))
	binary.LittleEndian.PutUint32(data[0:], 16)
	binary.LittleEndian.PutUint32(data[4:], uint32(len(reply)))
	data = append(data, reply...)
	segment := append([]byte{0x00, 0x41, 0x00, 0x0b}, append(uleb(len(data)), data...)...)

	mod := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	mod = append(mod, section(1, types)...)
	mod = append(mod, section(2, imports)...)
	mod = append(mod, section(3, vec([]byte{0x01}))...)
	mod = append(mod, section(5, vec([]byte{0x00, 0x01}))...)
	mod = append(mod, section(7, exports)...)
	mod = append(mod, section(10, vec(append(uleb(len(code)), code...)))...)
	mod = append(mod, section(11, vec(segment))...)
	return mod
}

func compile(t *testing.T, reply string, exit int) *Engine {
	t.Helper()
	e, err := Compile(context.Background(), stdoutModule(reply, exit))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close(context.Background()) })
	return e
}

func TestStatsReadsModuleReply(t *testing.T) {
	e := compile(t, `{"mean":2.5,"std":1.25}`, -1)
	mean, std, err := e.Stats([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 2.5, mean)
	assert.Equal(t, 1.25, std)

	// Each call runs a fresh instance.
	mean, _, err = e.Stats([]float64{9})
	require.NoError(t, err)
	assert.Equal(t, 2.5, mean)
}

func TestStatsTreatsExitZeroAsSuccess(t *testing.T) {
	e := compile(t, `{"mean":3,"std":0.5}`, 0)
	mean, std, err := e.Stats([]float64{3})
	require.NoError(t, err)
	assert.Equal(t, 3.0, mean)
	assert.Equal(t, 0.5, std)
}

func TestStatsNonZeroExitFails(t *testing.T) {
	e := compile(t, `{"mean":3}`, 2)
	_, _, err := e.Stats([]float64{3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vibes-anomaly stats")
}

func TestStatsModuleReportedError(t *testing.T) {
	e := compile(t, `{"error":"no values"}`, -1)
	_, _, err := e.Stats(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no values")
}

func TestStatsRejectsMalformedReply(t *testing.T) {
	e := compile(t, `not json`, -1)
	_, _, err := e.Stats([]float64{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse vibes-anomaly stats output")
}
