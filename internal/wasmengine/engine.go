// Package wasmengine runs the vibes-anomaly statistics module under wazero.
// The module is a WASI command: it reads a JSON request on stdin and
// writes a JSON reply on stdout, selected by its first argument.
package wasmengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

const moduleName = "vibes-anomaly"

// CallTimeout bounds a single module invocation.
const CallTimeout = 2 * time.Second

var ErrUnavailable = errors.New("wasmengine: module not loaded")

type statsInput struct {
	Values []float64 `json:"values"`
}

type statsOutput struct {
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Error string  `json:"error,omitempty"`
}

// Engine holds one compiled module. Each call gets a fresh instance, so
// an Engine is safe for concurrent use.
type Engine struct {
	rt       wazero.Runtime
	compiled wazero.CompiledModule
}

// Locate returns the module path: explicit if it points at a readable
// .wasm file, otherwise the first default candidate that exists, or "".
func Locate(explicit string) string {
	if explicit != "" {
		if validPath(explicit) {
			return explicit
		}
		return ""
	}
	cwd, _ := os.Getwd()
	execPath, _ := os.Executable()
	candidates := []string{
		filepath.Join(filepath.Dir(execPath), moduleName+".wasm"),
		filepath.Join(cwd, "bin", moduleName+".wasm"),
		filepath.Join(cwd, "wasm", moduleName+".wasm"),
	}
	for _, p := range candidates {
		if validPath(p) {
			return p
		}
	}
	return ""
}

func validPath(p string) bool {
	if !strings.HasSuffix(p, ".wasm") {
		return false
	}
	st, err := os.Stat(filepath.Clean(p))
	return err == nil && !st.IsDir()
}

// Load compiles the module at path.
func Load(ctx context.Context, path string) (*Engine, error) {
	bin, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", moduleName, err)
	}
	return Compile(ctx, bin)
}

// Compile builds an Engine from raw module bytes.
func Compile(ctx context.Context, bin []byte) (*Engine, error) {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}
	compiled, err := rt.CompileModule(ctx, bin)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("compile %s: %w", moduleName, err)
	}
	return &Engine{rt: rt, compiled: compiled}, nil
}

// Close releases the runtime. Safe on a nil Engine.
func (e *Engine) Close(ctx context.Context) error {
	if e == nil {
		return nil
	}
	return e.rt.Close(ctx)
}

func (e *Engine) run(ctx context.Context, subcmd string, input, output interface{}) error {
	if e == nil {
		return ErrUnavailable
	}
	body, err := json.Marshal(input)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	var out, errBuf bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(moduleName, subcmd).
		WithStdin(bytes.NewReader(body)).
		WithStdout(&out).
		WithStderr(&errBuf)
	mod, err := e.rt.InstantiateModule(ctx, e.compiled, cfg)
	if mod != nil {
		defer mod.Close(ctx)
	}
	if err != nil {
		var exitErr *sys.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 0 {
			return fmt.Errorf("%s %s: %w (stderr: %s)", moduleName, subcmd, err, errBuf.String())
		}
	}
	if err := json.Unmarshal(out.Bytes(), output); err != nil {
		return fmt.Errorf("parse %s %s output: %w", moduleName, subcmd, err)
	}
	return nil
}

// Stats computes mean and population standard deviation in the module.
func (e *Engine) Stats(values []float64) (mean, std float64, err error) {
	var res statsOutput
	if err := e.run(context.Background(), "stats", statsInput{Values: values}, &res); err != nil {
		return 0, 0, err
	}
	if res.Error != "" {
		return 0, 0, fmt.Errorf("%s stats: %s", moduleName, res.Error)
	}
	return res.Mean, res.Std, nil
}
