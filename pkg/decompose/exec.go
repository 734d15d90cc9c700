package decompose

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrEngineOutput means the engine exited cleanly but produced output the
// adapter could not interpret.
var ErrEngineOutput = errors.New("decomposition engine produced unreadable output")

// ExecEngine adapts a CoACD-style decomposition binary to the Engine
// contract. The tool is invoked once per segment as
//
//	<binary> [extra args...] -i <points.xyz> -o <hulls.obj> -t <concavity>
//
// where points.xyz holds one "x y z" line per vertex and hulls.obj is a
// Wavefront file whose `o`/`g` statements delimit one convex hull each.
// Temporary files are removed on every exit path.
type ExecEngine struct {
	Binary string
	Args   []string // extra arguments placed before -i/-o/-t
}

// Decompose implements Engine.
func (e *ExecEngine) Decompose(ctx context.Context, points []mgl64.Vec3, concavity float64) ([][]mgl64.Vec3, error) {
	if e.Binary == "" {
		return nil, errors.New("decomposition engine binary not configured")
	}

	in, err := os.CreateTemp("", "capsulegen-seg-*.xyz")
	if err != nil {
		return nil, fmt.Errorf("creating engine input: %w", err)
	}
	defer os.Remove(in.Name())

	var buf bytes.Buffer
	for _, p := range points {
		fmt.Fprintf(&buf, "%.9g %.9g %.9g\n", p[0], p[1], p[2])
	}
	if _, err := in.Write(buf.Bytes()); err != nil {
		in.Close()
		return nil, fmt.Errorf("writing engine input: %w", err)
	}
	if err := in.Close(); err != nil {
		return nil, fmt.Errorf("closing engine input: %w", err)
	}

	out, err := os.CreateTemp("", "capsulegen-hulls-*.obj")
	if err != nil {
		return nil, fmt.Errorf("creating engine output: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	args := append(append([]string{}, e.Args...),
		"-i", in.Name(),
		"-o", outPath,
		"-t", strconv.FormatFloat(concavity, 'g', -1, 64),
	)
	cmd := exec.CommandContext(ctx, e.Binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("engine %s: %w: %s", e.Binary, err, firstLine(output))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("reading engine output: %w", err)
	}
	return ParseHullOBJ(data)
}

// ParseHullOBJ splits a Wavefront OBJ into one vertex set per object. Faces
// and other statements are ignored; only hull vertices matter downstream.
func ParseHullOBJ(data []byte) ([][]mgl64.Vec3, error) {
	var hulls [][]mgl64.Vec3
	var current []mgl64.Vec3

	flush := func() {
		if len(current) > 0 {
			hulls = append(hulls, current)
			current = nil
		}
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "o ") || strings.HasPrefix(line, "g "):
			flush()
		case strings.HasPrefix(line, "v "):
			fields := strings.Fields(line)
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: short vertex line %q", ErrEngineOutput, line)
			}
			var p mgl64.Vec3
			for i := 0; i < 3; i++ {
				v, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("%w: vertex line %q: %v", ErrEngineOutput, line, err)
				}
				p[i] = v
			}
			current = append(current, p)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineOutput, err)
	}
	flush()
	return hulls, nil
}

func firstLine(b []byte) string {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimSpace(b))
}
