package solver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "embed"
)

//go:embed model.mzn
var defaultModel []byte

// ErrSolverOutput is returned when the external solver's output cannot
// be interpreted.
var ErrSolverOutput = errors.New("cannot parse solver output")

// Output markers the MiniZinc driver emits after the last solution.
const (
	markOptimal       = "=========="
	markUnsatisfiable = "=====UNSATISFIABLE====="
)

// MiniZinc solves the covering problem by shelling out to the MiniZinc
// toolchain. Within the time limit it reports the best solution found;
// the Proven flag distinguishes a proven optimum from a timeout cut.
type MiniZinc struct {
	// Binary is the executable name, "minizinc" when empty.
	Binary string
	// Backend is the value passed to --solver, "gecode" when empty.
	Backend string
	// ModelPath overrides the embedded constraint model.
	ModelPath string
	// TimeLimit bounds the solve, 5 minutes when zero.
	TimeLimit time.Duration
}

func (mz *MiniZinc) binary() string {
	if mz.Binary == "" {
		return "minizinc"
	}
	return mz.Binary
}

func (mz *MiniZinc) backend() string {
	if mz.Backend == "" {
		return "gecode"
	}
	return mz.Backend
}

func (mz *MiniZinc) timeLimit() time.Duration {
	if mz.TimeLimit <= 0 {
		return 5 * time.Minute
	}
	return mz.TimeLimit
}

// Solve writes the problem as a data file, runs the solver, and parses
// the selected indices from its stdout.
func (mz *MiniZinc) Solve(ctx context.Context, p Problem) (Solution, error) {
	if err := p.Validate(); err != nil {
		return Solution{}, err
	}

	dir, err := os.MkdirTemp("", "capsule-solve-*")
	if err != nil {
		return Solution{}, fmt.Errorf("create solver workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	dataPath := filepath.Join(dir, "problem.dzn")
	data, err := os.Create(dataPath)
	if err != nil {
		return Solution{}, fmt.Errorf("create data file: %w", err)
	}
	if err := WriteDZN(data, p); err != nil {
		data.Close()
		return Solution{}, fmt.Errorf("write data file: %w", err)
	}
	if err := data.Close(); err != nil {
		return Solution{}, fmt.Errorf("write data file: %w", err)
	}

	return mz.SolveFile(ctx, dataPath, len(p.Candidates))
}

// SolveFile runs the solver against an existing data file. numCandidates
// bounds index validation; pass 0 to read it from the file.
func (mz *MiniZinc) SolveFile(ctx context.Context, dataPath string, numCandidates int) (Solution, error) {
	if numCandidates <= 0 {
		n, err := readNumCapsules(dataPath)
		if err != nil {
			return Solution{}, err
		}
		numCandidates = n
	}

	modelPath := mz.ModelPath
	if modelPath == "" {
		model, err := os.CreateTemp("", "capsule-model-*.mzn")
		if err != nil {
			return Solution{}, fmt.Errorf("write model file: %w", err)
		}
		defer os.Remove(model.Name())
		if _, err := model.Write(defaultModel); err != nil {
			model.Close()
			return Solution{}, fmt.Errorf("write model file: %w", err)
		}
		if err := model.Close(); err != nil {
			return Solution{}, fmt.Errorf("write model file: %w", err)
		}
		modelPath = model.Name()
	}

	limit := mz.timeLimit()
	ctx, cancel := context.WithTimeout(ctx, limit+30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, mz.binary(),
		"--solver", mz.backend(),
		"--time-limit", strconv.FormatInt(limit.Milliseconds(), 10),
		modelPath, dataPath,
	)
	out, err := cmd.Output()
	if err != nil {
		// The driver still prints UNSATISFIABLE on stdout with a zero
		// exit; a failure here is environmental.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Solution{}, fmt.Errorf("minizinc: %w: %s", err, firstLine(exitErr.Stderr))
		}
		return Solution{}, fmt.Errorf("minizinc: %w", err)
	}

	return ParseOutput(string(out), numCandidates)
}

var numCapsulesRe = regexp.MustCompile(`num_capsules\s*=\s*(\d+)\s*;`)

func readNumCapsules(dataPath string) (int, error) {
	data, err := os.ReadFile(dataPath)
	if err != nil {
		return 0, fmt.Errorf("read data file: %w", err)
	}
	m := numCapsulesRe.FindSubmatch(data)
	if m == nil {
		return 0, fmt.Errorf("%w: num_capsules missing from %s", ErrSolverOutput, dataPath)
	}
	return strconv.Atoi(string(m[1]))
}

var (
	indicesRe   = regexp.MustCompile(`Capsule indices: \[([^\]]*)\]`)
	objectiveRe = regexp.MustCompile(`Objective: (-?\d+(?:\.\d+)?)`)
)

// ParseOutput extracts the last reported solution from MiniZinc stdout.
// Indices on the wire are 1-based; the returned solution is 0-based and
// sorted ascending.
func ParseOutput(out string, numCandidates int) (Solution, error) {
	if strings.Contains(out, markUnsatisfiable) {
		return Solution{}, ErrInfeasible
	}

	matches := indicesRe.FindAllStringSubmatch(out, -1)
	if len(matches) == 0 {
		return Solution{}, fmt.Errorf("%w: no solution line in %q", ErrSolverOutput, firstLine([]byte(out)))
	}
	// With intermediate solutions printed, the last one is the best.
	fields := strings.Split(matches[len(matches)-1][1], ",")

	var sol Solution
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		idx, err := strconv.Atoi(f)
		if err != nil {
			return Solution{}, fmt.Errorf("%w: bad index %q", ErrSolverOutput, f)
		}
		if idx < 1 || idx > numCandidates {
			return Solution{}, fmt.Errorf("%w: index %d out of range 1..%d", ErrSolverOutput, idx, numCandidates)
		}
		sol.Selected = append(sol.Selected, idx-1)
	}
	if len(sol.Selected) == 0 {
		return Solution{}, ErrEmptySelection
	}
	sort.Ints(sol.Selected)

	if m := objectiveRe.FindAllStringSubmatch(out, -1); len(m) > 0 {
		sol.Objective, _ = strconv.ParseFloat(m[len(m)-1][1], 64)
	}
	sol.Proven = strings.Contains(out, markOptimal)
	return sol, nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
