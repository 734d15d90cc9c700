// capsulegen derives tapered-capsule collision proxies from skinned glTF
// meshes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/chibifire/tapered-capsule-with-keypoint-detection/internal/config"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/internal/logger"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/internal/pipeline"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/export"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/mesh"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/segment"
	"github.com/chibifire/tapered-capsule-with-keypoint-detection/pkg/solver"
)

func main() {
	// Global flags come before the subcommand:
	//   capsulegen -debug generate in.glb out.glb
	config.ParseFlags()
	args := flag.Args()

	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	command := args[0]
	rest := args[1:]

	switch command {
	case "generate", "gen":
		cmdGenerate(cfg, rest)
	case "inspect":
		cmdInspect(cfg, rest)
	case "solve":
		cmdSolve(cfg, rest)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`capsulegen - tapered capsule collision proxies for skinned meshes

Usage:
  capsulegen [flags] <command> [arguments]

Commands:
  generate <input.gltf> <output.gltf>  Run the full pipeline
  inspect <input.gltf>                 Show mesh and segmentation stats
  solve <problem.dzn>                  Run the selection solver on a data file

Flags (before the command):
  -config <path>        Config file (default ./capsulegen.yaml)
  -debug                Enable debug logging
  -engine <binary>      Convex decomposition engine
  -solver <backend>     Selection backend: minizinc or greedy
  -witnesses <n>        Witness point count
  -seed <n>             Witness sampling seed
  -drop-uncoverable     Drop witnesses no candidate covers

Examples:
  capsulegen generate avatar.glb capsules.glb
  capsulegen -solver greedy generate avatar.glb capsules.gltf
  capsulegen inspect avatar.glb
  capsulegen solve analysis.dzn`)
}

func cmdGenerate(cfg *config.Config, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: capsulegen generate <input.gltf> <output.gltf>")
		os.Exit(1)
	}

	m, err := mesh.LoadGLTF(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", args[0], err)
		os.Exit(1)
	}

	res, err := pipeline.New(cfg, logger.Log).Run(context.Background(), m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := export.Save(res.Records, args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", args[1], err)
		os.Exit(1)
	}

	fmt.Printf("Input:      %s\n", args[0])
	fmt.Printf("Segments:   %d (%d skipped, %d fallback hulls)\n",
		res.Stats.Segments, res.Stats.SkippedSegments, res.Stats.FallbackHulls)
	fmt.Printf("Candidates: %d\n", res.Stats.Candidates)
	fmt.Printf("Witnesses:  %d", res.Stats.Witnesses)
	if res.Stats.DroppedWitness > 0 {
		fmt.Printf(" (%d dropped)", res.Stats.DroppedWitness)
	}
	fmt.Println()
	fmt.Printf("Selected:   %d capsules (proven optimal: %v)\n",
		res.Stats.Selected, res.Stats.Proven)
	fmt.Printf("Output:     %s\n", args[1])
}

func cmdInspect(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: capsulegen inspect <input.gltf>")
		os.Exit(1)
	}

	m, err := mesh.LoadGLTF(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", args[0], err)
		os.Exit(1)
	}

	min, max := m.Bounds()
	fmt.Printf("Mesh:      %s\n", args[0])
	fmt.Printf("Vertices:  %d\n", len(m.Vertices))
	fmt.Printf("Triangles: %d\n", len(m.Triangles))
	fmt.Printf("Bones:     %d\n", len(m.Bones))
	fmt.Printf("Bounds:    [%.3f %.3f %.3f] .. [%.3f %.3f %.3f]\n",
		min.X(), min.Y(), min.Z(), max.X(), max.Y(), max.Z())
	fmt.Println()

	segments := segment.Split(m.Vertices, len(m.Bones), cfg.Segmentation.InfluenceThreshold)
	fmt.Printf("Segments (threshold %.2f):\n", cfg.Segmentation.InfluenceThreshold)
	for _, seg := range segments {
		name := fmt.Sprintf("bone %d", seg.Bone)
		if seg.Bone < len(m.Bones) && m.Bones[seg.Bone].Name != "" {
			name = m.Bones[seg.Bone].Name
		}
		fmt.Printf("  %-24s %d vertices\n", name, len(seg.Positions))
	}
}

func cmdSolve(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: capsulegen solve <problem.dzn>")
		os.Exit(1)
	}

	mz := &solver.MiniZinc{
		Binary:    cfg.Solver.Binary,
		Backend:   cfg.Solver.MiniZincSolver,
		ModelPath: cfg.Solver.ModelPath,
		TimeLimit: cfg.Solver.TimeLimit,
	}
	sol, err := mz.SolveFile(context.Background(), args[0], 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Print("Capsule indices: [")
	for i, c := range sol.Selected {
		if i > 0 {
			fmt.Print(", ")
		}
		fmt.Print(c + 1)
	}
	fmt.Println("]")
	fmt.Printf("Objective: %g\n", sol.Objective)
	fmt.Printf("Proven optimal: %v\n", sol.Proven)
}
