package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/benbjohnson/pktgen"
	"github.com/benbjohnson/pktgen/z3"
	"github.com/davecgh/go-spew/spew"
	"gopkg.in/yaml.v3"
)

// GenerateCommand represents a command for generating test cases.
type GenerateCommand struct{}

// NewGenerateCommand returns a new instance of GenerateCommand.
func NewGenerateCommand() *GenerateCommand {
	return &GenerateCommand{}
}

// Run executes the "generate" subcommand.
func (cmd *GenerateCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pktgen-generate", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file")
	outPath := fs.String("o", "", "output file (default stdout)")
	verbose := fs.Bool("v", false, "verbose")
	debug := fs.Bool("debug", false, "dump parsed graphs")
	fs.Usage = cmd.usage
	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() == 0 {
		return fmt.Errorf("graph file required")
	} else if fs.NArg() > 1 {
		return fmt.Errorf("too many graph files specified")
	}

	log.SetFlags(0)
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	// Read run options, keeping defaults for unset fields.
	config := pktgen.DefaultConfig()
	if *configPath != "" {
		buf, err := os.ReadFile(*configPath)
		if err != nil {
			return err
		} else if err := yaml.Unmarshal(buf, &config); err != nil {
			return fmt.Errorf("parse config %s: %w", *configPath, err)
		}
	}

	// Read graph definitions.
	buf, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	var file graphFile
	if err := yaml.Unmarshal(buf, &file); err != nil {
		return fmt.Errorf("parse graphs %s: %w", fs.Arg(0), err)
	}

	parserGraph, err := file.Parser.build()
	if err != nil {
		return fmt.Errorf("parser graph: %w", err)
	}
	controlGraph, err := file.Control.build()
	if err != nil {
		return fmt.Errorf("control graph: %w", err)
	}

	if *debug {
		spew.Fdump(os.Stderr, parserGraph, controlGraph)
	}

	output := io.Writer(os.Stdout)
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		output = f
	}

	solver := z3.NewSolver()
	defer solver.Close()
	for _, v := range file.Vars {
		variable := pktgen.NewVarExpr(v.Name, v.Width)
		if v.Random {
			solver.RegisterRandomVar(variable)
		}
		if v.VLLength {
			solver.RegisterVLLengthVar(variable)
		}
		if v.PacketField {
			solver.RegisterPacketField(variable)
		}
	}

	generator := pktgen.NewTestCaseGenerator(
		config,
		parserGraph, controlGraph,
		solver,
		pktgen.NewTableCollector(),
		pktgen.NewJSONTestCaseWriter(output),
	)

	results, err := generator.Run(file.Parser.Start, file.Control.Start)
	if err != nil {
		return err
	}
	log.Printf("[generate] explored %d path(s), %d test case(s)", len(results), generator.Stats.NumTestCases)
	return nil
}

func (cmd *GenerateCommand) usage() {
	fmt.Fprintln(os.Stderr, `
usage: pktgen generate [arguments] [graph file]

Arguments:

	-config PATH
	    Run options as YAML.
	-o PATH
	    Write test cases to PATH instead of stdout.
	-debug
	    Dump the parsed graphs to stderr.
	-v
	    Enable verbose logging.
`[1:])
}

// graphFile is the YAML document holding both graphs and variable
// declarations for a run.
type graphFile struct {
	Parser  graphDef `yaml:"parser"`
	Control graphDef `yaml:"control"`
	Vars    []varDef `yaml:"vars"`
}

type graphDef struct {
	Start        string     `yaml:"start"`
	Nodes        []nodeDef  `yaml:"nodes"`
	Edges        []edgeDef  `yaml:"edges"`
	HeaderStacks []stackDef `yaml:"header_stacks"`
	Terminals    []string   `yaml:"terminals"`
}

type nodeDef struct {
	Name     string   `yaml:"name"`
	Extracts []string `yaml:"extracts"`
}

type edgeDef struct {
	Src   string        `yaml:"src"`
	Dst   string        `yaml:"dst"`
	Label string        `yaml:"label"`
	Error bool          `yaml:"error"`
	Cond  *conditionDef `yaml:"cond"`
}

type stackDef struct {
	Name string `yaml:"name"`
	Size int    `yaml:"size"`
}

type varDef struct {
	Name        string `yaml:"name"`
	Width       uint   `yaml:"width"`
	Random      bool   `yaml:"random"`
	VLLength    bool   `yaml:"vl_length"`
	PacketField bool   `yaml:"packet_field"`
}

// conditionDef is a single comparison between a variable and a constant.
type conditionDef struct {
	Var   string `yaml:"var"`
	Width uint   `yaml:"width"`
	Op    string `yaml:"op"`
	Value uint64 `yaml:"value"`
}

var binaryOpsByName = map[string]pktgen.BinaryOp{
	"add": pktgen.ADD,
	"sub": pktgen.SUB,
	"and": pktgen.AND,
	"or":  pktgen.OR,
	"xor": pktgen.XOR,
	"eq":  pktgen.EQ,
	"ne":  pktgen.NE,
	"ult": pktgen.ULT,
	"ule": pktgen.ULE,
	"slt": pktgen.SLT,
	"sle": pktgen.SLE,
}

func (d *conditionDef) build() (pktgen.Expr, error) {
	op, ok := binaryOpsByName[d.Op]
	if !ok {
		return nil, fmt.Errorf("unknown operation: %q", d.Op)
	}
	width := d.Width
	if width == 0 {
		width = pktgen.Width8
	}
	return pktgen.NewBinaryExpr(op,
		pktgen.NewVarExpr(d.Var, width),
		pktgen.NewConstantExpr(d.Value, width),
	), nil
}

func (d *graphDef) build() (*pktgen.Graph, error) {
	g := pktgen.NewGraph()
	for _, n := range d.Nodes {
		g.AddNode(&pktgen.Node{Name: n.Name, HeaderStackExtracts: n.Extracts})
	}
	for _, e := range d.Edges {
		edge := &pktgen.Edge{Src: e.Src, Dst: e.Dst, Label: e.Label, ErrorTransition: e.Error}
		if e.Cond != nil {
			cond, err := e.Cond.build()
			if err != nil {
				return nil, fmt.Errorf("edge %s->%s: %w", e.Src, e.Dst, err)
			}
			edge.Condition = cond
		}
		g.AddEdge(edge)
	}
	for _, hs := range d.HeaderStacks {
		g.AddHeaderStack(hs.Name, hs.Size)
	}
	for _, name := range d.Terminals {
		g.AddTerminal(name)
	}
	return g, nil
}
