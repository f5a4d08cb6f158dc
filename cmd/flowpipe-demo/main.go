// Command flowpipe-demo is a small Cobra CLI driving a toy frame pipeline,
// scoped to this package's single domain instead of a registry of example
// pipelines.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slytechs-repos/flowpipe"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "flowpipe-demo",
	Short:   "Drive a toy flowpipe pipeline from the command line",
	Version: version,
}

func main() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(runCmd, schemaCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type frame struct {
	Name string
	Tag  string
}

func buildPipeline() *flowpipe.Pipeline[frame] {
	dt := flowpipe.HandlerDataType[frame]()
	p := flowpipe.NewPipeline(dt)

	upper := flowpipe.NewProcessor[frame]("uppercase", 10, func(_ context.Context, f frame) (frame, error) {
		f.Name = strings.ToUpper(f.Name)
		return f, nil
	})
	_ = p.AddProcessor(upper)

	printer := flowpipe.NewOutputTransformer[frame]("stdout", 0, func(_ context.Context, f frame) error {
		fmt.Printf("%s [%s]\n", f.Name, f.Tag)
		return nil
	})
	_ = p.RegisterOutput(printer)

	return p
}

var runCmd = &cobra.Command{
	Use:   "run [names...]",
	Short: "Push each argument through the pipeline as a frame name",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{"alpha", "beta", "gamma"}
		}
		p := buildPipeline()
		in := flowpipe.NewInputTransformer[frame]("cli", 0)
		if err := flowpipe.RegisterInput(p, in); err != nil {
			return err
		}
		for _, name := range args {
			if err := in.Push(cmd.Context(), frame{Name: name, Tag: "cli"}); err != nil {
				return err
			}
		}
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the demo pipeline's topology",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := buildPipeline()
		schema := p.Schema()
		for _, n := range schema.Nodes {
			fmt.Printf("%-10s id=%-20s priority=%-4d enabled=%v\n", n.Kind, n.ID, n.Priority, n.Enabled)
		}
		for _, o := range schema.Outputs {
			fmt.Printf("%-10s id=%-20s priority=%-4d enabled=%v\n", "output", o.ID, o.Priority, o.Enabled)
		}
		return nil
	},
}
