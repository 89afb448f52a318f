package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/querytrio/querytrio/config"
	"github.com/querytrio/querytrio/dbexec"
	"github.com/querytrio/querytrio/strategy"
	"github.com/querytrio/querytrio/workflow"
)

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Run one interactive query round in the terminal",
		Long: `Ask submits a question, prints the generated candidates, and reads
your decision from stdin:

  1 | 2 | 3        execute the basic, optimized, or advanced candidate
  r <feedback>     regenerate all candidates with feedback
  r:basic <text>   regenerate only one candidate (basic/optimized/advanced)
  c                cancel the round`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader(slog.Default()).Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runAsk(cmd.Context(), cfg, strings.Join(args, " "))
		},
	}
	return cmd
}

func runAsk(ctx context.Context, cfg *config.Config, question string) error {
	engine, _, cleanup, err := buildEngine(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := engine.SubmitQuestion(ctx, question)
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	for res.Phase == workflow.PhaseAwaitingFeedback {
		printCandidates(res.Snapshot)

		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}

		decision, err := parseDecision(strings.TrimSpace(line))
		if err != nil {
			fmt.Println(err)
			continue
		}

		res, err = engine.SubmitDecision(ctx, decision)
		if err != nil && res == nil {
			fmt.Println(err)
			res = &workflow.RoundResult{Phase: workflow.PhaseAwaitingFeedback, Snapshot: engine.Snapshot()}
			continue
		}
		if err != nil {
			fmt.Printf("round failed: %v\n", err)
			return nil
		}
	}

	switch res.Phase {
	case workflow.PhaseDone:
		fmt.Printf("\nExecuted (%s, attempt %d):\n  %s\n\n",
			res.Executed.Origin, res.Executed.Attempt, res.Executed.Text)
		printResult(res.Result)
	case workflow.PhaseCancelled:
		fmt.Println("cancelled")
	}
	return nil
}

var originIndex = map[string]strategy.Origin{
	"1": strategy.OriginBasic,
	"2": strategy.OriginOptimized,
	"3": strategy.OriginAdvanced,
}

func parseDecision(line string) (workflow.Decision, error) {
	if origin, ok := originIndex[line]; ok {
		return workflow.Execute(origin), nil
	}
	if line == "c" {
		return workflow.Cancel(), nil
	}
	if rest, ok := strings.CutPrefix(line, "r:"); ok {
		name, feedback, found := strings.Cut(rest, " ")
		if !found || strings.TrimSpace(feedback) == "" {
			return workflow.Decision{}, fmt.Errorf("usage: r:<origin> <feedback>")
		}
		origin := strategy.ParseOrigin(name)
		if origin == "" {
			return workflow.Decision{}, fmt.Errorf("unknown origin %q (basic, optimized, advanced)", name)
		}
		return workflow.Regenerate(strings.TrimSpace(feedback), origin), nil
	}
	if feedback, ok := strings.CutPrefix(line, "r "); ok {
		return workflow.Regenerate(strings.TrimSpace(feedback), ""), nil
	}
	return workflow.Decision{}, fmt.Errorf("unrecognized input %q (1/2/3, r <feedback>, r:<origin> <feedback>, c)", line)
}

func printCandidates(snap workflow.Snapshot) {
	fmt.Println()
	for i, origin := range strategy.AllOrigins() {
		cand, ok := snap.Candidates[origin]
		if !ok {
			fmt.Printf("[%d] %s: (generation failed)\n", i+1, origin)
			continue
		}
		fmt.Printf("[%d] %s:\n    %s\n", i+1, origin, cand.Text)
		for _, note := range cand.Notes {
			fmt.Printf("    note: %s\n", note)
		}
	}
	fmt.Println()
}

func printResult(result *dbexec.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(result.Columns, "\t"))
	for _, row := range result.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
	fmt.Printf("\n%s in %s\n", result.Summary(), result.Duration)
}
