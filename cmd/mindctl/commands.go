package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

type budgetView struct {
	Priority   float64 `json:"priority"`
	Durability float64 `json:"durability"`
	Quality    float64 `json:"quality"`
}

type conceptView struct {
	Term      string     `json:"term"`
	Budget    budgetView `json:"budget"`
	TaskLinks []struct {
		Task struct {
			ID string `json:"id"`
		} `json:"task"`
	} `json:"task_links"`
	TermLinks []struct {
		Target string     `json:"target"`
		Budget budgetView `json:"budget"`
	} `json:"term_links"`
}

func printConcept(w io.Writer, c conceptView) {
	fmt.Fprintf(w, "%-40s p=%.3f d=%.3f q=%.3f tasks=%d links=%d\n",
		c.Term, c.Budget.Priority, c.Budget.Durability, c.Budget.Quality, len(c.TaskLinks), len(c.TermLinks))
}

var budgetFlags struct {
	priority, durability, quality float64
}

func addBudgetFlags(cmd *cobra.Command) {
	cmd.Flags().Float64VarP(&budgetFlags.priority, "priority", "p", 0.5, "priority in [0,1]")
	cmd.Flags().Float64VarP(&budgetFlags.durability, "durability", "d", 0.5, "durability in [0,1]")
	cmd.Flags().Float64VarP(&budgetFlags.quality, "quality", "q", 0.5, "quality in [0,1]")
}

func budgetBody(extra map[string]any) map[string]any {
	body := map[string]any{
		"priority":   budgetFlags.priority,
		"durability": budgetFlags.durability,
		"quality":    budgetFlags.quality,
	}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show memory stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		var s struct {
			Memory struct {
				Time            int64   `json:"time"`
				Concepts        int     `json:"concepts"`
				Capacity        int     `json:"capacity"`
				Mass            float64 `json:"mass"`
				AveragePriority float64 `json:"average_priority"`
				EmptyLevels     int     `json:"empty_levels"`
				Subconscious    int     `json:"subconscious"`
				Levels          string  `json:"levels"`
			} `json:"memory"`
			Events *struct {
				New        int64            `json:"new"`
				Forgotten  int64            `json:"forgotten"`
				Remembered int64            `json:"remembered"`
				Fired      int64            `json:"fired"`
				Reasons    map[string]int64 `json:"forget_reasons"`
			} `json:"events"`
		}
		if _, err := call("GET", "/api/stats", nil, &s); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		m := s.Memory
		fmt.Fprintf(out, "cycle:        %d\n", m.Time)
		fmt.Fprintf(out, "concepts:     %d/%d\n", m.Concepts, m.Capacity)
		fmt.Fprintf(out, "mass:         %.4f (avg %.4f)\n", m.Mass, m.AveragePriority)
		fmt.Fprintf(out, "empty levels: %d\n", m.EmptyLevels)
		if m.Subconscious >= 0 {
			fmt.Fprintf(out, "subconscious: %d\n", m.Subconscious)
		}
		if e := s.Events; e != nil {
			fmt.Fprintf(out, "events:       new=%d fired=%d remembered=%d forgotten=%d\n", e.New, e.Fired, e.Remembered, e.Forgotten)
			for reason, n := range e.Reasons {
				fmt.Fprintf(out, "  forgotten/%s: %d\n", reason, n)
			}
		}
		return nil
	},
}

var conceptsLimit int

var conceptsCmd = &cobra.Command{
	Use:   "concepts",
	Short: "List concepts, highest priority level first",
	RunE: func(cmd *cobra.Command, args []string) error {
		var list []conceptView
		if _, err := call("GET", "/api/concepts?limit="+strconv.Itoa(conceptsLimit), nil, &list); err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Memory is empty.")
			return nil
		}
		for _, c := range list {
			printConcept(cmd.OutOrStdout(), c)
		}
		return nil
	},
}

var conceptCmd = &cobra.Command{
	Use:   "concept <term>",
	Short: "Show one concept and its links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var c conceptView
		if _, err := call("GET", "/api/concepts/"+url.PathEscape(args[0]), nil, &c); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printConcept(out, c)
		for _, l := range c.TermLinks {
			fmt.Fprintf(out, "  -> %-36s p=%.3f\n", l.Target, l.Budget.Priority)
		}
		return nil
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <term>",
	Short: "Remove a concept from memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := call("DELETE", "/api/concepts/"+url.PathEscape(args[0]), nil, nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", args[0])
		return nil
	},
}

var activateCmd = &cobra.Command{
	Use:   "activate <term>",
	Short: "Reinforce a concept, creating it if needed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var c conceptView
		status, err := call("POST", "/api/concepts", budgetBody(map[string]any{"term": args[0]}), &c)
		if err != nil {
			return err
		}
		if status == 202 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s was not admitted\n", args[0])
			return nil
		}
		printConcept(cmd.OutOrStdout(), c)
		return nil
	},
}

var taskTruth struct {
	frequency, confidence float64
}

var taskCmd = &cobra.Command{
	Use:   "task <term>",
	Short: "Input a judgement about a term",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var t struct {
			ID      string    `json:"id"`
			Created time.Time `json:"created"`
		}
		body := budgetBody(map[string]any{
			"term":       args[0],
			"frequency":  taskTruth.frequency,
			"confidence": taskTruth.confidence,
		})
		if _, err := call("POST", "/api/tasks", body, &t); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "task %s %%%.2f;%.2f%% id=%s\n", args[0], taskTruth.frequency, taskTruth.confidence, t.ID)
		return nil
	},
}

var linkCmd = &cobra.Command{
	Use:   "link <from> <to>",
	Short: "Link two terms in both directions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := call("POST", "/api/links", budgetBody(map[string]any{"from": args[0], "to": args[1]}), nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "linked %s <-> %s\n", args[0], args[1])
		return nil
	},
}

var cycleCount int

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run cycles now",
	RunE: func(cmd *cobra.Command, args []string) error {
		var r struct {
			Ran   int    `json:"ran"`
			Time  int64  `json:"time"`
			Error string `json:"error"`
		}
		if _, err := call("POST", "/api/cycles", map[string]int{"n": cycleCount}, &r); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ran %d cycles, now at %d\n", r.Ran, r.Time)
		if r.Error != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "last cycle failed: %s\n", r.Error)
		}
		return nil
	},
}

var peekCmd = &cobra.Command{
	Use:   "peek",
	Short: "Show the concept the next cycle would fire",
	RunE: func(cmd *cobra.Command, args []string) error {
		var c conceptView
		if _, err := call("GET", "/api/peek", nil, &c); err != nil {
			return err
		}
		printConcept(cmd.OutOrStdout(), c)
		return nil
	},
}

func init() {
	conceptsCmd.Flags().IntVarP(&conceptsLimit, "limit", "n", 20, "max concepts to list")
	cycleCmd.Flags().IntVarP(&cycleCount, "count", "n", 1, "cycles to run")

	addBudgetFlags(activateCmd)
	addBudgetFlags(taskCmd)
	addBudgetFlags(linkCmd)
	taskCmd.Flags().Float64VarP(&taskTruth.frequency, "frequency", "f", 1.0, "truth frequency in [0,1]")
	taskCmd.Flags().Float64VarP(&taskTruth.confidence, "confidence", "c", 0.9, "truth confidence in [0,1)")
}
