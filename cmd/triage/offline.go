package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/triage/internal/ingest"
	"github.com/MikeSquared-Agency/triage/internal/logging"
	"github.com/MikeSquared-Agency/triage/internal/processor"
	"github.com/MikeSquared-Agency/triage/internal/query"
	"github.com/MikeSquared-Agency/triage/internal/store"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <csv>",
	Short: "Classify a CSV export and print the records as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadCSV(cmd, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), st.All())
	},
}

var replyJSON bool

var replyCmd = &cobra.Command{
	Use:   "reply <csv> <record-id>",
	Short: "Draft a reply for one record of a CSV export",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadCSV(cmd, args[0])
		if err != nil {
			return err
		}
		rec, ok := st.ByID(args[1])
		if !ok {
			return fmt.Errorf("record %s not found", args[1])
		}
		gen, err := newGenerator(cfg)
		if err != nil {
			return err
		}

		draft := gen.Generate(rec)
		out := cmd.OutOrStdout()
		if replyJSON {
			return printJSON(out, map[string]any{
				"draft":        draft,
				"quickReplies": gen.QuickReplies(rec),
			})
		}
		fmt.Fprintf(out, "Case: %s\nAgent: %s\n\n%s\n\nQuick replies:\n", draft.CaseID, draft.Agent, draft.Body)
		for _, line := range gen.QuickReplies(rec) {
			fmt.Fprintf(out, "- %s\n", line)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <csv>",
	Short: "Print summary statistics for a CSV export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadCSV(cmd, args[0])
		if err != nil {
			return err
		}
		engine := query.New(st)
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"stats":  engine.Stats(),
			"volume": engine.Volume(),
		})
	},
}

func init() {
	replyCmd.Flags().BoolVar(&replyJSON, "json", false, "print the draft and quick replies as JSON")
}

// loadCSV runs one ingest of path into a fresh store.
func loadCSV(cmd *cobra.Command, path string) (*store.Store, error) {
	st := store.New(logging.New("store"))
	proc := processor.New(processor.Deps{
		Store:      st,
		Classifier: newClassifier(cfg),
		Logger:     logging.New("processor"),
	}, processor.Options{Workers: cfg.Workers})

	rep := proc.Ingest(cmd.Context(), ingest.NewFileSource(path, logging.New("ingest")))
	if rep.Err != nil {
		return nil, rep.Err
	}
	return st, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
