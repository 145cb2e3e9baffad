package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gokatarajesh/trivia-arena/internal/question"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bankctl",
		Short:         "Inspect and validate trivia question banks",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newShowCmd())
	return cmd
}

// newValidateCmd loads a bank the same way the server does at startup.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Check a question bank for errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := question.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %q, %d questions, %s per question, base %d, bonus up to %d\n",
				bank.Title, bank.Len(), bank.TimeLimit, bank.BaseScore, bank.FastBonusMax)
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	var (
		answers bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Print the questions of a bank in play order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := question.Load(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeBankJSON(cmd.OutOrStdout(), bank, answers)
			}
			writeBankText(cmd.OutOrStdout(), bank, answers)
			return nil
		},
	}
	cmd.Flags().BoolVar(&answers, "answers", false, "include correct answers")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print normalized JSON")
	return cmd
}

func writeBankText(w io.Writer, bank *question.Bank, answers bool) {
	fmt.Fprintf(w, "%s (%d questions)\n", bank.Title, bank.Len())
	for i, q := range bank.Questions() {
		fmt.Fprintf(w, "%2d. [%s] %s\n", i+1, q.ID, q.Prompt)
		fmt.Fprintf(w, "    choices: %s\n", strings.Join(q.Choices, " | "))
		if answers {
			fmt.Fprintf(w, "    answer:  %s\n", q.Answer)
		}
	}
}

type bankView struct {
	Title        string         `json:"title"`
	TimeLimitSec int            `json:"time_limit_sec"`
	BaseScore    int            `json:"base_score"`
	FastBonusMax int            `json:"fast_bonus_max"`
	Questions    []questionView `json:"questions"`
}

type questionView struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Choices  []string `json:"choices"`
	Answer   string   `json:"answer,omitempty"`
}

func writeBankJSON(w io.Writer, bank *question.Bank, answers bool) error {
	view := bankView{
		Title:        bank.Title,
		TimeLimitSec: int(bank.TimeLimit.Seconds()),
		BaseScore:    bank.BaseScore,
		FastBonusMax: bank.FastBonusMax,
	}
	for _, q := range bank.Questions() {
		qv := questionView{ID: q.ID, Question: q.Prompt, Choices: q.Choices}
		if answers {
			qv.Answer = q.Answer
		}
		view.Questions = append(view.Questions, qv)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
