package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openjobspec/ojs-retry/internal/catalog"
	"github.com/openjobspec/ojs-retry/internal/core"
	"github.com/openjobspec/ojs-retry/internal/engine"
	"github.com/openjobspec/ojs-retry/internal/remediation"
)

var classifyFlags struct {
	catalogPath string
	code        string
	asJSON      bool
}

var classifyCmd = &cobra.Command{
	Use:   "classify <message>",
	Short: "Classify an error message against the built-in and catalog categories",
	Example: `  ojs-retry classify "read ECONNRESET"
  ojs-retry classify --code 429 "slow down"
  ojs-retry classify --catalog catalog.yaml --json "CUDA out of memory"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringVar(&classifyFlags.catalogPath, "catalog", "", "catalog YAML file to apply before classifying")
	classifyCmd.Flags().StringVar(&classifyFlags.code, "code", "", "error code reported with the message")
	classifyCmd.Flags().BoolVar(&classifyFlags.asJSON, "json", false, "print the result as JSON")
}

// classification is the classify command's output.
type classification struct {
	Category        string           `json:"category"`
	Retryable       bool             `json:"retryable"`
	Policy          core.RetryPolicy `json:"policy"`
	DeadLetterAfter int              `json:"dead_letter_after"`
	Remediation     bool             `json:"remediation"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	e := engine.New(nil, engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if classifyFlags.catalogPath != "" {
		cat, err := catalog.Load(classifyFlags.catalogPath)
		if err != nil {
			if errors.Is(err, catalog.ErrCatalogNotFound) {
				return fmt.Errorf("catalog %s: %w", classifyFlags.catalogPath, err)
			}
			return err
		}
		if _, err := catalog.Apply(e, cat, remediation.NewRegistry()); err != nil {
			return fmt.Errorf("apply catalog: %w", err)
		}
	}

	c := e.Classify(core.FailureError{
		Message: strings.Join(args, " "),
		Code:    classifyFlags.code,
	})
	out := classification{
		Category:        c.Name,
		Retryable:       c.Retryable,
		Policy:          e.EffectivePolicy(c),
		DeadLetterAfter: c.DeadLetterThreshold(),
		Remediation:     c.Remediator != nil,
	}

	w := cmd.OutOrStdout()
	if classifyFlags.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(w, "category:     %s\n", out.Category)
	fmt.Fprintf(w, "retryable:    %t\n", out.Retryable)
	if out.Retryable {
		fmt.Fprintf(w, "max attempts: %d\n", out.Policy.MaxAttempts)
		fmt.Fprintf(w, "base delay:   %dms\n", out.Policy.BaseDelayMs)
		fmt.Fprintf(w, "max delay:    %dms\n", out.Policy.MaxDelayMs)
		fmt.Fprintf(w, "multiplier:   %g\n", out.Policy.BackoffMultiplier)
	} else {
		fmt.Fprintf(w, "dead letter:  after %d attempt(s)\n", out.DeadLetterAfter)
	}
	if out.Remediation {
		fmt.Fprintln(w, "remediation:  yes")
	}
	return nil
}
