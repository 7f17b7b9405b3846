//
//  Copyright © Manetu Inc. All rights reserved.
//

package parties

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/manetu/ocpihub/pkg/identity"
	"github.com/urfave/cli/v3"
)

// Result represents the outcome of validating one seed file.
type Result struct {
	File    string
	Valid   bool
	Error   error
	Parties []string // "key hash" per registered party
}

// Validate runs the parties validate command.
func Validate(ctx context.Context, cmd *cli.Command) error {
	files := cmd.StringSlice("file")
	if len(files) == 0 {
		return fmt.Errorf("no files specified, use --file/-f to specify seed files to validate")
	}
	return report(os.Stdout, check(files))
}

// check loads every file into its own empty registry, so each file is
// validated on its own.
func check(files []string) []Result {
	results := make([]Result, 0, len(files))
	for _, file := range files {
		result := Result{File: file}

		seed, err := identity.LoadSeed(file)
		if err != nil {
			result.Error = err
			results = append(results, result)
			continue
		}

		parties, err := seed.Apply(identity.NewRegistry())
		if err != nil {
			result.Error = err
			results = append(results, result)
			continue
		}

		result.Valid = true
		for _, p := range parties {
			result.Parties = append(result.Parties, fmt.Sprintf("%s %s", p.Key(), p.Hash))
		}
		results = append(results, result)
	}
	return results
}

func report(w io.Writer, results []Result) error {
	fmt.Fprintln(w, "Validating registry seed files...")
	fmt.Fprintln(w)

	failures := 0
	for _, r := range results {
		if !r.Valid {
			failures++
			fmt.Fprintf(w, "✗ %s\n", r.File)
			fmt.Fprintf(w, "  Error: %s\n\n", r.Error)
			continue
		}
		fmt.Fprintf(w, "✓ %s: %d party(ies)\n", r.File, len(r.Parties))
		for _, line := range r.Parties {
			fmt.Fprintf(w, "  %s\n", line)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	if failures > 0 {
		fmt.Fprintf(w, "Validation failed: %d of %d file(s) with errors\n", failures, len(results))
		return fmt.Errorf("validation failed: %d file(s) with errors", failures)
	}
	fmt.Fprintf(w, "All %d file(s) valid\n", len(results))
	return nil
}
