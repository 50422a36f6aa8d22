package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/consentscan/internal/analyzer"
)

const checkTimeout = 10 * time.Second

type checkResult struct {
	Component string `json:"component"`
	OK        bool   `json:"ok"`
	Detail    string `json:"detail,omitempty"`
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the database, queue and analyzer are reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			checkCtx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()

			var results []checkResult
			err := ctx.withBackends(checkCtx, func(b *backends) error {
				results = append(results,
					probe("database", func() error { return b.store.Ping(checkCtx) }),
					probe("queue", func() error { return b.queue.Ping(checkCtx) }),
				)
				return nil
			})
			if err != nil {
				results = append(results, checkResult{Component: "backends", Detail: err.Error()})
			}

			a, err := analyzer.New(ctx.config.Analyzer)
			if err != nil {
				results = append(results, checkResult{Component: "analyzer", Detail: err.Error()})
			} else if r, ok := a.(readinessChecker); ok {
				results = append(results, probe("analyzer "+a.Name(), func() error { return r.Ready(checkCtx) }))
			} else {
				results = append(results, checkResult{Component: "analyzer " + a.Name(), OK: true, Detail: "in-process"})
			}

			failed := 0
			for _, r := range results {
				if !r.OK {
					failed++
				}
			}

			if jsonOutput {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					state := "ok"
					if !r.OK {
						state = "FAILED"
					}
					rows = append(rows, []string{r.Component, state, r.Detail})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{{title: "Component"}, {title: "Status"}, {title: "Detail"}}, rows))
			}

			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func probe(component string, fn func() error) checkResult {
	if err := fn(); err != nil {
		return checkResult{Component: component, Detail: err.Error()}
	}
	return checkResult{Component: component, OK: true}
}
