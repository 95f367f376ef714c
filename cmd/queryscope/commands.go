package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a brand project",
	Long: `Create a brand project.

Examples:
  queryscope create --name "Acme Launch" --brand Acme --domain acme.com --industry "developer tools"
  queryscope create --name "Acme Launch" --brand Acme --competitors "Globex,Initech"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		brand, _ := cmd.Flags().GetString("brand")
		domain, _ := cmd.Flags().GetString("domain")
		industry, _ := cmd.Flags().GetString("industry")
		description, _ := cmd.Flags().GetString("description")
		competitorsStr, _ := cmd.Flags().GetString("competitors")

		if name == "" || brand == "" {
			return fmt.Errorf("--name and --brand are required")
		}

		var competitors []string
		if competitorsStr != "" {
			competitors = strings.Split(competitorsStr, ",")
			for i := range competitors {
				competitors[i] = strings.TrimSpace(competitors[i])
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/projects", map[string]any{
			"name":        name,
			"brand_name":  brand,
			"domain":      domain,
			"industry":    industry,
			"description": description,
			"competitors": competitors,
		})
		if err != nil {
			return err
		}

		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Created project %v", result["id"])
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate <project-id>",
	Short: "Generate a fresh batch of queries for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Generating %d queries (this can take a while)", count)
		resp, err := client.post(cmd.Context(), "/projects/"+args[0]+"/generate", map[string]any{"count": count})
		if err != nil {
			return err
		}

		var result struct {
			Count      int   `json:"count"`
			DurationMs int64 `json:"duration_ms"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Generated %d queries in %dms", result.Count, result.DurationMs)
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <project-id>",
	Short: "Analyze a project's pending queries",
	Long: `Analyze a project's pending queries for brand mentions and sources.

Safe to re-run: completed queries are skipped, errored ones are retried.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Analyzing queries (this can take a while)")
		resp, err := client.post(cmd.Context(), "/projects/"+args[0]+"/analyze", map[string]any{})
		if err != nil {
			return err
		}

		var result struct {
			Analyzed int `json:"analyzed"`
			Errors   int `json:"errors"`
			Total    int `json:"total"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Errors > 0 {
			printWarning("Analyzed %d of %d queries (%d errors)", result.Analyzed, result.Total, result.Errors)
		} else {
			printSuccess("Analyzed %d of %d queries", result.Analyzed, result.Total)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <project-id>",
	Short: "Show a project's status and query counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/projects/"+args[0]+"/status")
		if err != nil {
			return err
		}

		var result struct {
			Status        string         `json:"status"`
			QueryCount    int            `json:"query_count"`
			AnalyzedCount int            `json:"analyzed_count"`
			Queries       map[string]int `json:"queries"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printStatus("Project", "%s", result.Status)
		printStatus("Queries", "%d generated, %d analyzed", result.QueryCount, result.AnalyzedCount)
		for _, st := range []string{"pending", "analyzing", "complete", "error"} {
			if n, ok := result.Queries[st]; ok {
				printStatus(st, "%d", n)
			}
		}

		// Limiter snapshot helps explain why a run looks stalled.
		if resp, err := client.get(cmd.Context(), "/ratelimit"); err == nil {
			var rl struct {
				QueueLength          int `json:"queue_length"`
				RequestsInLastMinute int `json:"requests_in_last_minute"`
				RequestsPerMinute    int `json:"requests_per_minute"`
			}
			if err := decodeJSON(resp, &rl); err == nil {
				printStatus("Rate limit", "%d/%d requests this minute, %d queued",
					rl.RequestsInLastMinute, rl.RequestsPerMinute, rl.QueueLength)
			}
		}
		return nil
	},
}

func init() {
	createCmd.Flags().String("name", "", "project name")
	createCmd.Flags().String("brand", "", "brand name")
	createCmd.Flags().String("domain", "", "brand website domain")
	createCmd.Flags().String("industry", "", "industry the brand operates in")
	createCmd.Flags().String("description", "", "short brand description")
	createCmd.Flags().String("competitors", "", "comma-separated competitor names")

	generateCmd.Flags().Int("count", 50, "number of queries to generate")
}
