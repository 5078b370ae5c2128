package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"dynamodb-backup-export/internal/backup"
)

// printResponse renders the job response to stdout in the selected
// output format.
func printResponse(resp backup.Response) error {
	switch outputFormat {
	case "yaml":
		data, err := yaml.Marshal(resp)
		if err != nil {
			return fmt.Errorf("failed to render response: %w", err)
		}
		fmt.Print(string(data))
	case "summary":
		printSummary(resp)
	default:
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render response: %w", err)
		}
		fmt.Println(string(data))
	}
	return nil
}

// printSummary writes a one-line human-readable result, colored when
// stdout is a terminal.
func printSummary(resp backup.Response) {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}

	if resp.OK() {
		status := color.New(color.FgGreen, color.Bold).Sprint("OK")
		fmt.Printf("%s %s\n", status, resp.Body.Message)
		if resp.Body.ExportArn != "" {
			fmt.Printf("   export: %s\n", resp.Body.ExportArn)
		}
		if resp.Body.S3Location != "" {
			fmt.Printf("   destination: %s\n", resp.Body.S3Location)
		}
		return
	}

	status := color.New(color.FgRed, color.Bold).Sprint("FAILED")
	fmt.Printf("%s %s\n", status, resp.Body.Error)
}
