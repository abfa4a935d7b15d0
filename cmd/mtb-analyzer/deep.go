package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var deepAnalyzeCmd = &cobra.Command{
	Use:   "deep-analyze <attachment-id>",
	Short: "Analyze an attachment together with its item",
	Long: `Deep-analyze downloads an attachment into the cache, converts it to
text and asks the deep model for a summary in the context of its item. The
result is stored on the attachment; the item's score is not changed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid attachment id %q", args[0])
		}

		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		att, err := a.pipeline.DeepAnalyze(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n\n%s\n", att.Name, att.DeepAnalysis.Model, att.DeepAnalysis.Text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deepAnalyzeCmd)
}
