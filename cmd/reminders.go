package main

import (
	"encoding/json"
	"os"

	"momoinvoice/internal/common"
	"momoinvoice/internal/logger"
	"momoinvoice/internal/services"

	"github.com/spf13/cobra"
)

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Payment reminder operations",
}

var remindersRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Send every reminder that is due now",
	Long: `Run one reminder sweep and print the results as JSON.

With --test each due reminder is rendered and validated but neither sent
nor recorded, so the sweep can be repeated safely.`,
	Example: `  momoinvoice reminders run
  momoinvoice reminders run --business-id 0b6f3f0e-8f3a-4a52-9d0f-3a4c1f6f2b11 --test`,
	Args: cobra.NoArgs,
	RunE: runReminders,
}

func init() {
	remindersRunCmd.Flags().String("business-id", "", "limit the sweep to one business")
	remindersRunCmd.Flags().Bool("test", false, "render reminders without sending or recording them")
	remindersCmd.AddCommand(remindersRunCmd)
}

func runReminders(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("reminders")

	opts := services.RunOptions{}
	if raw, _ := cmd.Flags().GetString("business-id"); raw != "" {
		businessID, err := common.ValidateUUID(raw, "business-id")
		if err != nil {
			return err
		}
		opts.BusinessID = &businessID
	}
	opts.Test, _ = cmd.Flags().GetBool("test")

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.reminders.RunDue(cmd.Context(), opts)
	if err != nil {
		return err
	}
	log.Info().Int("sent", result.Sent).Int("failed", result.Failed).Bool("test", opts.Test).Msg("reminder sweep finished")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
