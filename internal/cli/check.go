package cli

import (
	"fmt"

	"github.com/ppiankov/tweetrelay/internal/config"
	"github.com/ppiankov/tweetrelay/internal/relay"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single poll cycle now",
	RunE:  checkAction,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func checkAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rly, err := buildRelay(cfg)
	if err != nil {
		return err
	}

	res := rly.RunOnce(cmd.Context())
	switch res.Outcome {
	case relay.OutcomeDelivered:
		fmt.Printf("Delivered %s\n", res.Post.URL)
	case relay.OutcomeFallbackUsed:
		if res.Post != nil {
			fmt.Printf("Delivered via fallback: %s\n", res.Post.URL)
		} else {
			fmt.Println("Rate limited; fallback feed had nothing new.")
		}
	case relay.OutcomeNoNewPost:
		fmt.Println("No new post.")
	case relay.OutcomeError:
		return res.Err
	}
	return nil
}
