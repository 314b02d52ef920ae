package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/tweetrelay/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with an example config file",
	RunE:  initAction,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}

	if !wrote {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
		return nil
	}
	fmt.Printf("Initialized %s. Set %s and %s, then edit %s.\n",
		configDir, config.DefaultBearerTokenEnv, config.DefaultWebhookURLEnv, config.DefaultConfigFile)
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# tweetrelay configuration

watch:
  handle: NIKKE_kr
  interval: 10m
  # all: relay every new post, highlight keyword matches
  # keyword_match: relay only posts containing a keyword
  delivery: all
  important_keywords:
    - "솔로 레이드"
    - "협동작전"
    - "업데이트"
    - "점검"
    - "이벤트"
    - "긴급"

twitter:
  bearer_token_env: TWITTER_BEARER_TOKEN

fallback:
  feed_url: "https://rss.app/feeds/v1.1/MTI3E57SlYF7BAgl.json"

discord:
  webhook_url_env: DISCORD_WEBHOOK_URL
`
