// Command approval-bot runs the Telegram media approval bot.
//
// Photos and videos posted in the main chat are removed, collected into
// submissions (albums are debounced into one) and forwarded to a moderation
// chat. Moderators approve, reject or selectively approve each submission
// with inline buttons; approved media is republished in the main chat with
// attribution to the original sender.
//
// Configuration comes from an optional config file, APPROVAL_* environment
// variables and command-line flags, in increasing order of precedence.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Sahanuj/telegram-post-approve/internal/config"
)

// Set at build time via -ldflags "-X main.version=...".
var version = "dev"

var (
	configFile string
	v          = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "approval-bot",
	Short: "Telegram bot that routes member media through moderator approval",
	Long: `approval-bot deletes photos and videos posted by members of the main chat,
forwards them to a moderation chat and republishes whatever the moderators
approve.

Without a subcommand it runs serve.

Examples:
  approval-bot --config bot.yaml
  approval-bot serve --config bot.yaml
  APPROVAL_MODE=webhook approval-bot serve
  approval-bot migrate --sqlite-path /var/lib/approval/approvals.db`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (yaml, toml or json)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("approval-bot failed")
		os.Exit(1)
	}
}

// mustBind ties a flag to a config key so an explicitly set flag overrides
// file and environment values.
func mustBind(vp *viper.Viper, fs *pflag.FlagSet, key, flag string) {
	if err := vp.BindPFlag(key, fs.Lookup(flag)); err != nil {
		panic(err)
	}
}
