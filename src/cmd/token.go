package cmd

import (
	"errors"
	"fmt"
	"time"

	"imgtext-server-go/src/core/auth"

	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <client-id>",
	Short: "Issue a bearer token for the upload endpoints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		secret := config.Server.Auth.Secret
		if secret == "" {
			return errors.New("server.auth.secret 未配置，也可以通过 IMGTEXT_AUTH_SECRET 设置")
		}
		ttl := tokenTTL
		if ttl <= 0 {
			ttl = config.TokenTTLDuration()
		}

		at, err := auth.NewAuthToken(secret, ttl)
		if err != nil {
			return err
		}
		token, expires, err := at.GenerateToken(args[0])
		if err != nil {
			return err
		}

		if !config.Server.Auth.Enabled {
			logger.Warn("server.auth.enabled 为 false，服务端当前不校验 token")
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		logger.Info("token 已签发", map[string]interface{}{
			"client_id":  args[0],
			"expires_at": expires.Format(time.RFC3339),
		})
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "有效期，默认使用 server.auth.token_ttl")
	rootCmd.AddCommand(tokenCmd)
}
