package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/arden/fieldsync/internal/output"
	"github.com/arden/fieldsync/internal/syncclient"
	"github.com/arden/fieldsync/internal/syncconfig"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:     "auth",
	Short:   "Manage sync authentication",
	GroupID: "system",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the review server",
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL := syncconfig.GetServerURL()
		if serverURL == "" {
			output.Error("no server configured (set FIELDSYNC_URL or sync.url in config)")
			return fmt.Errorf("no server configured")
		}
		client := syncclient.New(serverURL, "", "")

		fmt.Print("Email: ")
		reader := bufio.NewReader(os.Stdin)
		email, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(email)
		if email == "" {
			return fmt.Errorf("email required")
		}

		resp, err := client.LoginStart(email)
		if err != nil {
			output.Error("login start: %v", err)
			return err
		}

		fmt.Printf("Open %s and enter code: %s\n", resp.VerificationURI, resp.UserCode)

		interval := time.Duration(resp.Interval) * time.Second
		if interval < time.Second {
			interval = 5 * time.Second
		}

		for {
			time.Sleep(interval)

			poll, err := client.LoginPoll(resp.DeviceCode)
			if err != nil {
				output.Error("login poll: %v", err)
				return err
			}

			switch poll.Status {
			case "pending":
				fmt.Print(".")
				continue
			case "complete":
				fmt.Println()

				deviceID, err := syncconfig.GetDeviceID()
				if err != nil {
					return fmt.Errorf("get device id: %w", err)
				}

				auth := &syncconfig.Auth{DeviceID: deviceID}
				if poll.APIKey != nil {
					auth.APIKey = *poll.APIKey
				}
				if poll.UserID != nil {
					auth.ReviewerID = *poll.UserID
				}

				if err := syncconfig.SaveAuth(auth); err != nil {
					output.Error("save credentials: %v", err)
					return err
				}

				output.Success("Logged in as %s", email)
				return nil
			default:
				return fmt.Errorf("unexpected poll status: %s", poll.Status)
			}
		}
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out from the review server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := syncconfig.ClearAuth(); err != nil {
			output.Error("logout: %v", err)
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, err := syncconfig.LoadAuth()
		if err != nil {
			output.Error("load auth: %v", err)
			return err
		}

		if auth.APIKey == "" {
			fmt.Println("Not logged in.")
			return nil
		}

		keyPrefix := auth.APIKey
		if len(keyPrefix) > 12 {
			keyPrefix = keyPrefix[:12] + "..."
		}

		fmt.Printf("Reviewer: %s\n", auth.ReviewerID)
		fmt.Printf("Server:   %s\n", syncconfig.GetServerURL())
		fmt.Printf("Key:      %s\n", keyPrefix)
		return nil
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
