// Handles the "afs env" command

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show the bootstrapped session",
	Long: `Resolve the session, negotiate the API version with the server and
report what was found, including the state of the blob credentials.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := afsEnv.Config()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "endpoint:         %s\n", cfg.Endpoint)
		fmt.Fprintf(out, "instance:         %s\n", cfg.InstanceID)
		fmt.Fprintf(out, "api version:      %s\n", cfg.APIVersion)
		fmt.Fprintf(out, "platform version: %s\n", cfg.PlatformVersion)
		if cfg.Token != "" {
			fmt.Fprintln(out, "auth:             token")
		} else {
			fmt.Fprintln(out, "auth:             auth_code")
		}

		blob := afsEnv.BlobCredential()
		switch {
		case blob.Check() == nil:
			fmt.Fprintf(out, "blob:             %s (bucket %s, record %s)\n", blob.Endpoint, blob.BucketName, blob.BlobRecordID)
		case afsEnv.BlobResolutionErr() != nil:
			fmt.Fprintf(out, "blob:             unresolved: %v\n", afsEnv.BlobResolutionErr())
		default:
			fmt.Fprintln(out, "blob:             not configured")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
}
