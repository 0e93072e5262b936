// Handles the "afs bucket" command

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Show the blob bucket registered with AFS",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bucket, err := afsEnv.BlobBucket(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(bucket))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bucketCmd)
}
