// Handles the "afs blob" command. This command exists solely to contain
// blob store subcommands (e.g. check)

package cmd

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/afs/pkg/blobstore"
	"github.com/spf13/cobra"
)

// blobCmd represents the blob command
var blobCmd = &cobra.Command{
	Use:   "blob",
	Short: "Blob store credentials",
	Long:  `Commands for dealing with the blob store credentials of the session.`,
}

var blobCheckConfig struct {
	probe  bool
	region string
}

var blobCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the blob credentials are complete",
	Long: `Fail unless endpoint, access key, secret key, blob record id and bucket
are all known. With --probe, also ask the blob store whether the bucket is
reachable with these credentials.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := afsEnv.CheckBlobConnection(); err != nil {
			if cause := afsEnv.BlobResolutionErr(); cause != nil {
				logger.WithError(cause).Info("blob credential resolution failed")
			}
			return err
		}
		cred := afsEnv.BlobCredential()
		fmt.Fprintf(cmd.OutOrStdout(), "blob credentials complete for bucket %s\n", cred.BucketName)

		if !blobCheckConfig.probe {
			return nil
		}
		client, err := blobstore.New(cred, blobstore.Options{
			Region:             blobCheckConfig.region,
			InsecureSkipVerify: afsEnv.Client().InsecureSkipVerify(),
		})
		if err != nil {
			return err
		}
		if err := client.Probe(context.Background()); err != nil {
			return errors.Wrap(err, "Blob store probe failed")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "bucket %s reachable at %s\n", cred.BucketName, cred.Endpoint)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(blobCmd)

	blobCmd.AddCommand(blobCheckCmd)
	blobCheckCmd.Flags().BoolVar(&blobCheckConfig.probe, "probe", false, "also check the bucket on the blob store")
	blobCheckCmd.Flags().StringVar(&blobCheckConfig.region, "region", blobstore.DefaultRegion, "signing region for the blob store")
}
