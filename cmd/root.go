// Root of command-line argument parsing.
// This file was based off the standard cobra template, see
// https://github.com/spf13/cobra
package cmd

import (
	"os"

	"github.com/serverlessresearch/afs/pkg/afsenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootConfig struct {
	cfgFile    string
	logLevel   string
	verifyTLS  bool
	caBundle   string
	endpoint   string
	instanceID string
	authCode   string
	token      string
}

var logger = logrus.New()

// afsEnv is the session every subcommand works against. It is built once per
// invocation in PersistentPreRunE.
var afsEnv *afsenv.Env

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "afs",
	Short: "AFS session tool",
	Long: `Bootstrap an AFS session from flags, a config file and the environment,
then inspect the negotiated versions and the blob store credentials.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(rootConfig.logLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)

		afsEnv, err = newSession()
		return err
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootConfig.cfgFile, "config", "", "config file (default is $HOME/.afs.yaml)")
	flags.StringVar(&rootConfig.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.BoolVar(&rootConfig.verifyTLS, "verify-tls", false, "verify server certificates (also AFS_VERIFY_TLS)")
	flags.StringVar(&rootConfig.caBundle, "ca-bundle", "", "PEM file of extra trusted roots (also AFS_CA_BUNDLE)")
	flags.StringVar(&rootConfig.endpoint, "endpoint", "", "AFS endpoint, used together with --instance-id (default afs_url)")
	flags.StringVar(&rootConfig.instanceID, "instance-id", "", "AFS instance id (default instance_id)")
	flags.StringVar(&rootConfig.authCode, "auth-code", "", "auth code (default auth_code)")
	flags.StringVar(&rootConfig.token, "token", "", "bearer token sent as the Authorization header")
}
