// Common configuration/setup functions
package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/serverlessresearch/afs/pkg/afsenv"
	"github.com/spf13/viper"
)

const defaultConfigName = ".afs.yaml"

// loadConfig builds a private viper context: the config file, if any, under
// the environment. Keys are the environment variable names.
func loadConfig(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	afsenv.BindEnv(v)

	if cfgFile == "" {
		home, err := homedir.Dir()
		if err != nil {
			return v, nil
		}
		path := filepath.Join(home, defaultConfigName)
		if _, err := os.Stat(path); err != nil {
			return v, nil
		}
		cfgFile = path
	}

	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "Failed to load config")
	}
	return v, nil
}

func newSession() (*afsenv.Env, error) {
	v, err := loadConfig(rootConfig.cfgFile)
	if err != nil {
		return nil, err
	}

	env, err := afsenv.New(context.Background(), afsenv.Config{
		Endpoint:   rootConfig.endpoint,
		InstanceID: rootConfig.instanceID,
		AuthCode:   rootConfig.authCode,
		Token:      rootConfig.token,
		Lookup:     afsenv.ViperLookup{V: v},
		Logger:     logger,
		VerifyTLS:  rootConfig.verifyTLS,
		CABundle:   rootConfig.caBundle,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to initialize AFS session")
	}
	return env, nil
}
