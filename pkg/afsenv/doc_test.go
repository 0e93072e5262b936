package afsenv

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

func Example() {
	// afs_url, instance_id and auth_code come from the environment unless
	// given here. A token, when present, replaces the auth code.
	cfg := Config{Token: os.Getenv("AFS_TOKEN")}

	// Adding a custom logger is optional
	afsLogger := logrus.New()
	afsLogger.SetLevel(logrus.WarnLevel)
	cfg.Logger = afsLogger

	env, err := New(context.Background(), cfg)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("talking to", env.Endpoint())

	// Blob operations must check the credentials first
	if err := env.CheckBlobConnection(); err != nil {
		fmt.Printf("Blob store not configured: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("blob bucket:", env.BlobCredential().BucketName)
}
