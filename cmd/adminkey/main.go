// Command adminkey generates the server's reference admin key file.
// Operators copy the generated file to a secure location and upload it
// through the admin login endpoint to elevate their session.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SecgPower/cloudpan/config"
)

func main() {
	force := flag.Bool("force", false, "overwrite an existing key file")
	out := flag.String("out", "", "output path (default: configured admin key path)")
	flag.Parse()

	path := *out
	if path == "" {
		// Loading the config requires the server environment (JWT_SECRET
		// and friends); pass -out to run the generator elsewhere.
		path = config.Load().AdminKeyPath()
	}

	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "refusing to overwrite %s, pass -force to replace it\n", path)
		os.Exit(1)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "create key directory: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "write key file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("admin key written to %s\n", path)
	fmt.Println("keep a copy safe: uploading this exact file is the only way to elevate")
}
