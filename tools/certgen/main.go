// Package main generates a self-signed server certificate and key for
// running the API over HTTPS locally, writing them under the "certs"
// directory.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atinyakov/todolist/internal/certgen"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("certgen", flag.ContinueOnError)
	dir := fs.String("dir", "certs", "output directory")
	hosts := fs.String("hosts", "localhost,127.0.0.1,::1", "comma-separated DNS names and IPs")
	validFor := fs.Duration("valid-for", 365*24*time.Hour, "certificate lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	certPEM, keyPEM, err := certgen.GenerateServerCertificate(strings.Split(*hosts, ","), *validFor)
	if err != nil {
		return fmt.Errorf("generate certificate: %w", err)
	}
	certPath, keyPath, err := certgen.WriteServerFiles(*dir, certPEM, keyPEM)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Certificate written to %s\nKey written to %s\n", certPath, keyPath)
	fmt.Fprintf(out, "Start the server with -tls-cert %s -tls-key %s\n", certPath, keyPath)
	return nil
}
