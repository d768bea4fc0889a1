package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/foxzi/postcard/internal/tls"
)

var tlsCertFile string

var tlsCmd = &cobra.Command{
	Use:   "tls",
	Short: "TLS certificate commands",
}

var tlsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the API certificate status",
	Long: `Show subject, validity and DNS names of the certificate configured in
api.tls.cert_file, or of the file given with --cert.`,
	RunE: runTLSStatus,
}

func init() {
	tlsStatusCmd.Flags().StringVar(&tlsCertFile, "cert", "", "certificate file (overrides the config)")

	tlsCmd.AddCommand(tlsStatusCmd)
	rootCmd.AddCommand(tlsCmd)
}

func runTLSStatus(cmd *cobra.Command, args []string) error {
	certFile := tlsCertFile
	if certFile == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.API.TLS.ACME.Enabled {
			fmt.Printf("ACME certificates for %s are cached in %s\n",
				strings.Join(cfg.API.TLS.ACME.Domains, ", "), cfg.API.TLS.ACME.CacheDir)
			return nil
		}
		certFile = cfg.API.TLS.CertFile
	}
	if certFile == "" {
		return fmt.Errorf("TLS is not configured (set api.tls.cert_file or use --cert)")
	}

	info, err := tls.ReadCertificateInfo(certFile, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("Certificate: %s\n", certFile)
	fmt.Printf("  Subject:   %s\n", info.Subject)
	fmt.Printf("  Issuer:    %s\n", info.Issuer)
	fmt.Printf("  Valid:     %s - %s\n", info.NotBefore.Format(time.DateOnly), info.NotAfter.Format(time.DateOnly))
	fmt.Printf("  DNS names: %s\n", strings.Join(info.DNSNames, ", "))

	switch {
	case info.DaysLeft < 0:
		fmt.Printf("  Status:    EXPIRED\n")
	case info.DaysLeft < 14:
		fmt.Printf("  Status:    expires in %d days\n", info.DaysLeft)
	default:
		fmt.Printf("  Status:    valid (%d days left)\n", info.DaysLeft)
	}
	return nil
}
