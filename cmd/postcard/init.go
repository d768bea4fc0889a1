package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/foxzi/postcard/internal/config"
)

var (
	initCompany string
	initFrom    string
	initOutput  string
	initAPIKey  string
	initDataDir string
	initGateway string
	initCredits int64
	initForce   bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize Postcard configuration",
	Long: `Create a Postcard configuration file, prompting for missing values.

Examples:
  # Interactive mode
  postcard init

  # Non-interactive, sandbox delivery
  postcard init --company "ACME Store" --from shop@acme.com --gateway sandbox -o dev.yaml`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initCompany, "company", "", "Company name shown in emails")
	initCmd.Flags().StringVar(&initFrom, "from", "", "From address of every message")
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "config.yaml", "Output configuration file path")
	initCmd.Flags().StringVar(&initAPIKey, "api-key", "", "API key (auto-generated if not provided)")
	initCmd.Flags().StringVar(&initDataDir, "data-dir", "/var/lib/postcard", "Data directory for the database and assets")
	initCmd.Flags().StringVar(&initGateway, "gateway", config.DriverSandbox, "Gateway driver: sandbox, relay, postmark")
	initCmd.Flags().Int64Var(&initCredits, "credits", 1000, "Credits granted on first start")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config file")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Postcard Configuration Wizard")
	fmt.Println("=============================")
	fmt.Println()

	if initCompany == "" {
		initCompany = prompt(reader, "Company name", "ACME Store")
	}
	if initFrom == "" {
		initFrom = prompt(reader, "From address (e.g., shop@example.com)", "")
		if initFrom == "" {
			return fmt.Errorf("from address is required")
		}
	}
	initDataDir = prompt(reader, "Data directory", initDataDir)

	if initAPIKey == "" {
		initAPIKey = generateRandomString(32)
		fmt.Printf("  Generated API key: %s\n", initAPIKey)
	}

	if !initForce {
		if _, err := os.Stat(initOutput); err == nil {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", initOutput)
		}
	}

	fmt.Println()
	fmt.Println("Creating configuration...")

	if err := os.MkdirAll(initDataDir, 0755); err != nil {
		fmt.Printf("  Warning: Could not create data directory: %v\n", err)
	}

	if err := os.WriteFile(initOutput, []byte(generateConfig()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("  Configuration saved to: %s\n", initOutput)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Review %s and set the gateway credentials\n", initOutput)
	fmt.Printf("  2. Validate it: postcard config validate -c %s\n", initOutput)
	fmt.Printf("  3. Start the server: postcard serve -c %s\n", initOutput)

	return nil
}

func prompt(reader *bufio.Reader, question, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", question, defaultValue)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultValue
	}
	return input
}

func generateRandomString(length int) string {
	bytes := make([]byte, length/2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func generateConfig() string {
	gatewaySection := ""
	switch initGateway {
	case config.DriverRelay:
		gatewaySection = `  relay:
    host: "smtp.example.com"
    port: 587
    username: ""
    tls: starttls  # password from POSTCARD_RELAY_PASSWORD`
	case config.DriverPostmark:
		gatewaySection = `  postmark:
    server_token: ""  # or POSTMARK_SERVER_TOKEN
    track_opens: false`
	default:
		gatewaySection = `  # sandbox captures messages; list them at GET /api/v1/sandbox`
	}

	return fmt.Sprintf(`# Postcard configuration

api:
  listen_addr: ":8080"
  api_key: "%s"
  # public_url: "https://mail.example.com"

storage:
  path: "%s"

logging:
  level: info
  format: json

company:
  name: "%s"
  from: "%s"

gateway:
  driver: %s
%s

scheduler:
  enabled: true
  interval: 30s

credits:
  initial: %d

rate_limit:
  enabled: false
  global:
    messages_per_hour: 1000
    messages_per_day: 10000
  recipient_domain:
    messages_per_hour: 200

assets:
  driver: local
  dir: "%s"

stripe:
  enabled: false
  # webhook_secret from STRIPE_WEBHOOK_SECRET

metrics:
  enabled: false
  listen_addr: ":9090"
`,
		initAPIKey,
		filepath.Join(initDataDir, "postcard.db"),
		initCompany,
		initFrom,
		initGateway,
		gatewaySection,
		initCredits,
		filepath.Join(initDataDir, "assets"),
	)
}
