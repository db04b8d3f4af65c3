package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelsilo/silo/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample silo configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/silo/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  silo init

  # Initialize with custom path
  silo init --config /etc/silo/config.yaml

  # Force overwrite existing config
  silo init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Point storage.s3 at your bucket (MinIO works out of the box)")
	fmt.Println("  2. Start the server with: silo start")
	fmt.Println("  3. Create your first user: silo user create <name>")
	fmt.Println("\nSecurity note:")
	fmt.Println("  A random JWT secret has been generated for development use.")
	fmt.Println("  For production, generate a fresh secret and inject it via:")
	fmt.Println("    export SILO_AUTH_JWT_SECRET=$(openssl rand -hex 32)")

	return nil
}
