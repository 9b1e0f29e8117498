package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trackwire/trackwire/internal/status"
	"github.com/trackwire/trackwire/internal/types"
)

var (
	statusMapFile    string
	statusMapContext string
)

var statusMapCmd = &cobra.Command{
	Use:   "status-map",
	Short: "Inspect status normalization",
}

var statusNormalizeCmd = &cobra.Command{
	Use:   "normalize <native-status>...",
	Short: "Map backend-native statuses to canonical ones",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mapper, err := loadMapper()
		if err != nil {
			return err
		}
		for _, native := range args {
			fmt.Printf("%-30s -> %s\n", native, mapper.Normalize(native, statusMapContext))
		}
		return nil
	},
}

var statusDenormalizeCmd = &cobra.Command{
	Use:   "denormalize <canonical-status>...",
	Short: "Map canonical statuses back to backend-native tokens",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mapper, err := loadMapper()
		if err != nil {
			return err
		}
		for _, canonical := range args {
			if !types.IsCanonical(types.Status(canonical)) {
				return fmt.Errorf("%q is not canonical (valid: %v)", canonical, types.CanonicalStatuses())
			}
			fmt.Printf("%-15s -> %s\n", canonical, mapper.Denormalize(types.Status(canonical), statusMapContext))
		}
		return nil
	},
}

var statusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all statuses valid in the selected context",
	RunE: func(cmd *cobra.Command, args []string) error {
		mapper, err := loadMapper()
		if err != nil {
			return err
		}
		for _, s := range mapper.ValidStatuses(statusMapContext) {
			fmt.Println(s)
		}
		return nil
	},
}

func loadMapper() (*status.Mapper, error) {
	if statusMapFile == "" {
		return status.NewMapper(nil), nil
	}
	return status.LoadFile(statusMapFile)
}

func init() {
	statusMapCmd.PersistentFlags().StringVarP(&statusMapFile, "map", "m", "", "YAML status mapping file (default: built-in families only)")
	statusMapCmd.PersistentFlags().StringVar(&statusMapContext, "context", "", "Project/board context key for scoped mappings")
	statusMapCmd.AddCommand(statusNormalizeCmd, statusDenormalizeCmd, statusListCmd)
	rootCmd.AddCommand(statusMapCmd)
}
