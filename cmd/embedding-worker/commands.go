package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Aleph-Alpha/embedding-pipeline/internal/app"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/config"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/registry"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "embedding-worker",
		Short:         "Embedding generation worker",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")

	root.AddCommand(newRunCmd(&configPath), newModelsCmd(&configPath))
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Consume embedding requests until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			fx.New(app.Module(cfg)).Run()
			return nil
		},
	}
}

func newModelsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the configured embedding models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			reg, err := registry.FromConfigs(cfg.Models.Default, cfg.Models.List)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDIMENSION\tDEFAULT")
			for _, m := range reg.Describe() {
				def := ""
				if m.Default {
					def = "*"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", m.Name, m.Dimension, def)
			}
			return w.Flush()
		},
	}
}
