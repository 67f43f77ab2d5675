package main

import (
	"flag"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	root := &cobra.Command{
		Use:   "pampero",
		Short: "Multi-model weather decisions for Argentina",
		Long: "Pampero fuses ECMWF, GFS, ICON and SMN WRF forecasts into unified\n" +
			"predictions, operational alerts and activity risk scores.",
		SilenceUsage: true,
	}
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	root.AddCommand(newServeCommand())
	root.AddCommand(newPronosticoCommand())
	root.AddCommand(newAlertasCommand())
	root.AddCommand(newRiesgoCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
