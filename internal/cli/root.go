/*
Copyright (C) 2025 [GrainArc]

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package cli

import (
	"os"

	"github.com/GrainArc/xraster"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "xraster",
	Short: "Multi-band raster preprocessing and prediction post-processing",
	Long: `Load multi-band satellite rasters with named bands, threshold them,
	append spectral index bands, and post-process classifier predictions
	(sieve and median filtering) into single-band GeoTIFF masks.

	Band names, thresholds, indices and filter sizes come from a YAML
	config file (--config); command line flags override it.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setLogLevels()
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func setLogLevels() {
	if viper.GetBool("debug") {
		logrus.SetLevel(logrus.DebugLevel)
	} else if viper.GetBool("verbose") {
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}
}

// loadConfig 读取配置文件并应用 --bands
func loadConfig() (*xraster.Config, error) {
	cfg, err := xraster.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if bands := viper.GetStringSlice("bands"); len(bands) > 0 {
		cfg.Bands = bands
	}
	return cfg, nil
}

func bindFlag(cmd *cobra.Command, name string, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
		logrus.WithError(err).WithField("flag", name).Fatal("bind flag")
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "xraster.yaml", "YAML config file")
	rootCmd.PersistentFlags().StringSliceP("bands", "b", nil, "Band names in file order, overrides the config")
	rootCmd.PersistentFlags().Bool("debug", false, "Debug logging")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Info logging")
	for _, name := range []string{"bands", "debug", "verbose"} {
		bindFlag(rootCmd, name, true)
	}

	viper.SetEnvPrefix("XRASTER")
	viper.AutomaticEnv()
}
