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
	"fmt"
	"text/tabwriter"

	"github.com/GrainArc/xraster"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <raster>",
	Short: "Load a raster, apply configured thresholds and indices, print band statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("index") {
			cfg.Indices.Names = viper.GetStringSlice("index")
		}
		if cmd.Flags().Changed("factor") {
			cfg.Indices.Factor = viper.GetFloat64("factor")
		}

		rules, err := cfg.Thresholds()
		if err != nil {
			return err
		}
		indices, err := cfg.IndexSet()
		if err != nil {
			return err
		}

		opts := append(cfg.LoadOptions(), xraster.WithLogger(logrus.StandardLogger()))
		img, err := xraster.NewRasterImage(args[0], cfg.Bands, opts...)
		if err != nil {
			return err
		}
		if err := img.ApplyThresholds(rules); err != nil {
			return err
		}
		if len(indices) > 0 {
			if err := img.AddIndices(indices, cfg.Indices.Factor); err != nil {
				return err
			}
		}
		if drop := viper.GetStringSlice("drop"); len(drop) > 0 {
			if err := img.DropIndices(drop); err != nil {
				return err
			}
		}
		return printSummary(cmd, img)
	},
}

func printSummary(cmd *cobra.Command, img *xraster.RasterImage) error {
	out := cmd.OutOrStdout()
	nb, rows, cols := img.Shape()
	lo, err := img.Min()
	if err != nil {
		return err
	}
	hi, err := img.Max()
	if err != nil {
		return err
	}
	b := img.Bounds()
	fmt.Fprintf(out, "shape: %d bands x %d rows x %d cols\n", nb, rows, cols)
	fmt.Fprintf(out, "bounds: [%f %f %f %f]\n", b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y())
	fmt.Fprintf(out, "min: %g  max: %g\n", lo, hi)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BAND\tMIN\tMAX\tMEAN\tSTD")
	for _, name := range img.Bands() {
		st, err := img.BandStatistics(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%g\t%g\t%.3f\t%.3f\n", name, st.Min, st.Max, st.Mean, st.Std)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringSliceP("index", "i", nil, "Indices to append, overrides the config: "+fmt.Sprint(xraster.IndexNames()))
	inspectCmd.Flags().Float64P("factor", "f", 1.0, "Scale factor for index formulas, overrides the config")
	inspectCmd.Flags().StringSlice("drop", nil, "Bands to drop after indices are added")
	for _, name := range []string{"index", "factor", "drop"} {
		bindFlag(inspectCmd, name, false)
	}
}
