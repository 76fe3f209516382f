package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wgdzlh/forestloss"
	"github.com/wgdzlh/forestloss/config"
	"github.com/wgdzlh/forestloss/earthengine"
	"github.com/wgdzlh/forestloss/forest"
	"github.com/wgdzlh/forestloss/log"
	"github.com/wgdzlh/forestloss/pipeline"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool
	nameField  string
)

var rootCmd = &cobra.Command{
	Use:   "forestloss",
	Short: "Forest cover change statistics for protected land",
	Long: `forestloss computes tree cover in 2000 and cumulative forest loss for every
England and Wales boundary region with the Hansen Global Forest Change product on
Google Earth Engine, and writes an interactive Leaflet map marking the regions whose
loss exceeds the configured threshold.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init("info")
		if verbose {
			log.SetLevel("debug")
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyze every region and write the map",
	Args:  cobra.NoArgs,
	RunE:  runPipeline,
}

var geojsonCmd = &cobra.Command{
	Use:   "geojson [shp]",
	Short: "Print a shapefile as a GeoJSON FeatureCollection in EPSG:4326",
	Args:  cobra.ExactArgs(1),
	RunE:  dumpGeoJSON,
}

var infoCmd = &cobra.Command{
	Use:   "info [shp...]",
	Short: "Print the CRS, feature count and extent of shapefiles",
	Args:  cobra.MinimumNArgs(1),
	RunE:  describeShapefiles,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config YAML")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	geojsonCmd.Flags().StringVar(&nameField, "name-field", forestloss.SHP_FIELD_NAME, "attribute holding feature names")
	rootCmd.AddCommand(runCmd, geojsonCmd, infoCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if !verbose {
		log.SetLevel(cfg.Logging.Level)
	}
	timeout, _ := cfg.GetTimeout()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ee, err := earthengine.NewClient(ctx, earthengine.Config{
		Project:         cfg.EarthEngine.Project,
		BaseURL:         cfg.EarthEngine.BaseURL,
		CredentialsFile: cfg.EarthEngine.CredentialsFile,
		Timeout:         timeout,
	})
	if err != nil {
		return err
	}
	hansen := forest.NewHansenClient(ee, forest.Params{
		Dataset:      cfg.EarthEngine.Dataset,
		Scale:        cfg.EarthEngine.Scale,
		MaxPixels:    cfg.EarthEngine.MaxPixels,
		TreeCoverMin: cfg.Analysis.TreeCoverMin,
		AreaDivisor:  cfg.Analysis.AreaDivisor,
	})
	p := pipeline.New(cfg, forestloss.NewGdalToolbox(), hansen)
	if err = p.Run(ctx); err != nil {
		log.Error("run aborted", zap.Error(err))
		return err
	}
	return nil
}

func dumpGeoJSON(cmd *cobra.Command, args []string) error {
	set, err := forestloss.NewGdalToolbox().LoadSites("cli", args[0], nameField, false)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(forestloss.ToFeatureCollection(set))
}

func describeShapefiles(cmd *cobra.Command, args []string) error {
	g := forestloss.NewGdalToolbox()
	out := cmd.OutOrStdout()
	for _, shp := range args {
		sum, err := g.SummarizeShapefile(shp)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n  srid: %d\n  features: %d\n  extent (EPSG:4326): %.6f %.6f %.6f %.6f\n",
			sum.Path, sum.Srid, sum.Features, sum.Span[0], sum.Span[2], sum.Span[1], sum.Span[3])
		if sum.Srid != forestloss.UNIVERSAL_SRID {
			crs := "source CRS"
			if sum.Srid != 0 {
				crs = fmt.Sprintf("EPSG:%d", sum.Srid)
			}
			fmt.Fprintf(out, "  extent (%s): %.3f %.3f %.3f %.3f\n",
				crs, sum.NativeSpan[0], sum.NativeSpan[2], sum.NativeSpan[1], sum.NativeSpan[3])
		}
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
