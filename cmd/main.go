package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
	"golang.org/x/sync/errgroup"

	"github.com/forest-guardian/wooded-mask/internal/delivery"
	"github.com/forest-guardian/wooded-mask/internal/features"
	"github.com/forest-guardian/wooded-mask/internal/mask"
	"github.com/forest-guardian/wooded-mask/internal/ml"
	"github.com/forest-guardian/wooded-mask/internal/notification"
	"github.com/forest-guardian/wooded-mask/internal/raster"
	"github.com/forest-guardian/wooded-mask/internal/tiling"
	"github.com/forest-guardian/wooded-mask/internal/ui"
	"github.com/forest-guardian/wooded-mask/internal/utils"
)

const usage = `Usage: wooded-mask [command] [flags]

Commands:
  predict    create a wooded mask for one scene with the model
  threshold  create a wooded mask for one scene with an NDVI threshold
  evaluate   score a mask against a reference mask
  batch      create wooded masks for every scene of a manifest
  temporal   compute NDVI time-series features for dated scenes
  serve      serve the built-in model over gRPC (and optionally HTTP)
  history    list recorded runs

Without a command the interactive menu starts.
Run 'wooded-mask <command> -h' for the flags of a command.
`

func printBanner() {
	figure1 := figure.NewFigure("Wooded", "isometric1", true)
	figure2 := figure.NewFigure("Mask", "isometric1", true)
	bannercolor.Cyan(figure1.String())
	bannercolor.Cyan(figure2.String())
	fmt.Println()
}

func loadEnv() {
	for _, path := range []string{"../../.env", "../.env", ".env"} {
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
	bannercolor.Yellow("No .env file found, using the process environment")
}

// recoverPanic reports a panic to Discord and exits non-zero.
func recoverPanic() {
	r := recover()
	if r == nil {
		return
	}
	pc, file, line, ok := runtime.Caller(3)
	location := "Unknown location"
	if ok {
		location = fmt.Sprintf("%s:%d in %s", file, line, runtime.FuncForPC(pc).Name())
	}

	fmt.Printf("\n\033[31mPANIC: %v\033[0m\n", r)
	fmt.Printf("\033[31mLocation: %s\033[0m\n", location)
	fmt.Printf("\033[31mPlease check the input and try again.\033[0m\n")
	fmt.Printf("\033[31mExiting...\033[0m\n")

	errMessage := fmt.Sprintf("Wooded mask CLI panic:\n\n%v\n\nLocation: %s\n\nStack trace:\n%s", r, location, debug.Stack())
	if err := notification.SendDiscordErrorNotification(errMessage); err != nil {
		fmt.Printf("\033[31mFailed to send notification: %s\033[0m\n", err.Error())
	}
	os.Exit(2)
}

func main() {
	defer recoverPanic()
	loadEnv()

	if len(os.Args) < 2 {
		printBanner()
		ui.ShowMenu()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, args := os.Args[1], os.Args[2:]
	var err error
	switch command {
	case "predict":
		err = runPredict(ctx, args)
	case "threshold":
		err = runThreshold(args)
	case "evaluate":
		err = runEvaluate(args)
	case "batch":
		err = runBatch(ctx, args)
	case "temporal":
		err = runTemporal(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	case "history":
		err = runHistory(args)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Printf("\033[31mUnknown command: %s\033[0m\n\n", command)
		fmt.Print(usage)
		os.Exit(2)
	}
	if err == nil {
		return
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}

	logger := utils.GetLogger()
	logged := xerrors.New(err)
	logger.ErrorContext(ctx, "Command failed.", slog.String("command", command), slog.Any("error", logged))
	if !errors.Is(err, raster.ErrInputNotFound) {
		if notifyErr := notification.SendDiscordErrorNotification(fmt.Sprintf("Wooded mask CLI\n\nError running %s: %s", command, err.Error())); notifyErr != nil {
			logger.Warn("Failed to send notification.", slog.Any("error", notifyErr))
		}
	}
	os.Exit(1)
}

// featureFlags registers the feature stack flags shared by predict, batch
// and serve.
func featureFlags(fs *flag.FlagSet) func() features.Options {
	defaults := features.DefaultOptions()
	normalize := fs.Bool("normalize", defaults.Normalize, "stretch base bands to their 1st..99th percentiles")
	ndvi := fs.Bool("ndvi", defaults.IncludeNDVI, "include the NDVI feature")
	evi := fs.Bool("evi", defaults.IncludeEVI, "include the EVI feature")
	savi := fs.Bool("savi", defaults.IncludeSAVI, "include the SAVI feature")
	ndwi := fs.Bool("ndwi", defaults.IncludeNDWI, "include the NDWI feature")
	return func() features.Options {
		return features.Options{
			Normalize:   *normalize,
			IncludeNDVI: *ndvi,
			IncludeEVI:  *evi,
			IncludeSAVI: *savi,
			IncludeNDWI: *ndwi,
		}
	}
}

type tilingFlags struct {
	tileSize  *int
	stride    *int
	batchSize *int
	pad       *string
	modelAddr *string
	modelURL  *string
}

func registerTiling(fs *flag.FlagSet) tilingFlags {
	return tilingFlags{
		tileSize:  fs.Int("tile", delivery.DefaultTileSize, "patch size in pixels"),
		stride:    fs.Int("stride", 0, "tile stride in pixels (default half the patch size)"),
		batchSize: fs.Int("batch-size", delivery.DefaultBatchSize, "patches per classifier call"),
		pad:       fs.String("pad", "edge", "padding for border tiles: edge or zero"),
		modelAddr: fs.String("model-addr", "", "gRPC model service address (overrides MODEL_SERVICE_ADDR)"),
		modelURL:  fs.String("model-url", "", "HTTP model endpoint (overrides MODEL_HTTP_URL)"),
	}
}

func (f tilingFlags) apply(req *delivery.PredictRequest) error {
	padMode, err := tiling.ParsePadMode(*f.pad)
	if err != nil {
		return err
	}
	req.TileSize = *f.tileSize
	req.Stride = *f.stride
	req.BatchSize = *f.batchSize
	req.PadMode = padMode
	if *f.modelAddr != "" {
		os.Setenv("MODEL_SERVICE_ADDR", *f.modelAddr)
	}
	if *f.modelURL != "" {
		os.Setenv("MODEL_HTTP_URL", *f.modelURL)
	}
	return nil
}

func requireFile(name, path string) error {
	if path == "" {
		return fmt.Errorf("%w: -%s is required", raster.ErrInputNotFound, name)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", raster.ErrInputNotFound, path)
	}
	return nil
}

func runPredict(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	image := fs.String("image", "", "4-band analytic GeoTIFF")
	quality := fs.String("udm", "", "quality mask GeoTIFF (default: <scene>_3B_udm2.tif next to the image)")
	out := fs.String("out", "", "output mask path (default: data/result/<scene>/model/<scene>_wooded.tif)")
	reference := fs.String("reference", "", "reference mask (default: <scene>_reference_wooded.tif next to the image)")
	probability := fs.String("probability", "", "also write the averaged probability map here")
	options := featureFlags(fs)
	tf := registerTiling(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFile("image", *image); err != nil {
		return err
	}

	req := delivery.PredictRequest{
		ImagePath:       *image,
		QualityPath:     *quality,
		OutputPath:      *out,
		ReferencePath:   *reference,
		ProbabilityPath: *probability,
		Features:        options(),
	}
	if req.QualityPath == "" {
		req.QualityPath, _ = delivery.QualityFor(*image)
	}
	if err := tf.apply(&req); err != nil {
		return err
	}
	_, err := ui.RunPredict(ctx, req)
	return err
}

func runThreshold(args []string) error {
	fs := flag.NewFlagSet("threshold", flag.ContinueOnError)
	image := fs.String("image", "", "4-band analytic GeoTIFF")
	quality := fs.String("udm", "", "quality mask GeoTIFF (default: <scene>_3B_udm2.tif next to the image)")
	out := fs.String("out", "", "output mask path (default: data/result/<scene>/threshold/<scene>_ndvi_wooded.tif)")
	threshold := fs.Float64("ndvi-threshold", mask.DefaultNDVIThreshold, "pixels with NDVI above this are wooded")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFile("image", *image); err != nil {
		return err
	}
	req := delivery.ThresholdRequest{
		ImagePath:   *image,
		QualityPath: *quality,
		OutputPath:  *out,
		Threshold:   threshold,
	}
	if req.QualityPath == "" {
		req.QualityPath, _ = delivery.QualityFor(*image)
	}
	_, err := ui.RunThreshold(req)
	return err
}

// noDataFlag is an optional nodata value.
type noDataFlag struct {
	value *float64
}

func (f *noDataFlag) String() string {
	if f.value == nil {
		return ""
	}
	return fmt.Sprint(*f.value)
}

func (f *noDataFlag) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid nodata value %q: %w", s, err)
	}
	f.value = &v
	return nil
}

func runEvaluate(args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	pred := fs.String("pred", "", "predicted mask GeoTIFF")
	ref := fs.String("ref", "", "reference mask GeoTIFF")
	jsonOut := fs.String("json", "", "also write the report as JSON here")
	noCache := fs.Bool("no-cache", false, "recompute even when a cached report exists")
	var predNoData, refNoData noDataFlag
	fs.Var(&predNoData, "pred-nodata", "predicted value to ignore (default: the file's nodata)")
	fs.Var(&refNoData, "ref-nodata", "reference value to ignore (default: the file's nodata)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFile("pred", *pred); err != nil {
		return err
	}
	if err := requireFile("ref", *ref); err != nil {
		return err
	}

	_, err := ui.RunEvaluate(delivery.EvaluateRequest{
		PredictedPath: *pred,
		ReferencePath: *ref,
		PredNoData:    predNoData.value,
		RefNoData:     refNoData.value,
	}, ui.EvaluateOptions{JSONPath: *jsonOut, NoCache: *noCache})
	return err
}

func runBatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	manifest := fs.String("manifest", "", "CSV with scene_id,image,udm,reference columns")
	outDir := fs.String("out-dir", "", "output folder (default: data/result/batch)")
	workers := fs.Int("workers", 2, "scenes predicted concurrently")
	options := featureFlags(fs)
	tf := registerTiling(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFile("manifest", *manifest); err != nil {
		return err
	}

	req := delivery.BatchRequest{
		ManifestPath: *manifest,
		OutputDir:    *outDir,
		Workers:      *workers,
		Template:     delivery.PredictRequest{Features: options()},
	}
	if err := tf.apply(&req.Template); err != nil {
		return err
	}
	_, err := ui.RunBatch(ctx, req)
	return err
}

func runTemporal(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("temporal", flag.ContinueOnError)
	out := fs.String("out", "temporal_features.tif", "output feature GeoTIFF")
	previews := fs.String("previews", "", "folder for one NDVI preview PNG per date and an NDVI timelapse .avi")
	if err := fs.Parse(args); err != nil {
		return err
	}
	images := fs.Args()
	if len(images) == 0 {
		return fmt.Errorf("%w: pass the scene GeoTIFFs as arguments", raster.ErrInputNotFound)
	}
	_, err := ui.RunTemporal(ctx, delivery.TemporalRequest{
		ImagePaths: images,
		OutputPath: *out,
		PreviewDir: *previews,
	})
	return err
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := fs.Int("port", 50051, "gRPC port")
	httpAddr := fs.String("http-addr", "", "also serve POST /infer on this address")
	threshold := fs.Float64("ndvi-threshold", mask.DefaultNDVIThreshold, "NDVI threshold of the built-in model")
	options := featureFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := options()
	ndviChannel, err := ui.NDVIChannel(opts)
	if err != nil {
		return err
	}
	classifier := ml.NDVIClassifier{Channels: opts.ChannelCount(), NDVIChannel: ndviChannel, Threshold: *threshold}

	g, ctx := errgroup.WithContext(ctx)
	grpcAddr := fmt.Sprintf(":%d", *port)
	bannercolor.Green("Serving the %d-channel NDVI model over gRPC on %s", classifier.Channels, grpcAddr)
	g.Go(func() error {
		return ml.Serve(ctx, grpcAddr, classifier)
	})
	if *httpAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/infer", ml.InferenceHandler(classifier))
		server := &http.Server{Addr: *httpAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		bannercolor.Green("Serving POST /infer on %s", *httpAddr)
		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	scene := fs.String("scene", "", "only runs of this scene")
	limit := fs.Int("limit", 20, "number of runs to list (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return ui.PrintHistory(strings.TrimSpace(*scene), *limit)
}
