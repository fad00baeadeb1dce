package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"periph.io/x/host/v3"

	"github.com/coreman2200/arcaluminis-layout/internal/app"
	"github.com/coreman2200/arcaluminis-layout/internal/config"
	"github.com/coreman2200/arcaluminis-layout/internal/layout"
	"github.com/coreman2200/arcaluminis-layout/internal/led"
	"github.com/coreman2200/arcaluminis-layout/internal/mqttout"
	"github.com/coreman2200/arcaluminis-layout/internal/render"
	"github.com/coreman2200/arcaluminis-layout/internal/render/scenes/grad"
	"github.com/coreman2200/arcaluminis-layout/internal/render/scenes/solid"
	"github.com/coreman2200/arcaluminis-layout/internal/ws"
)

var (
	simOnly bool
	source  string
)

func init() {
	serveCmd.Flags().BoolVar(&simOnly, "sim-only", false, "force simulation (no hardware output)")
	serveCmd.Flags().StringVar(&source, "source", "rainbow", "initial frame source")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(layoutsCmd)
	rootCmd.AddCommand(resolveCmd)
}

// openOutputs opens each device's configured driver, sized to the LEDs that
// have a region.
func openOutputs(def config.Device, d *layout.DeviceLayout) (layout.Output, error) {
	drv := def.Driver
	if simOnly && drv.Kind != "" {
		drv.Kind = "sim"
	}
	out, err := led.Open(drv, d.Group.Regions())
	if err != nil {
		return nil, fmt.Errorf("device %s (%s): %w", d.Key, d.Name, err)
	}
	if out == nil {
		return nil, nil
	}
	return out, nil
}

func newRegistry(outputs bool) (*layout.Registry, error) {
	opts := []layout.Option{layout.WithLogger(log.Logger)}
	if outputs {
		opts = append(opts, layout.WithOutputs(func(d *layout.DeviceLayout, def config.Device) (layout.Output, error) {
			return openOutputs(def, d)
		}))
	}
	reg := layout.NewRegistry(config.FileLoader{Path: configPath}, opts...)
	if err := reg.Initialize(); err != nil {
		return nil, err
	}
	return reg, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Render frames to every configured device",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if !simOnly {
		if _, err := host.Init(); err != nil {
			log.Warn().Err(err).Msg("periph host init failed; hardware drivers may be unavailable")
		}
	}

	reg, err := newRegistry(true)
	if err != nil {
		return err
	}
	defer reg.Close()
	settings := reg.Settings()
	if err := reg.SetBrightness(settings.Brightness); err != nil {
		log.Warn().Err(err).Msg("configured brightness ignored")
		_ = reg.SetBrightness(1)
	}

	sources := render.NewSources()
	sources.Register(grad.New("rainbow"))
	sources.Register(solid.New("solid", colorful.Color{R: 1, G: 1, B: 1}))

	cond := app.NewConductor(reg, sources, log.Logger)
	if err := cond.SetSource(source, ""); err != nil {
		return err
	}

	hub := ws.NewHub(reg, cond, log.Logger)
	defer hub.Attach()()
	cond.OnError = hub.ReportFrameError

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if settings.MQTT.URL != "" {
		client, err := mqttout.Connect(settings.MQTT, log.Logger)
		if err != nil {
			log.Warn().Err(err).Msg("mqtt disabled")
		} else {
			defer client.Disconnect(250)
			pub := mqttout.NewPublisher(client, settings.MQTT.Topic, log.Logger)
			defer pub.Attach(reg)()
			go pub.Run(ctx)
		}
	}

	mux := http.NewServeMux()
	hub.Routes(mux)
	srv := &http.Server{
		Addr:         settings.Addr,
		Handler:      withCORS(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", settings.Addr).Int("devices", len(reg.Keys())).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server crashed")
			stop()
		}
	}()

	cond.Run(ctx, settings.FPS)
	log.Info().Msg("shutting down")

	shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(shutdown)
}

var layoutsCmd = &cobra.Command{
	Use:   "layouts",
	Short: "List devices in index order",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newRegistry(false)
		if err != nil {
			return err
		}
		b := reg.Bounds()
		fmt.Fprintf(cmd.OutOrStdout(), "canvas %dx%d\n", b.Dx(), b.Dy())
		for _, d := range reg.AllLayouts() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-6s %-20s at %v size %v, %d leds\n",
				d.Key, d.Name, d.Location, d.Size, d.Group.Len())
		}
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <type> <device> <led>",
	Short: "Print the name and canvas region of an LED",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseLedID(args)
		if err != nil {
			return err
		}
		reg, err := newRegistry(false)
		if err != nil {
			return err
		}
		name, err := reg.LedName(id)
		if err != nil {
			return err
		}
		r, ok, err := reg.LedRegion(id, false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %q: no region\n", id, name)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %q: %+v\n", id, name, r)
		return nil
	},
}

func parseLedID(args []string) (layout.LedID, error) {
	t, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return layout.LedID{}, fmt.Errorf("type: %w", err)
	}
	d, err := strconv.ParseUint(args[1], 10, 8)
	if err != nil {
		return layout.LedID{}, fmt.Errorf("device: %w", err)
	}
	l, err := strconv.ParseInt(args[2], 10, 16)
	if err != nil {
		return layout.LedID{}, fmt.Errorf("led: %w", err)
	}
	return layout.NewLedID(uint8(t), uint8(d), int16(l)), nil
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}
