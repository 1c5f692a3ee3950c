package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"gocv.io/x/gocv"

	"github.com/mtodor/verdant/internal/app"
	"github.com/mtodor/verdant/internal/detect"
	"github.com/mtodor/verdant/internal/discover"
	"github.com/mtodor/verdant/internal/server"
	"github.com/mtodor/verdant/internal/store"
	"github.com/mtodor/verdant/internal/stream"
	"github.com/mtodor/verdant/internal/tray"
	"github.com/mtodor/verdant/internal/tuner"
)

func main() {
	var (
		url         = flag.String("url", "", "camera stream URL (live mode)")
		imagePath   = flag.String("image", "", "run detection on a single image and exit")
		videoPath   = flag.String("video", "", "run detection over a recorded clip and exit")
		sample      = flag.Int("sample", 1, "process every Nth frame in -video mode")
		runDiscover = flag.Bool("discover", false, "scan the local network for cameras and exit")
		subnet      = flag.String("subnet", "", "subnet prefix for -discover (e.g. 192.168.1), auto-detected when empty")
		addr        = flag.String("addr", ":8080", "dashboard listen address")
		configPath  = flag.String("config", "", "detection config path (default ~/.verdant/config.json)")
		dbPath      = flag.String("db", "", "database path (default ~/.verdant/verdant.db)")
		useTray     = flag.Bool("tray", false, "run with a system tray menu")
	)
	flag.Parse()

	fmt.Println("Verdant - Weed Detection")

	dataDir, err := ensureDataDir()
	if err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	if *configPath == "" {
		*configPath = filepath.Join(dataDir, "config.json")
	}
	if *dbPath == "" {
		*dbPath = filepath.Join(dataDir, "verdant.db")
	}

	switch {
	case *runDiscover:
		runDiscovery(*subnet)
	case *imagePath != "":
		runImageMode(*imagePath, *configPath)
	case *videoPath != "":
		runVideoMode(*videoPath, *configPath, *sample)
	case *url != "":
		runLive(*url, *addr, *configPath, *dbPath, *useTray)
	default:
		fmt.Println("\nUsage:")
		fmt.Println("  verdant -url http://192.168.1.50:8080/video    live detection")
		fmt.Println("  verdant -image field.jpg                       single image")
		fmt.Println("  verdant -video garden.mp4 [-sample 5]          recorded clip")
		fmt.Println("  verdant -discover                              find cameras")
		os.Exit(2)
	}
}

// ensureDataDir creates ~/.verdant and returns its path.
func ensureDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dataDir := filepath.Join(homeDir, ".verdant")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}
	return dataDir, nil
}

// runDiscovery scans the local /24 subnet for camera streams.
func runDiscovery(subnet string) {
	if subnet == "" {
		detected, err := discover.LocalSubnet()
		if err != nil {
			log.Fatalf("Failed to detect local subnet: %v", err)
		}
		subnet = detected
	}

	fmt.Printf("Scanning %s.0/24 for cameras, this may take a minute...\n", subnet)

	scanner := discover.NewScanner(discover.Config{})
	cameras := scanner.ScanSubnet(subnet)

	if len(cameras) == 0 {
		fmt.Println("No cameras found. Make sure the camera app is running on the same network.")
		return
	}

	fmt.Printf("Found %d camera(s):\n", len(cameras))
	for _, c := range cameras {
		fmt.Printf("  %s:%d\n", c.Host, c.Port)
		for _, u := range c.URLs {
			fmt.Printf("    %s\n", u)
		}
	}
}

// runImageMode runs detection over a single image and writes an annotated
// copy next to it.
func runImageMode(path, configPath string) {
	cfg, err := detect.LoadConfig(configPath)
	if err != nil {
		log.Printf("Using default detection settings: %v", err)
	}

	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		log.Fatalf("Failed to read image: %s", path)
	}
	defer img.Close()

	engine := detect.NewEngine(cfg)
	detections, err := engine.Run(&img)
	if err != nil {
		log.Fatalf("Detection failed: %v", err)
	}

	fmt.Printf("Found %d region(s) in %s\n", len(detections), path)
	for i, d := range detections {
		fmt.Printf("  %d. centroid=(%d,%d) area=%.0fpx circularity=%.2f aspect=%.2f\n",
			i+1, d.Centroid.X, d.Centroid.Y, d.Area, d.Circularity, d.AspectRatio)
	}

	annotated := detect.Annotate(&img, detections)
	defer annotated.Close()

	outPath := annotatedPath(path)
	if ok := gocv.IMWrite(outPath, annotated); !ok {
		log.Fatalf("Failed to write annotated image: %s", outPath)
	}
	fmt.Printf("Annotated copy written to %s\n", outPath)
}

// annotatedPath derives the output filename for an annotated copy,
// e.g. "field.jpg" becomes "field_annotated.jpg".
func annotatedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_annotated" + ext
}

// timelinePath derives the JSON report filename for a processed clip.
func timelinePath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "_timeline.json"
}

// frameRecord is one timeline entry in the JSON report of a processed clip.
type frameRecord struct {
	Frame        int            `json:"frame"`
	TimestampSec float64        `json:"timestamp_sec"`
	Count        int            `json:"count"`
	Detections   []regionRecord `json:"detections"`
}

type regionRecord struct {
	CX          int     `json:"cx"`
	CY          int     `json:"cy"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	W           int     `json:"w"`
	H           int     `json:"h"`
	Area        float64 `json:"area"`
	Circularity float64 `json:"circularity"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// runVideoMode walks a recorded clip through the engine, writing an annotated
// copy and a frame-by-frame timeline report next to the input.
func runVideoMode(path, configPath string, sample int) {
	cfg, err := detect.LoadConfig(configPath)
	if err != nil {
		log.Printf("Using default detection settings: %v", err)
	}

	clip, err := tuner.OpenClip(path)
	if err != nil {
		log.Fatalf("Failed to open video: %v", err)
	}
	defer clip.Close()

	if sample < 1 {
		sample = 1
	}
	fmt.Printf("Processing %s: %d frames at %.1f fps, every %d frame(s)\n",
		path, clip.Total(), clip.FPS(), sample)

	batch := tuner.NewBatch(clip, detect.NewEngine(cfg), sample)

	var writer *gocv.VideoWriter
	defer func() {
		if writer != nil {
			writer.Close()
		}
	}()

	outPath := annotatedPath(path)
	var timeline []frameRecord

	summary, err := batch.Run(func(r tuner.FrameReport, frame *gocv.Mat) error {
		annotated := detect.Annotate(frame, r.Detections)
		defer annotated.Close()

		if writer == nil {
			fps := clip.FPS() / float64(sample)
			if fps <= 0 {
				fps = 1
			}
			w, werr := gocv.VideoWriterFile(outPath, "mp4v", fps, annotated.Cols(), annotated.Rows(), true)
			if werr != nil {
				return werr
			}
			writer = w
		}
		if err := writer.Write(annotated); err != nil {
			return err
		}

		regions := make([]regionRecord, len(r.Detections))
		for i, d := range r.Detections {
			regions[i] = regionRecord{
				CX:          d.Centroid.X,
				CY:          d.Centroid.Y,
				X:           d.Bounds.Min.X,
				Y:           d.Bounds.Min.Y,
				W:           d.Bounds.Dx(),
				H:           d.Bounds.Dy(),
				Area:        d.Area,
				Circularity: d.Circularity,
				AspectRatio: d.AspectRatio,
			}
		}
		timeline = append(timeline, frameRecord{
			Frame:        r.Frame,
			TimestampSec: r.TimestampSec,
			Count:        len(r.Detections),
			Detections:   regions,
		})

		if len(timeline)%30 == 0 {
			fmt.Printf("  frame %d/%d: %d region(s)\n", r.Frame+1, clip.Total(), len(r.Detections))
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Video processing failed: %v", err)
	}

	data, err := json.MarshalIndent(timeline, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode timeline: %v", err)
	}
	if err := os.WriteFile(timelinePath(path), data, 0644); err != nil {
		log.Fatalf("Failed to write timeline: %v", err)
	}

	fmt.Printf("Processed %d frame(s): %d with detections, %d region(s) total\n",
		summary.FramesProcessed, summary.FramesWithDetections, summary.TotalDetections)
	if summary.TotalDetections > 0 {
		fmt.Printf("Busiest frame: %d with %d region(s)\n", summary.PeakFrame, summary.MaxPerFrame)
	}
	fmt.Printf("Annotated video: %s\n", outPath)
	fmt.Printf("Timeline: %s\n", timelinePath(path))
}

// runLive wires the store, engine, dashboard and tray around the ingestion
// pipeline and runs until interrupted.
func runLive(url, addr, configPath, dbPath string, useTray bool) {
	cfg, err := detect.LoadConfig(configPath)
	if err != nil {
		log.Printf("Using default detection settings: %v", err)
	}

	st, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	engine := detect.NewEngine(cfg)
	session := stream.NewSession(url, stream.DefaultSessionConfig())

	srv := server.New(server.Config{
		StaticDir:  findWebDir(),
		ConfigPath: configPath,
	})

	var tr *tray.Tray
	if useTray {
		tr = tray.New()
	}

	a := app.New(app.Config{
		Session: session,
		Engine:  engine,
		Sink:    &uiSink{srv: srv, tray: tr},
		Store:   st,
	})
	srv.Attach(a)

	go func() {
		fmt.Printf("Dashboard listening on %s\n", addr)
		if err := srv.ListenAndServe(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- a.Run(stop)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	if useTray {
		runWithTray(a, tr, addr, stop, done, sig)
		return
	}

	select {
	case <-sig:
		fmt.Println("\nShutting down...")
		close(stop)
		<-done
	case err := <-done:
		if err != nil {
			log.Fatalf("Pipeline stopped: %v", err)
		}
	}
}

// uiSink fans pipeline results out to the dashboard and, when present, the
// tray menu.
type uiSink struct {
	srv  *server.Server
	tray *tray.Tray
}

func (s *uiSink) Publish(r app.Result) {
	s.srv.Publish(r)
	if s.tray != nil {
		s.tray.SetDetectionCount(len(r.Detections))
	}
}

// runWithTray blocks on the tray event loop and shuts the pipeline down when
// the menu or a signal asks for it.
func runWithTray(a *app.App, t *tray.Tray, addr string, stop chan struct{}, done chan error, sig chan os.Signal) {
	var once sync.Once
	shutdown := func() {
		once.Do(func() { close(stop) })
	}

	t.OnToggle(func(enabled bool) {
		a.SetEnabled(enabled)
	})
	t.OnDashboard(func() {
		openBrowser("http://localhost" + addr)
	})
	t.OnQuit(shutdown)

	go func() {
		select {
		case <-sig:
			shutdown()
		case <-stop:
		}
		<-done
		t.Quit()
	}()

	t.Run()
}

// openBrowser opens the given URL in the default browser.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.verdant/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".verdant", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
