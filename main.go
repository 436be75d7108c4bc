package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/joho/godotenv"

	"sttnote/audio"
	"sttnote/capture"
	"sttnote/encoder"
	"sttnote/events"
	"sttnote/log"
	"sttnote/notepad"
	"sttnote/pipeline"
	"sttnote/refine"
	"sttnote/settings"
	"sttnote/transcriber"
)

var version = "dev"

type app struct {
	bus      evbus.Bus
	audioCtx audio.Context
	session  *capture.Session
	orch     *pipeline.Orchestrator
	refiner  *refine.Refiner
	doc      *notepad.Document

	deviceName string

	mu   sync.Mutex
	busy bool
}

func (a *app) status(msg string) {
	a.bus.Publish(events.TopicStatus, msg)
}

// toggleRecord starts a recording when idle and finalizes it
// otherwise. Finalizing hands the artifact to the pipeline in the
// background so the UI stays responsive during polling.
func (a *app) toggleRecord() {
	a.mu.Lock()
	if a.busy {
		a.mu.Unlock()
		a.status("still transcribing, please wait")
		return
	}
	a.mu.Unlock()

	switch a.session.State() {
	case capture.StateRecording, capture.StatePaused:
		a.stopAndTranscribe()
	default:
		if err := a.session.Start(a.audioCtx, a.deviceName); err != nil {
			log.Errorf("recording start failed: %v", err)
			a.bus.Publish(events.TopicError, err.Error())
			return
		}
		log.Info("recording_start")
		a.status("Recording...")
		tuiSend(RecordingStartMsg{})
	}
}

func (a *app) togglePause() {
	switch a.session.State() {
	case capture.StateRecording, capture.StatePaused:
	default:
		return
	}
	if paused := a.session.TogglePause(); paused {
		log.Info("recording_paused")
		a.status("Paused")
		tuiSend(PausedMsg{Paused: true})
	} else {
		log.Info("recording_resumed")
		a.status("Recording...")
		tuiSend(PausedMsg{Paused: false})
	}
}

func (a *app) stopAndTranscribe() {
	log.Info("recording_stop")
	tuiSend(RecordingStopMsg{})

	artifact, err := a.session.Stop()
	a.session.Clear()
	if err != nil {
		log.Errorf("finalizing recording failed: %v", err)
		a.bus.Publish(events.TopicError, err.Error())
		return
	}
	if artifact == nil {
		return
	}
	log.Infof("artifact ready: %.1fs %s %dkbps", artifact.Duration, artifact.Format, artifact.Bitrate)

	a.mu.Lock()
	a.busy = true
	a.mu.Unlock()

	go func() {
		defer func() {
			a.mu.Lock()
			a.busy = false
			a.mu.Unlock()
		}()
		text, err := a.orch.Run(context.Background(), artifact)
		if err != nil {
			return
		}
		a.doc.Append(text)
		a.status("Transcription complete")
		tuiSend(DocumentMsg{Text: a.doc.Text()})
	}()
}

func (a *app) copyDocument() {
	if err := a.doc.CopyToClipboard(); err != nil {
		a.status(err.Error())
		return
	}
	a.status("Copied to clipboard")
	tuiSend(CopiedMsg{})
}

func (a *app) exportDocument(path string) {
	if path == "" {
		path = notepad.ExportFilename(time.Now())
	}
	saved, err := a.doc.Export(path)
	if err != nil {
		a.status(err.Error())
		return
	}
	log.Info("exported: " + saved)
	a.status("Exported to " + saved)
}

func (a *app) refineDocument() {
	if a.refiner == nil {
		a.status("refinement not configured (set OPENAI_API_KEY)")
		return
	}
	if a.doc.Empty() {
		a.status("nothing to refine")
		return
	}
	a.status("Refining...")
	go func() {
		refined, err := a.refiner.Refine(context.Background(), a.doc.Text())
		if err != nil {
			log.Errorf("refinement failed: %v", err)
			a.bus.Publish(events.TopicError, err.Error())
			return
		}
		a.doc.SetText(refined)
		a.status("Refined")
		tuiSend(DocumentMsg{Text: a.doc.Text()})
	}()
}

func (a *app) clearDocument() {
	a.doc.Clear()
	a.status("Cleared")
	tuiSend(DocumentMsg{Text: ""})
}

// bridgeEvents forwards bus events into the TUI message loop.
func (a *app) bridgeEvents() {
	a.bus.Subscribe(events.TopicStatus, func(msg string) {
		tuiSend(StatusMsg{Text: msg})
	})
	a.bus.Subscribe(events.TopicElapsed, func(seconds int) {
		tuiSend(ElapsedMsg{Seconds: seconds})
	})
	a.bus.Subscribe(events.TopicLevel, func(level int) {
		tuiSend(LevelMsg{Level: level})
	})
	a.bus.Subscribe(events.TopicProgress, func(p events.Progress) {
		tuiSend(ProgressMsg{Index: p.Index, Total: p.Total})
	})
	a.bus.Subscribe(events.TopicTranscript, func(text string) {
		tuiSend(TranscriptMsg{Text: text})
	})
	a.bus.Subscribe(events.TopicError, func(msg string) {
		log.Error(msg)
		tuiSend(ErrorMsg{Text: msg})
	})
}

func resolveCredentials(s settings.Settings) transcriber.Credentials {
	creds := transcriber.Credentials{
		GladiaKey: os.Getenv("GLADIA_API_KEY"),
		OpenAIKey: os.Getenv("OPENAI_API_KEY"),
	}
	if creds.Empty() && s.APIKey != "" {
		creds.GladiaKey = s.APIKey
	}
	return creds
}

func main() {
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses saved or system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	settingsFlag := flag.String("settings", "", "Settings file path (default: OS-specific location)")
	logPathFlag := flag.String("logpath", "", "Log directory path (default: OS-specific location)")
	maxChunkFlag := flag.Float64("maxchunk", pipeline.DefaultMaxChunkSeconds, "Maximum chunk length in seconds before a recording is split")
	overlapFlag := flag.Float64("overlap", pipeline.DefaultOverlapSeconds, "Overlap between chunks in seconds")
	pollMaxFlag := flag.Int("pollmax", transcriber.DefaultPollAttempts, "Maximum poll attempts for async transcription jobs")
	headlessFlag := flag.Bool("headless", false, "Run without TUI, driven by stdin commands")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("stt-notepad %s\n", version)
		os.Exit(0)
	}

	// .env is optional; explicit environment always wins.
	godotenv.Load()

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	settingsPath := *settingsFlag
	if settingsPath == "" {
		settingsPath, err = settings.DefaultPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	cfg, err := settings.Load(settingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	creds := resolveCredentials(cfg)
	if creds.Empty() {
		fmt.Fprintln(os.Stderr, "Error: no API key found. Set GLADIA_API_KEY or OPENAI_API_KEY (or api_key in settings).")
		os.Exit(1)
	}
	client, err := transcriber.New(creds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	deviceName := *deviceFlag
	if deviceName == "" && !cfg.DefaultDevice {
		deviceName = cfg.AudioDevice
	}
	if *setupFlag {
		dev, err := audio.SelectDevice(audioCtx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
		} else if dev != nil {
			deviceName = dev.Name
			cfg.AudioDevice = dev.Name
			cfg.DefaultDevice = false
			if err := settings.Save(settingsPath, cfg); err != nil {
				log.Warnf("saving settings failed: %v", err)
			}
		}
	}
	if _, err := audio.Resolve(audioCtx, deviceName); err != nil {
		log.Warnf("configured device unavailable: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: %v, using system default\n", err)
		deviceName = ""
	}

	bus := events.New()
	a := &app{
		bus:        bus,
		audioCtx:   audioCtx,
		session:    capture.NewSession(bus, encoder.DefaultSampleRate),
		doc:        notepad.NewDocument(),
		deviceName: deviceName,
	}
	a.orch = pipeline.New(bus, client)
	a.orch.MaxChunkSeconds = *maxChunkFlag
	a.orch.OverlapSeconds = *overlapFlag
	a.orch.Poll = transcriber.PollConfig{MaxAttempts: *pollMaxFlag}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		a.refiner = refine.New(key)
	}
	a.bridgeEvents()

	log.Infof("stt-notepad %s provider=%s device=%q", version, client.Name(), deviceName)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if *headlessFlag {
		runHeadless(a, sigChan)
		return
	}
	runTUI(a, client.Name(), deviceName, sigChan)
}

// runHeadless drives the app from stdin, one command per line. Meant
// for scripting and manual testing without a terminal UI.
func runHeadless(a *app, sigChan <-chan os.Signal) {
	a.bus.Subscribe(events.TopicStatus, func(msg string) { fmt.Println("status:", msg) })
	a.bus.Subscribe(events.TopicTranscript, func(text string) { fmt.Println("transcript:", text) })
	a.bus.Subscribe(events.TopicError, func(msg string) { fmt.Println("error:", msg) })
	a.bus.Subscribe(events.TopicProgress, func(p events.Progress) {
		fmt.Printf("progress: %d/%d\n", p.Index, p.Total)
	})

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-sigChan:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
			switch cmd {
			case "":
			case "record", "stop":
				a.toggleRecord()
			case "pause":
				a.togglePause()
			case "copy":
				a.copyDocument()
			case "export":
				a.exportDocument(strings.TrimSpace(arg))
			case "refine":
				a.refineDocument()
			case "clear":
				a.clearDocument()
			case "text":
				fmt.Println(a.doc.Text())
			case "quit", "exit":
				return
			default:
				fmt.Println("unknown command:", cmd)
			}
		}
	}
}
