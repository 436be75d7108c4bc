package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	evbus "github.com/asaskevich/EventBus"

	"sttnote/audio"
	"sttnote/capture"
	"sttnote/chunk"
	"sttnote/events"
	"sttnote/log"
	"sttnote/transcriber"
)

func makeArtifact(t *testing.T, content string, duration float64) *capture.Artifact {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "artifact-*.flac")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return &capture.Artifact{Path: f.Name(), Duration: duration, Format: "flac"}
}

func fakeExtract(t *testing.T, n int) func(*capture.Artifact, []chunk.Span) ([]*capture.Artifact, error) {
	return func(_ *capture.Artifact, spans []chunk.Span) ([]*capture.Artifact, error) {
		if len(spans) != n {
			t.Errorf("planned %d spans, want %d", len(spans), n)
		}
		out := make([]*capture.Artifact, n)
		for i := range out {
			out[i] = makeArtifact(t, "chunk", 1)
		}
		return out, nil
	}
}

type busProbe struct {
	progress    []events.Progress
	transcripts []string
	errors      []string
}

func probeBus(t *testing.T, bus evbus.Bus) *busProbe {
	t.Helper()
	p := &busProbe{}
	bus.Subscribe(events.TopicProgress, func(pr events.Progress) { p.progress = append(p.progress, pr) })
	bus.Subscribe(events.TopicTranscript, func(text string) { p.transcripts = append(p.transcripts, text) })
	bus.Subscribe(events.TopicError, func(msg string) { p.errors = append(p.errors, msg) })
	return p
}

func TestRunNoAudio(t *testing.T) {
	o := New(evbus.New(), transcriber.NewFake("unused"))
	if _, err := o.Run(context.Background(), nil); !errors.Is(err, ErrNoAudio) {
		t.Errorf("error = %v, want ErrNoAudio", err)
	}
}

func TestRunDirectPath(t *testing.T) {
	bus := evbus.New()
	probe := probeBus(t, bus)

	o := New(bus, transcriber.NewFake("hello world"))
	o.extract = func(*capture.Artifact, []chunk.Span) ([]*capture.Artifact, error) {
		t.Fatal("extract must not run for a short recording")
		return nil, nil
	}

	artifact := makeArtifact(t, "audio", 10)
	got, err := o.Run(context.Background(), artifact)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "hello world" {
		t.Errorf("transcript = %q", got)
	}
	if len(probe.progress) != 1 || probe.progress[0] != (events.Progress{Index: 1, Total: 1}) {
		t.Errorf("progress events = %v", probe.progress)
	}
	if len(probe.transcripts) != 1 || probe.transcripts[0] != "hello world" {
		t.Errorf("transcript events = %v", probe.transcripts)
	}
	if _, err := os.Stat(artifact.Path); !os.IsNotExist(err) {
		t.Error("artifact not released after run")
	}
}

func TestRunDirectAtExactBoundary(t *testing.T) {
	o := New(evbus.New(), transcriber.NewFake("boundary"))
	o.extract = func(*capture.Artifact, []chunk.Span) ([]*capture.Artifact, error) {
		t.Fatal("recording equal to the chunk limit must not be split")
		return nil, nil
	}

	got, err := o.Run(context.Background(), makeArtifact(t, "audio", DefaultMaxChunkSeconds))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "boundary" {
		t.Errorf("transcript = %q", got)
	}
}

func TestRunChunkedJoinsWithSingleSpace(t *testing.T) {
	bus := evbus.New()
	probe := probeBus(t, bus)

	o := New(bus, transcriber.NewFake("one", "two", "three"))
	o.extract = fakeExtract(t, 3)

	got, err := o.Run(context.Background(), makeArtifact(t, "audio", 700))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "one two three" {
		t.Errorf("transcript = %q, want %q", got, "one two three")
	}
	want := []events.Progress{{Index: 1, Total: 3}, {Index: 2, Total: 3}, {Index: 3, Total: 3}}
	if len(probe.progress) != len(want) {
		t.Fatalf("progress events = %v", probe.progress)
	}
	for i, p := range probe.progress {
		if p != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, p, want[i])
		}
	}
}

type scriptedReply struct {
	text string
	err  error
}

type scriptedClient struct {
	replies []scriptedReply
	calls   int
}

func (s *scriptedClient) Name() string { return "scripted" }

func (s *scriptedClient) Submit(context.Context, []byte, string) (*transcriber.Submission, error) {
	r := s.replies[s.calls]
	s.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &transcriber.Submission{Text: r.text}, nil
}

func TestRunChunkedSkipsFailedChunk(t *testing.T) {
	bus := evbus.New()
	probe := probeBus(t, bus)

	client := &scriptedClient{replies: []scriptedReply{
		{text: "first"},
		{err: &transcriber.APIError{Provider: "scripted", Status: 500, Body: "boom"}},
		{text: "third"},
	}}
	o := New(bus, client)
	o.extract = fakeExtract(t, 3)

	got, err := o.Run(context.Background(), makeArtifact(t, "audio", 700))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "first third" {
		t.Errorf("transcript = %q, want %q", got, "first third")
	}
	if len(probe.progress) != 3 {
		t.Errorf("progress events = %v, want one per chunk including the failed one", probe.progress)
	}
}

func TestRunChunkedAllFail(t *testing.T) {
	bus := evbus.New()
	probe := probeBus(t, bus)

	apiErr := &transcriber.APIError{Provider: "scripted", Status: 500, Body: "boom"}
	client := &scriptedClient{replies: []scriptedReply{{err: apiErr}, {err: apiErr}}}
	o := New(bus, client)
	o.extract = fakeExtract(t, 2)

	_, err := o.Run(context.Background(), makeArtifact(t, "audio", 400))
	if !errors.Is(err, ErrAllChunksFailed) {
		t.Fatalf("error = %v, want ErrAllChunksFailed", err)
	}
	if len(probe.errors) != 1 {
		t.Errorf("error events = %v", probe.errors)
	}
}

// Records through the fake device and runs the whole pipeline:
// three seconds of audio become one artifact, submitted directly, and
// the provider's text is the final transcript.
func TestRecordThenTranscribe(t *testing.T) {
	bus := evbus.New()
	probe := probeBus(t, bus)

	const sampleRate = 44100
	samples := make([]int16, 3*sampleRate)
	for i := range samples {
		samples[i] = int16(i % 500)
	}
	actx := audio.NewFakeContext(samples, audio.DeviceInfo{ID: "1", Name: "Mic-1"})

	sess := capture.NewSession(bus, sampleRate)
	if err := sess.Start(actx, "Mic-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	artifact, err := sess.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if artifact == nil {
		t.Fatal("expected an artifact")
	}
	if artifact.Duration < 2.9 || artifact.Duration > 3.1 {
		t.Errorf("artifact duration = %v, want about 3s", artifact.Duration)
	}

	o := New(bus, transcriber.NewFake("hello world"))
	got, err := o.Run(context.Background(), artifact)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "hello world" {
		t.Errorf("transcript = %q, want %q", got, "hello world")
	}
	if len(probe.transcripts) != 1 || probe.transcripts[0] != "hello world" {
		t.Errorf("transcript events = %v", probe.transcripts)
	}
}

func TestRunChunkedReleasesChunkArtifacts(t *testing.T) {
	var paths []string
	o := New(evbus.New(), transcriber.NewFake("a", "b"))
	o.extract = func(_ *capture.Artifact, spans []chunk.Span) ([]*capture.Artifact, error) {
		out := make([]*capture.Artifact, len(spans))
		for i := range out {
			out[i] = makeArtifact(t, "chunk", 1)
			paths = append(paths, out[i].Path)
		}
		return out, nil
	}

	if _, err := o.Run(context.Background(), makeArtifact(t, "audio", 400)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("chunk artifact %s not released", p)
		}
	}
}

func TestRunUnreadableArtifact(t *testing.T) {
	bus := evbus.New()
	probe := probeBus(t, bus)

	o := New(bus, transcriber.NewFake("unused"))
	artifact := &capture.Artifact{
		Path:     filepath.Join(t.TempDir(), "gone.flac"),
		Duration: 3,
		Format:   "flac",
	}

	_, err := o.Run(context.Background(), artifact)
	if !errors.Is(err, ErrNoAudio) {
		t.Errorf("error = %v, want ErrNoAudio", err)
	}
	if len(probe.errors) != 1 {
		t.Errorf("error events = %v", probe.errors)
	}
}

// chunkStateClient records the state each chunk is in when its audio
// reaches the provider.
type chunkStateClient struct {
	o    *Orchestrator
	seen []State
}

func (c *chunkStateClient) Name() string { return "fake" }

func (c *chunkStateClient) Submit(context.Context, []byte, string) (*transcriber.Submission, error) {
	i := len(c.seen)
	c.seen = append(c.seen, c.o.lastJob.Chunks[i].State)
	return &transcriber.Submission{Text: fmt.Sprintf("part%d", i+1)}, nil
}

func TestRunChunkedAdvancesChunkStates(t *testing.T) {
	client := &chunkStateClient{}
	o := New(evbus.New(), client)
	client.o = o
	o.extract = fakeExtract(t, 3)

	if _, err := o.Run(context.Background(), makeArtifact(t, "audio", 750)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(client.seen) != 3 {
		t.Fatalf("submits = %d, want 3", len(client.seen))
	}
	for i, s := range client.seen {
		if s != StateSubmitted {
			t.Errorf("chunk %d state at submit = %v, want submitted", i, s)
		}
	}
	for i, c := range o.lastJob.Chunks {
		if c.State != StateDone {
			t.Errorf("chunk %d final state = %v, want done", i, c.State)
		}
	}
}

func TestPollConfigMarksAsyncChunkPolling(t *testing.T) {
	o := New(evbus.New(), transcriber.NewFake())
	job := newJob(2)
	var last *transcriber.Submission

	sub := &transcriber.Submission{Job: &transcriber.Job{ID: "j1"}}
	o.pollConfig(job, 1, &last).OnSubmit(sub)
	if job.Chunks[1].State != StatePolling {
		t.Errorf("async chunk state = %v, want polling", job.Chunks[1].State)
	}
	if last != sub {
		t.Error("submission was not recorded")
	}

	job.Chunks[0].State = StateSubmitted
	o.pollConfig(job, 0, &last).OnSubmit(&transcriber.Submission{Text: "done"})
	if job.Chunks[0].State != StateSubmitted {
		t.Errorf("sync chunk state = %v, want submitted", job.Chunks[0].State)
	}
}

func TestRunLogsTranscriptionMetrics(t *testing.T) {
	oldDir := log.Dir()
	dir := t.TempDir()
	log.SetDir(dir)
	if err := log.Init(); err != nil {
		t.Fatalf("log init: %v", err)
	}
	defer func() {
		log.Close()
		log.SetDir(oldDir)
	}()

	client := transcriber.NewFake("hello world")
	client.Metrics = &transcriber.NetworkMetrics{
		DNS:         5 * time.Millisecond,
		TLS:         12 * time.Millisecond,
		TTFB:        80 * time.Millisecond,
		Total:       200 * time.Millisecond,
		ConnReused:  true,
		TLSProtocol: "TLS 1.3",
	}
	client.RateLimit = "41/50"

	o := New(evbus.New(), client)
	if _, err := o.Run(context.Background(), makeArtifact(t, "audio", 10)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	log.Close()

	data, err := os.ReadFile(filepath.Join(dir, "diagnostics_log.txt"))
	if err != nil {
		t.Fatalf("reading diagnostics log: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"transcription",
		"provider=fake",
		"conn=reused",
		"dns_ms=5",
		"ttfb_ms=80",
		"total_ms=200",
		"chunks=1",
		"failed_chunks=0",
		"rate limit remaining: 41/50",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("diagnostics log missing %q", want)
		}
	}
}
