package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	evbus "github.com/asaskevich/EventBus"

	"sttnote/capture"
	"sttnote/chunk"
	"sttnote/encoder"
	"sttnote/events"
	"sttnote/log"
	"sttnote/transcriber"
)

const (
	DefaultMaxChunkSeconds = 300
	DefaultOverlapSeconds  = 2
)

// ErrNoAudio is returned when Run is handed a nil artifact, which is
// what a stop without any recorded audio produces, or an artifact
// whose backing file cannot be read.
var ErrNoAudio = errors.New("no audio to transcribe")

// ErrAllChunksFailed is returned only when not a single chunk came
// back with text.
var ErrAllChunksFailed = errors.New("all chunks failed to transcribe")

// Orchestrator turns a finished recording into a transcript. Long
// recordings are split into overlapping chunks that are submitted
// strictly in order so the assembled text reads front to back.
type Orchestrator struct {
	Client          transcriber.Client
	MaxChunkSeconds float64
	OverlapSeconds  float64
	Poll            transcriber.PollConfig

	bus     evbus.Bus
	extract func(*capture.Artifact, []chunk.Span) ([]*capture.Artifact, error)
	lastJob *Job
}

func New(bus evbus.Bus, client transcriber.Client) *Orchestrator {
	return &Orchestrator{
		Client:          client,
		MaxChunkSeconds: DefaultMaxChunkSeconds,
		OverlapSeconds:  DefaultOverlapSeconds,
		bus:             bus,
		extract:         chunk.Extract,
	}
}

// Run consumes the artifact and returns the assembled transcript.
// The artifact and any chunk artifacts are released regardless of
// outcome. Individual chunk failures are logged and skipped; the run
// as a whole fails only when every chunk does.
func (o *Orchestrator) Run(ctx context.Context, artifact *capture.Artifact) (string, error) {
	if artifact == nil {
		return "", ErrNoAudio
	}
	defer artifact.Release()

	o.publishStatus("Transcribing...")

	if artifact.Duration <= o.MaxChunkSeconds {
		return o.runDirect(ctx, artifact)
	}
	return o.runChunked(ctx, artifact)
}

func (o *Orchestrator) runDirect(ctx context.Context, artifact *capture.Artifact) (string, error) {
	job := newJob(1)
	o.lastJob = job
	log.JobStart(job.ID, o.Client.Name(), 1)

	data, err := artifact.Bytes()
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrNoAudio, err)
		o.publishError(err)
		return "", err
	}

	job.Chunks[0].State = StateSubmitted
	var last *transcriber.Submission
	text, err := transcriber.Transcribe(ctx, o.Client, data, artifact.Format, o.pollConfig(job, 0, &last))
	o.logMetrics(artifact, job, len(data), last)
	if err != nil {
		job.Chunks[0].State = StateFailed
		job.Chunks[0].Err = err
		log.JobEnd(job.ID, 0, 1)
		o.publishError(err)
		return "", err
	}
	job.Chunks[0].State = StateDone
	job.Chunks[0].Text = text

	o.publishProgress(1, 1)
	log.JobEnd(job.ID, 1, 0)
	o.publishTranscript(text)
	return text, nil
}

func (o *Orchestrator) runChunked(ctx context.Context, artifact *capture.Artifact) (string, error) {
	spans, err := chunk.Plan(artifact.Duration, o.MaxChunkSeconds, o.OverlapSeconds)
	if err != nil {
		o.publishError(err)
		return "", err
	}

	chunks, err := o.extract(artifact, spans)
	if err != nil {
		err = fmt.Errorf("splitting recording: %w", err)
		o.publishError(err)
		return "", err
	}

	job := newJob(len(chunks))
	o.lastJob = job
	log.JobStart(job.ID, o.Client.Name(), len(chunks))

	var (
		parts     []string
		submitted int
		last      *transcriber.Submission
	)
	for i, c := range chunks {
		job.Chunks[i].State = StateSubmitted
		text, n, err := o.transcribeChunk(ctx, c, o.pollConfig(job, i, &last))
		c.Release()
		submitted += n
		if err != nil {
			if ctx.Err() != nil {
				o.releaseRemaining(chunks[i+1:])
				o.publishError(err)
				return "", err
			}
			job.Chunks[i].State = StateFailed
			job.Chunks[i].Err = err
			log.Errorf("chunk %d/%d failed: %v", i+1, len(chunks), err)
		} else {
			job.Chunks[i].State = StateDone
			job.Chunks[i].Text = text
			parts = append(parts, text)
		}
		o.publishProgress(i+1, len(chunks))
	}

	o.logMetrics(artifact, job, submitted, last)
	log.JobEnd(job.ID, job.Succeeded(), job.Failed())

	if len(parts) == 0 {
		o.publishError(ErrAllChunksFailed)
		return "", ErrAllChunksFailed
	}

	text := strings.Join(parts, " ")
	o.publishTranscript(text)
	return text, nil
}

func (o *Orchestrator) transcribeChunk(ctx context.Context, c *capture.Artifact, cfg transcriber.PollConfig) (string, int, error) {
	data, err := c.Bytes()
	if err != nil {
		return "", 0, err
	}
	text, err := transcriber.Transcribe(ctx, o.Client, data, c.Format, cfg)
	return text, len(data), err
}

// pollConfig copies the orchestrator's poll settings and hooks chunk
// state tracking into the submit callback. Synchronous providers leave
// the chunk in Submitted until the result lands; asynchronous ones move
// it to Polling for the duration of the poll loop.
func (o *Orchestrator) pollConfig(job *Job, index int, last **transcriber.Submission) transcriber.PollConfig {
	cfg := o.Poll
	cfg.OnSubmit = func(sub *transcriber.Submission) {
		*last = sub
		if sub.Job != nil {
			job.Chunks[index].State = StatePolling
		}
	}
	return cfg
}

// logMetrics writes one diagnostics line per finished job: audio and
// payload sizes, chunk counts, and the network timing of the last
// provider exchange.
func (o *Orchestrator) logMetrics(artifact *capture.Artifact, job *Job, submittedBytes int, last *transcriber.Submission) {
	m := log.Metrics{
		AudioLengthS:     artifact.Duration,
		RawSizeKB:        artifact.Duration * encoder.DefaultSampleRate * (encoder.BitsPerSample / 8) / 1024,
		CompressedSizeKB: float64(submittedBytes) / 1024,
		BitrateKbps:      artifact.Bitrate,
		Chunks:           len(job.Chunks),
		FailedChunks:     job.Failed(),
	}

	connReused := false
	tlsProto := ""
	if last != nil && last.Metrics != nil {
		nm := last.Metrics
		m.DNSTimeMs = float64(nm.DNS.Microseconds()) / 1000
		m.TLSTimeMs = float64(nm.TLS.Microseconds()) / 1000
		m.TTFBMs = float64(nm.TTFB.Microseconds()) / 1000
		total := nm.Total
		if total == 0 {
			total = nm.Sum()
		}
		m.TotalTimeMs = float64(total.Microseconds()) / 1000
		connReused = nm.ConnReused
		tlsProto = nm.TLSProtocol
	}

	log.TranscriptionMetrics(m, o.Client.Name(), artifact.Format, connReused, tlsProto)
	if last != nil && last.RateLimit != "" && last.RateLimit != "?/?" {
		log.Infof("rate limit remaining: %s", last.RateLimit)
	}
}

func (o *Orchestrator) releaseRemaining(chunks []*capture.Artifact) {
	for _, c := range chunks {
		c.Release()
	}
}

func (o *Orchestrator) publishStatus(msg string) {
	if o.bus != nil {
		o.bus.Publish(events.TopicStatus, msg)
	}
}

func (o *Orchestrator) publishProgress(index, total int) {
	if o.bus != nil {
		o.bus.Publish(events.TopicProgress, events.Progress{Index: index, Total: total})
	}
}

func (o *Orchestrator) publishTranscript(text string) {
	log.TranscriptionText(text)
	if o.bus != nil {
		o.bus.Publish(events.TopicTranscript, text)
	}
}

func (o *Orchestrator) publishError(err error) {
	if o.bus != nil {
		o.bus.Publish(events.TopicError, err.Error())
	}
}
