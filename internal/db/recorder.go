package db

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/furrow-data/fieldline/internal/agent"
	"github.com/furrow-data/fieldline/internal/timeutil"
)

// RecorderOptions tunes the write-behind batching.
type RecorderOptions struct {
	// FlushInterval bounds how long a sample can sit in memory before it is
	// written out.
	FlushInterval time.Duration
	// BatchSize flushes early once this many rows are pending.
	BatchSize int
	// BufferSize is the channel capacity between the guidance loop and the
	// writer. A full buffer drops samples; it never blocks the producer.
	BufferSize int
	// FieldAreaM2, when positive, is used to derive covered_fraction on
	// coverage_stats rows.
	FieldAreaM2 float64
	// Clock defaults to the real clock.
	Clock timeutil.Clock
}

// DefaultRecorderOptions returns the batching defaults. At a 10 Hz tick rate
// the batch size flushes roughly every six seconds and the interval bounds
// the tail under light load.
func DefaultRecorderOptions() RecorderOptions {
	return RecorderOptions{
		FlushInterval: 2 * time.Second,
		BatchSize:     64,
		BufferSize:    1024,
	}
}

// Recorder buffers tick and event samples from the guidance loop and writes
// them to the database in batches from its own goroutine, keeping storage
// I/O off the tick path. RecordTick and RecordEvent never block: when the
// buffer is full the sample is dropped and counted.
type Recorder struct {
	db        *DB
	sessionID string
	opts      RecorderOptions
	clock     timeutil.Clock

	ch   chan recorderItem
	done chan struct{}

	closeOnce sync.Once

	mu      sync.Mutex
	dropped int64
}

var _ agent.Recorder = (*Recorder)(nil)

type recorderItem struct {
	tick  *Tick
	event *Event
}

// NewRecorder creates a recorder writing under sessionID. Zero option fields
// take the defaults. Call Start before recording, and Close after the
// producer has stopped to flush what remains.
func NewRecorder(db *DB, sessionID string, opts RecorderOptions) *Recorder {
	defaults := DefaultRecorderOptions()
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaults.FlushInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaults.BufferSize
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	return &Recorder{
		db:        db,
		sessionID: sessionID,
		opts:      opts,
		clock:     clock,
		ch:        make(chan recorderItem, opts.BufferSize),
		done:      make(chan struct{}),
	}
}

// Start runs the writer loop in a goroutine.
func (r *Recorder) Start() {
	// Created here rather than in the goroutine so a mock clock advanced
	// right after Start still fires it.
	ticker := r.clock.NewTicker(r.opts.FlushInterval)
	go r.loop(ticker)
}

// Close flushes pending samples and stops the writer. The producer must have
// stopped recording first, and Start must have been called.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() { close(r.ch) })
	<-r.done
	return nil
}

// Dropped reports how many samples were discarded because the buffer was
// full.
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Recorder) drop() {
	r.mu.Lock()
	r.dropped++
	r.mu.Unlock()
}

// RecordTick implements agent.Recorder.
func (r *Recorder) RecordTick(t agent.TickSample) {
	tick := Tick{
		SessionID:     r.sessionID,
		TUnix:         unixSeconds(t.Time),
		Easting:       t.Easting,
		Northing:      t.Northing,
		Heading:       t.Heading,
		SpeedMPS:      t.Speed,
		Reverse:       t.Reverse,
		Engaged:       t.Engaged,
		TrackName:     t.TrackName,
		CrossTrackM:   t.CrossTrackErr,
		SteerAngleDeg: t.SteerAngleDeg,
		WorkedAreaM2:  t.WorkedAreaM2,
	}
	select {
	case r.ch <- recorderItem{tick: &tick}:
	default:
		// the guidance loop must never wait on the disk
		r.drop()
	}
}

// RecordEvent implements agent.Recorder.
func (r *Recorder) RecordEvent(at time.Time, kind, detail string) {
	event := Event{
		SessionID: r.sessionID,
		TUnix:     unixSeconds(at),
		Kind:      kind,
		Detail:    detail,
	}
	select {
	case r.ch <- recorderItem{event: &event}:
	default:
		r.drop()
	}
}

func (r *Recorder) loop(ticker timeutil.Ticker) {
	defer close(r.done)
	defer ticker.Stop()

	var ticks []Tick
	var events []Event

	flush := func() {
		if err := r.flush(ticks, events); err != nil {
			log.Printf("recorder: failed to flush batch: %v", err)
		}
		ticks = ticks[:0]
		events = events[:0]
	}

	for {
		select {
		case item, ok := <-r.ch:
			if !ok {
				flush()
				return
			}
			if item.tick != nil {
				ticks = append(ticks, *item.tick)
			}
			if item.event != nil {
				events = append(events, *item.event)
			}
			if len(ticks)+len(events) >= r.opts.BatchSize {
				flush()
			}
		case <-ticker.C():
			flush()
		}
	}
}

// flush writes one batch. A batch containing ticks also produces one
// coverage_stats row from the newest tick.
func (r *Recorder) flush(ticks []Tick, events []Event) error {
	ctx := context.Background()

	if err := r.db.InsertTicks(ctx, ticks); err != nil {
		return err
	}
	if err := r.db.InsertEvents(ctx, events); err != nil {
		return err
	}

	if len(ticks) == 0 {
		return nil
	}
	last := ticks[len(ticks)-1]
	stat := CoverageStat{
		SessionID:    r.sessionID,
		TUnix:        last.TUnix,
		WorkedAreaM2: last.WorkedAreaM2,
	}
	if r.opts.FieldAreaM2 > 0 {
		fraction := last.WorkedAreaM2 / r.opts.FieldAreaM2
		stat.CoveredFraction = &fraction
	}
	return r.db.InsertCoverageStat(ctx, stat)
}
