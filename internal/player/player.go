// Package player moves decoded audio from a decoder through pooled
// audio chunks to a PortAudio output stream. One producer goroutine
// decodes; the PortAudio callback is the consumer; the chunk pipe is
// the single handoff point.
package player

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drgolem/audiopipe/pkg/audiochunk"
	"github.com/drgolem/audiopipe/pkg/chunkpipe"
	"github.com/drgolem/audiopipe/pkg/chunkpool"
	"github.com/drgolem/audiopipe/pkg/decoders"
	"github.com/drgolem/audiopipe/pkg/dop"
	"github.com/drgolem/audiopipe/pkg/pcmbuffer"
	"github.com/drgolem/audiopipe/pkg/types"

	"github.com/drgolem/go-portaudio/portaudio"
)

// Player plays audio files through the chunk pipeline using PortAudio
// callback mode.
//
// Thread safety model:
//   - the producer goroutine fills chunks and pushes them into the pipe
//   - the PortAudio C thread pops chunks in the audio callback
//   - consumed chunks go back to the pool, so the steady state
//     allocates nothing
type Player struct {
	pipe        *chunkpipe.Pipe
	pool        *chunkpool.Pool
	stream      *portaudio.PaStream
	decoder     types.AudioDecoder
	deviceIndex int

	framesPerBuffer int

	// Output format of the current file. For DSD sources this is the
	// DoP carrier format, not the raw 1-bit format.
	format  audiochunk.AudioFormat
	bitRate int

	// DSD-over-PCM state
	dsd         bool
	dsdChannels int
	dsdFrame    int64 // absolute DSD frame index, drives marker phase
	packBuf     pcmbuffer.Buffer
	dsdBuf      []byte

	producerDone         atomic.Bool
	playbackComplete     atomic.Bool
	playbackCompleteChan chan struct{}
	stopChan             chan struct{}
	wg                   sync.WaitGroup
	mu                   sync.Mutex
	stopped              bool

	// Callback state for partial chunk consumption
	current     atomic.Pointer[audiochunk.Chunk]
	chunkOffset int

	currentFileName string
	startTime       time.Time
	producedFrames  atomic.Uint64
	playedFrames    atomic.Uint64
}

// New creates a Player.
//
// Parameters:
//   - deviceIdx: PortAudio device index for audio output
//   - pipeCapacity: chunk pipe capacity in chunks
//   - framesPerBuffer: PortAudio frames per buffer callback
func New(deviceIdx int, pipeCapacity uint64, framesPerBuffer int) *Player {
	return &Player{
		pipe:            chunkpipe.New(pipeCapacity),
		pool:            chunkpool.New(),
		deviceIndex:     deviceIdx,
		framesPerBuffer: framesPerBuffer,
	}
}

// OpenFile opens an audio file and negotiates the output format. DSD
// sources (.dsf) are carried as DoP: 1-bit samples repacked into
// marker-tagged 24-bit-in-32 PCM words at one eighth of the DSD rate.
func (p *Player) OpenFile(fileName string) error {
	if p.decoder != nil {
		p.decoder.Close()
		p.decoder = nil
	}

	decoder, err := decoders.NewDecoder(fileName)
	if err != nil {
		return err
	}

	rate, channels, bps := decoder.GetFormat()

	if decoders.IsDSD(decoder) {
		p.dsd = true
		p.dsdChannels = channels
		p.dsdFrame = 0
		// One DoP word carries one DSD byte (8 samples).
		p.format = audiochunk.AudioFormat{
			SampleRate:    rate / 8,
			Channels:      channels,
			BitsPerSample: 32,
		}
		p.bitRate = rate * channels / 1000
	} else {
		p.dsd = false
		p.format = audiochunk.AudioFormat{
			SampleRate:    rate,
			Channels:      channels,
			BitsPerSample: bps,
		}
		p.bitRate = rate * channels * bps / 1000
	}

	if !p.format.Valid() {
		decoder.Close()
		return fmt.Errorf("unusable output format %s for %s", p.format, fileName)
	}

	slog.Info("Audio file opened",
		"file", filepath.Base(fileName),
		"sample_rate", rate,
		"channels", channels,
		"bits_per_sample", bps,
		"dop", p.dsd)

	p.decoder = decoder
	p.currentFileName = filepath.Base(fileName)
	return nil
}

// Play starts playback of the currently opened file. Use Wait to block
// until it finishes, or Stop to interrupt.
func (p *Player) Play() error {
	if p.decoder == nil {
		return fmt.Errorf("no file opened")
	}

	p.producerDone.Store(false)
	p.playbackComplete.Store(false)
	p.playbackCompleteChan = make(chan struct{})
	p.stopChan = make(chan struct{})
	p.stopped = false
	p.current.Store(nil)
	p.chunkOffset = 0
	p.pipe.Reset()
	p.producedFrames.Store(0)
	p.playedFrames.Store(0)
	p.startTime = time.Now()

	if err := p.initializeStream(); err != nil {
		return err
	}

	p.wg.Add(1)
	go p.producer()

	slog.Debug("Playback started")
	return nil
}

func (p *Player) initializeStream() error {
	var sampleFormat portaudio.PaSampleFormat
	switch p.format.BitsPerSample {
	case 16:
		sampleFormat = portaudio.SampleFmtInt16
	case 24:
		sampleFormat = portaudio.SampleFmtInt24
	case 32:
		sampleFormat = portaudio.SampleFmtInt32
	default:
		return fmt.Errorf("unsupported bit depth: %d", p.format.BitsPerSample)
	}

	p.stream = &portaudio.PaStream{
		OutputParameters: &portaudio.PaStreamParameters{
			DeviceIndex:  p.deviceIndex,
			ChannelCount: p.format.Channels,
			SampleFormat: sampleFormat,
		},
		SampleRate: float64(p.format.SampleRate),
	}

	if err := p.stream.OpenCallback(p.framesPerBuffer, p.audioCallback); err != nil {
		return fmt.Errorf("failed to open stream with callback: %w", err)
	}
	if err := p.stream.StartStream(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	return nil
}

// audioCallback runs on PortAudio's audio thread and is the consumer
// side of the pipe. It must not block or allocate.
func (p *Player) audioCallback(
	input, output []byte,
	frameCount uint,
	timeInfo *portaudio.StreamCallbackTimeInfo,
	statusFlags portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {

	frameSize := p.format.FrameSize()
	bytesNeeded := int(frameCount) * frameSize
	bytesWritten := 0

	if p.producerDone.Load() && p.pipe.AvailableRead() == 0 && p.current.Load() == nil {
		p.playbackComplete.Store(true)
		select {
		case <-p.playbackCompleteChan:
		default:
			close(p.playbackCompleteChan)
		}
		return portaudio.Complete
	}

	for bytesWritten < bytesNeeded {
		chunk := p.current.Load()
		if chunk == nil {
			c, err := p.pipe.Pop()
			if err != nil {
				// Nothing buffered, pad with silence below.
				break
			}
			p.current.Store(c)
			p.chunkOffset = 0
			chunk = c
		}

		payload := chunk.Bytes()
		n := min(len(payload)-p.chunkOffset, bytesNeeded-bytesWritten)
		copy(output[bytesWritten:bytesWritten+n], payload[p.chunkOffset:p.chunkOffset+n])
		bytesWritten += n
		p.chunkOffset += n

		if p.chunkOffset >= len(payload) {
			p.current.Store(nil)
			p.chunkOffset = 0
			p.pool.Put(chunk)
		}
	}

	if bytesWritten < bytesNeeded {
		clear(output[bytesWritten:bytesNeeded])
	}

	p.playedFrames.Add(uint64(bytesWritten / frameSize))
	return portaudio.Continue
}

// producer fills chunks from the decoder and pushes them into the
// pipe. PCM flows straight into the reserved region with no copy; DSD
// is repacked through the DoP packer first.
func (p *Player) producer() {
	defer p.wg.Done()
	defer p.producerDone.Store(true)

	frameSize := p.format.FrameSize()

	for {
		select {
		case <-p.stopChan:
			slog.Debug("Producer stopped", "frames", p.producedFrames.Load())
			return
		default:
		}

		chunk := p.pool.Get()
		seconds := float64(p.producedFrames.Load()) / float64(p.format.SampleRate)

		done, err := p.fillChunk(chunk, seconds, frameSize)
		if err != nil && !errors.Is(err, io.EOF) {
			// Codec wrappers may signal the end with their own error;
			// anything else still ends the decode pass, just louder.
			slog.Warn("Decoder stopped", "error", err)
			done = true
		}

		if chunk.Empty() {
			p.pool.Put(chunk)
			if done {
				slog.Debug("Producer finished", "frames", p.producedFrames.Load())
				return
			}
			continue
		}

		if !p.pushChunk(chunk) {
			return
		}
		if done {
			slog.Debug("Producer finished", "frames", p.producedFrames.Load())
			return
		}
	}
}

// fillChunk decodes into one chunk until it is full or the stream
// ends. Returns done=true when the stream is exhausted.
func (p *Player) fillChunk(chunk *audiochunk.Chunk, seconds float64, frameSize int) (bool, error) {
	for {
		region, err := chunk.Reserve(p.format, seconds, p.bitRate)
		if err != nil {
			return true, err
		}
		if region == nil {
			return false, nil
		}

		var n int
		if p.dsd {
			n, err = p.fillDoP(region)
		} else {
			n, err = p.decoder.DecodeSamples(len(region)/frameSize, region)
		}

		if n > 0 {
			full, cerr := chunk.Commit(p.format, n*frameSize)
			if cerr != nil {
				return true, cerr
			}
			p.producedFrames.Add(uint64(n))
			if full {
				return errors.Is(err, io.EOF), err
			}
		}

		if err != nil || n == 0 {
			return true, err
		}
	}
}

// fillDoP reads raw DSD bytes, packs them into DoP words and copies
// the packed view into the reserved chunk region. Returns the number
// of output PCM frames produced.
func (p *Player) fillDoP(region []byte) (int, error) {
	frames := len(region) / 4 / p.dsdChannels
	need := frames * p.dsdChannels
	if cap(p.dsdBuf) < need {
		p.dsdBuf = make([]byte, need)
	}

	n, err := p.decoder.DecodeSamples(frames, p.dsdBuf[:need])
	if n == 0 {
		return 0, err
	}

	packed, perr := dop.PackFrom(&p.packBuf, p.dsdChannels, p.dsdFrame, p.dsdBuf[:n*p.dsdChannels])
	if perr != nil {
		return 0, perr
	}
	p.dsdFrame += int64(n)

	copy(region, packed)
	return n, err
}

// pushChunk hands a full chunk to the consumer, spinning politely
// while the pipe is full. Returns false when stopped.
func (p *Player) pushChunk(chunk *audiochunk.Chunk) bool {
	for {
		if err := p.pipe.Push(chunk); err == nil {
			return true
		}

		select {
		case <-p.stopChan:
			p.pool.Put(chunk)
			return false
		case <-time.After(time.Millisecond):
		}
	}
}

// Wait blocks until the current file finishes playing: first the
// producer, then the callback draining all buffered chunks.
func (p *Player) Wait() {
	p.wg.Wait()
	<-p.playbackCompleteChan
}

// Stop interrupts playback. Safe to call multiple times.
func (p *Player) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stopChan)
	p.wg.Wait()

	if p.stream != nil {
		if err := p.stream.StopStream(); err != nil {
			slog.Warn("Failed to stop stream", "error", err)
		}
		if err := p.stream.CloseCallback(); err != nil {
			slog.Warn("Failed to close stream", "error", err)
		}
		p.stream = nil
	}

	if p.decoder != nil {
		if err := p.decoder.Close(); err != nil {
			slog.Warn("Failed to close decoder", "error", err)
		}
		p.decoder = nil
	}

	return nil
}

// GetPlaybackStatus implements types.PlaybackMonitor.
func (p *Player) GetPlaybackStatus() types.PlaybackStatus {
	produced := p.producedFrames.Load()
	played := p.playedFrames.Load()
	buffered := uint64(0)
	if produced > played {
		buffered = produced - played
	}

	return types.PlaybackStatus{
		FileName:        p.currentFileName,
		SampleRate:      p.format.SampleRate,
		Channels:        p.format.Channels,
		BitsPerSample:   p.format.BitsPerSample,
		FramesPerBuffer: p.framesPerBuffer,
		PlayedSamples:   played,
		BufferedSamples: buffered,
		ElapsedTime:     time.Since(p.startTime),
	}
}
