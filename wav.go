package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// SampleReader delivers mono int16 PCM blocks from an input source
type SampleReader interface {
	// ReadSamples fills buf and returns the number of samples read.
	// io.EOF signals the end of the input.
	ReadSamples(buf []int16) (int, error)
	SampleRate() int
	Close() error
}

// SampleWriter consumes mono int16 PCM blocks
type SampleWriter interface {
	WriteSamples(samples []int16) error
	Close() error
}

// WAVHeader represents a simplified WAV file header
type WAVHeader struct {
	// RIFF chunk
	ChunkID   [4]byte // "RIFF"
	ChunkSize uint32  // File size - 8
	Format    [4]byte // "WAVE"

	// fmt sub-chunk
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // 1 or 2
	SampleRate    uint32  // Sample rate in Hz
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample/8
	BlockAlign    uint16  // NumChannels * BitsPerSample/8
	BitsPerSample uint16  // 8, 16, etc.

	// data sub-chunk
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // NumSamples * NumChannels * BitsPerSample/8
}

// WAVReader reads mono 16-bit PCM WAV files
type WAVReader struct {
	file          *os.File
	sampleRate    int
	channels      int
	bitsPerSample int
	dataRemaining uint32
}

// OpenWAV opens a WAV file and positions the reader at the start of the
// data chunk. Only mono 16-bit PCM is accepted.
func OpenWAV(filename string) (*WAVReader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	r := &WAVReader{file: file}
	if err := r.readHeader(); err != nil {
		file.Close()
		return nil, err
	}

	if r.channels != 1 {
		file.Close()
		return nil, fmt.Errorf("WAV file must be mono (got %d channels)", r.channels)
	}
	if r.bitsPerSample != 16 {
		file.Close()
		return nil, fmt.Errorf("WAV file must be 16-bit PCM (got %d bits)", r.bitsPerSample)
	}

	return r, nil
}

// readHeader parses the RIFF header and scans chunks until "data"
func (r *WAVReader) readHeader() error {
	var riff struct {
		ChunkID   [4]byte
		ChunkSize uint32
		Format    [4]byte
	}
	if err := binary.Read(r.file, binary.LittleEndian, &riff); err != nil {
		return fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riff.ChunkID[:]) != "RIFF" || string(riff.Format[:]) != "WAVE" {
		return fmt.Errorf("not a WAV file")
	}

	fmtSeen := false
	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r.file, binary.LittleEndian, &chunk); err != nil {
			return fmt.Errorf("failed to read chunk header: %w", err)
		}

		switch string(chunk.ID[:]) {
		case "fmt ":
			var f struct {
				AudioFormat   uint16
				NumChannels   uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if err := binary.Read(r.file, binary.LittleEndian, &f); err != nil {
				return fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			if f.AudioFormat != 1 {
				return fmt.Errorf("WAV file must be PCM (got format %d)", f.AudioFormat)
			}
			r.sampleRate = int(f.SampleRate)
			r.channels = int(f.NumChannels)
			r.bitsPerSample = int(f.BitsPerSample)
			fmtSeen = true

			// Skip any fmt extension bytes
			if chunk.Size > 16 {
				if _, err := r.file.Seek(int64(chunk.Size-16), io.SeekCurrent); err != nil {
					return err
				}
			}

		case "data":
			if !fmtSeen {
				return fmt.Errorf("WAV data chunk before fmt chunk")
			}
			r.dataRemaining = chunk.Size
			return nil

		default:
			// Skip unknown chunks (LIST, fact, ...)
			if _, err := r.file.Seek(int64(chunk.Size), io.SeekCurrent); err != nil {
				return err
			}
		}
	}
}

// ReadSamples fills buf from the data chunk
func (r *WAVReader) ReadSamples(buf []int16) (int, error) {
	if r.dataRemaining == 0 {
		return 0, io.EOF
	}

	want := len(buf)
	if remaining := int(r.dataRemaining / 2); want > remaining {
		want = remaining
	}

	raw := make([]byte, want*2)
	n, err := io.ReadFull(r.file, raw)
	samples := n / 2
	for i := 0; i < samples; i++ {
		buf[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	r.dataRemaining -= uint32(samples * 2)

	if err == io.ErrUnexpectedEOF || (err == nil && samples == 0) {
		err = io.EOF
	}
	if samples > 0 {
		return samples, nil
	}
	return 0, err
}

// SampleRate returns the file's sample rate in Hz
func (r *WAVReader) SampleRate() int {
	return r.sampleRate
}

// Close closes the underlying file
func (r *WAVReader) Close() error {
	return r.file.Close()
}

// WAVWriter handles writing PCM audio data to WAV files
type WAVWriter struct {
	file          *os.File
	sampleRate    int
	channels      int
	bitsPerSample int
	dataSize      int64
	headerWritten bool
}

// NewWAVWriter creates a new WAV file writer
func NewWAVWriter(filename string, sampleRate, channels, bitsPerSample int) (*WAVWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}

	w := &WAVWriter{
		file:          file,
		sampleRate:    sampleRate,
		channels:      channels,
		bitsPerSample: bitsPerSample,
	}

	// Write placeholder header (updated on close)
	if err := w.writeHeader(); err != nil {
		file.Close()
		return nil, err
	}

	return w, nil
}

// writeHeader writes the WAV header to the file
func (w *WAVWriter) writeHeader() error {
	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     0xFFFFFFFF, // Placeholder, updated on close
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   uint16(w.channels),
		SampleRate:    uint32(w.sampleRate),
		ByteRate:      uint32(w.sampleRate * w.channels * w.bitsPerSample / 8),
		BlockAlign:    uint16(w.channels * w.bitsPerSample / 8),
		BitsPerSample: uint16(w.bitsPerSample),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: 0xFFFFFFFF, // Placeholder, updated on close
	}

	if err := binary.Write(w.file, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to write WAV header: %w", err)
	}

	w.headerWritten = true
	return nil
}

// WriteSamples writes PCM samples to the WAV file
func (w *WAVWriter) WriteSamples(samples []int16) error {
	if !w.headerWritten {
		return fmt.Errorf("header not written")
	}

	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(s))
	}
	if _, err := w.file.Write(raw); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	w.dataSize += int64(len(raw))

	return nil
}

// Close finalizes the header sizes and closes the file
func (w *WAVWriter) Close() error {
	// Update RIFF chunk size (file size - 8)
	if _, err := w.file.Seek(4, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w.file, binary.LittleEndian, uint32(36+w.dataSize)); err != nil {
		return err
	}

	// Update data chunk size
	if _, err := w.file.Seek(40, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w.file, binary.LittleEndian, uint32(w.dataSize)); err != nil {
		return err
	}

	return w.file.Close()
}

// rawReader reads raw signed 16-bit little-endian PCM
type rawReader struct {
	r          io.ReadCloser
	sampleRate int
}

// NewRawReader wraps a raw PCM stream at the given sample rate
func NewRawReader(r io.ReadCloser, sampleRate int) SampleReader {
	return &rawReader{r: r, sampleRate: sampleRate}
}

func (r *rawReader) ReadSamples(buf []int16) (int, error) {
	raw := make([]byte, len(buf)*2)
	n, err := io.ReadFull(r.r, raw)
	samples := n / 2
	for i := 0; i < samples; i++ {
		buf[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	if samples > 0 {
		return samples, nil
	}
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return 0, err
}

func (r *rawReader) SampleRate() int {
	return r.sampleRate
}

func (r *rawReader) Close() error {
	return r.r.Close()
}

// rawWriter writes raw signed 16-bit little-endian PCM
type rawWriter struct {
	w io.WriteCloser
}

// NewRawWriter wraps a raw PCM sink
func NewRawWriter(w io.WriteCloser) SampleWriter {
	return &rawWriter{w: w}
}

func (w *rawWriter) WriteSamples(samples []int16) error {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(s))
	}
	_, err := w.w.Write(raw)
	return err
}

func (w *rawWriter) Close() error {
	return w.w.Close()
}
