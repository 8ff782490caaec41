// Package chunker moves large binary payloads across the transport
// boundary as a sequence of bounded-size base64 chunks.
//
// The boundary carries serialized script strings, so a whole PDF cannot
// cross it in one message without risking platform truncation or a memory
// spike. Upload bounds peak message size at O(payload/chunkSize) round
// trips, which is paid once per document open.
package chunker

import (
	"encoding/base64"
	"fmt"

	"github.com/adibenedetto117/jellychub/reader/transport"
)

// DefaultChunkSize is the number of base64 characters per chunk, chosen
// conservatively below the platform's single-message limit.
const DefaultChunkSize = 100_000

// Options tunes one upload.
type Options struct {
	// ChunkSize in base64 characters. Default: DefaultChunkSize.
	ChunkSize int

	// Seq correlates the upload with the ready/error event it produces.
	Seq uint64
}

func (o *Options) defaults() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
}

// Upload encodes payload as base64 and pushes it over ch: one Init to
// clear any prior buffer, each chunk in order, then Assemble to trigger
// surface-side reassembly, decode and renderer initialisation.
//
// An empty payload is still announced (Init with zero chunks followed by
// Assemble); the surface answers with a "no data received" error event
// rather than hanging the session.
func Upload(ch transport.Channel, payload []byte, opts Options) error {
	opts.defaults()

	encoded := base64.StdEncoding.EncodeToString(payload)
	chunks := split(encoded, opts.ChunkSize)

	if err := ch.Send(transport.Init{Seq: opts.Seq, TotalChunks: len(chunks)}); err != nil {
		return fmt.Errorf("chunker: init: %w", err)
	}
	for i, c := range chunks {
		if err := ch.Send(transport.AppendChunk{Data: c}); err != nil {
			return fmt.Errorf("chunker: chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	if err := ch.Send(transport.Assemble{Seq: opts.Seq}); err != nil {
		return fmt.Errorf("chunker: assemble: %w", err)
	}
	return nil
}

// split cuts s into fixed-size substrings; the last piece may be short.
func split(s string, size int) []string {
	if s == "" {
		return nil
	}
	chunks := make([]string, 0, (len(s)+size-1)/size)
	for i := 0; i < len(s); i += size {
		end := i + size
		if end > len(s) {
			end = len(s)
		}
		chunks = append(chunks, s[i:end])
	}
	return chunks
}
