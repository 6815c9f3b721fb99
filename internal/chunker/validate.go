package chunker

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/kotodama-ai/kotodama/pkg/types"
)

// Validation bounds. The lower bound sits below the chunker's own minimum so
// a single oversize trailing fragment is still accepted.
const (
	validMinRunes = 100
	validMaxRunes = 1200
)

// ErrInvalidChunk marks a chunk rejected by Validate.
var ErrInvalidChunk = errors.New("chunker: invalid chunk")

// Validate checks the chunks a pipeline run is about to embed: every chunk
// must carry a chunk id and topic, and its content length must fall within
// the accepted range. The first violation is returned.
func Validate(chunks []types.Chunk) error {
	for i, c := range chunks {
		if c.ChunkID == "" {
			return fmt.Errorf("%w: chunk %d has empty chunkId", ErrInvalidChunk, i)
		}
		if c.Metadata.Topic == "" {
			return fmt.Errorf("%w: %s has empty topic", ErrInvalidChunk, c.ChunkID)
		}
		n := utf8.RuneCountInString(c.Content)
		if n < validMinRunes || n > validMaxRunes {
			return fmt.Errorf("%w: %s content length %d outside [%d, %d]",
				ErrInvalidChunk, c.ChunkID, n, validMinRunes, validMaxRunes)
		}
	}
	return nil
}
