package nmt

import (
	"encoding/binary"
	"time"

	"github.com/fieldbus-go/conet/pkg/od"
)

// [NMT] update heartbeat period
func writeEntry1017(stream *od.Stream, data []byte, countWritten *uint16) error {
	if stream.Subindex != 0 || data == nil || len(data) != 2 || countWritten == nil || stream == nil {
		return od.ErrDevIncompat
	}
	nmt, ok := stream.Object.(*NMT)
	if !ok {
		return od.ErrDevIncompat
	}
	nmt.mu.Lock()
	defer nmt.mu.Unlock()

	nmt.hearbeatProducerTimeUs = uint32(binary.LittleEndian.Uint16(data)) * 1000
	if nmt.hearbeatProducerTimeUs > 0 {
		d := time.Duration(nmt.hearbeatProducerTimeUs) * time.Microsecond
		if nmt.timer == nil {
			nmt.timer = nmt.bm.Timers().Schedule(d, nmt.heartbeatTimeout)
		} else {
			nmt.timer.Reset(d)
		}
	}
	nmt.logger.Debug("updated heartbeat period", "ms", nmt.hearbeatProducerTimeUs/1000)
	return od.WriteEntryDefault(stream, data, countWritten)
}
