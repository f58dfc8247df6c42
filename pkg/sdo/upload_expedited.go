package sdo

import (
	"fmt"
)

// rxUploadInitiate decides, from the size already resolved against the
// object dictionary, whether the upload will complete in one expedited
// frame (<=4 bytes) or needs the segmented response path.
func (s *SDOServer) rxUploadInitiate(rx SDOMessage) error {
	s.logger.Debug("[RX] expedited upload initiate req",
		"index", fmt.Sprintf("x%x", s.index),
		"subindex", fmt.Sprintf("x%x", s.subindex),
		"raw", rx.raw,
	)
	if s.sizeIndicated > 0 && s.sizeIndicated <= 4 {
		s.state = stateUploadExpeditedRsp
		return nil
	}
	s.state = stateUploadInitiateRsp
	return nil
}

// txUploadExpedited sends the whole value in the initiate response frame.
func (s *SDOServer) txUploadExpedited() {
	s.txBuffer.Data[0] = 0x43 | ((4 - byte(s.sizeIndicated)) << 2)
	s.buf.Read(s.txBuffer.Data[4 : 4+s.sizeIndicated])
	s.state = stateIdle
	s.txBuffer.Data[1] = byte(s.index)
	s.txBuffer.Data[2] = byte(s.index >> 8)
	s.txBuffer.Data[3] = s.subindex
	_ = s.Send(s.txBuffer)
	s.logger.Debug("[TX] expedited upload resp",
		"index", fmt.Sprintf("x%x", s.index),
		"subindex", fmt.Sprintf("x%x", s.subindex),
		"raw", s.txBuffer.Data,
	)
}
