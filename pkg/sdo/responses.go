package sdo

// processOutgoing renders the server's current state into txBuffer and
// sends it, dispatching on the response half of each transfer's state
// machine. During a block upload it recurses into processOutgoing after
// every segment it sends, so one call sends the whole sub-block; the
// recursion stops once the sub-block is complete and the server waits for
// the client's acknowledgement.
func (s *SDOServer) processOutgoing() error {
	var err error

	s.txBuffer.Data = [8]byte{0}

	switch s.state {
	case stateDownloadInitiateRsp:
		s.txDownloadInitiate()

	case stateDownloadSegmentRsp:
		s.txDownloadSegment()

	case stateUploadInitiateRsp:
		s.txUploadInitiate()

	case stateUploadExpeditedRsp:
		s.txUploadExpedited()

	case stateUploadSegmentRsp:
		err = s.txUploadSegment()

	case stateDownloadBlkInitiateRsp:
		s.txDownloadBlockInitiate()

	case stateDownloadBlkSubblockRsp:
		err = s.txDownloadBlockSubBlock()

	case stateDownloadBlkEndRsp:
		s.txDownloadBlockEnd()

	case stateUploadBlkInitiateRsp:
		s.txUploadBlockInitiate()

	case stateUploadBlkSubblockSreq:
		err = s.txUploadBlockSubBlock()
		if err != nil {
			return err
		}
		s.processOutgoing()

	case stateUploadBlkEndSreq:
		s.txUploadBlockEnd()
	}
	return err
}

// txAbort sends err as an SDO abort frame and returns the server to idle. A
// non-Abort err is a bug in the state machine rather than a protocol abort,
// so it's logged and reported as AbortGeneral instead of being propagated
// verbatim to the client.
func (s *SDOServer) txAbort(err error) {
	if sdoAbort, ok := err.(Abort); !ok {
		s.logger.Error("[TX] abort on internal error, not a protocol abort code", "err", err)
		s.SendAbort(AbortGeneral)
	} else {
		s.SendAbort(sdoAbort)
	}
	s.state = stateIdle
}

func (s *SDOServer) txUploadBlockEnd() {
	s.txBuffer.Data[0] = 0xC1 | (s.blockNoData << 2)
	s.txBuffer.Data[1] = byte(s.blockCRC)
	s.txBuffer.Data[2] = byte(s.blockCRC >> 8)
	s.logger.Debug("[TX] block upload end",
		"index", s.index, "subindex", s.subindex, "raw", s.txBuffer.Data,
	)
	s.Send(s.txBuffer)
	s.state = stateUploadBlkEndCrsp
}
