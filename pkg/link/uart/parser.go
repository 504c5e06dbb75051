package uart

// SyncState indicates the state of communication.
type SyncState int

const (
	// SyncStateSyncing means the communication is not synchronized.
	SyncStateSyncing SyncState = 0
	// SyncStateReady means the communication is synchronized and ready for frames.
	SyncStateReady SyncState = 0x01
	// SyncStateReceiving means there's on-going communication for syncing or a frame.
	SyncStateReceiving SyncState = 0x02
)

// IsReady indicates if the communication is ready for frames.
func (s SyncState) IsReady() bool {
	return s&SyncStateReady != 0
}

// IsReceiving indicates if it's in the middle of syncing or receiving a frame.
func (s SyncState) IsReceiving() bool {
	return s&SyncStateReceiving != 0
}

const (
	syncREQ byte = 0xff
	syncACK byte = 0xfe
)

type parseState int

const (
	stateSync       parseState = iota // sync req sent, waiting for syncREQ or syncACK
	stateSyncReqSeq                   // waiting for peer seq after syncREQ
	stateSyncAckSeq                   // waiting for peer seq after syncACK
	stateSeq                          // ready, waiting for frame seq
	stateAckSeq                       // syncACK while ready, validate seq
	stateLenHi
	stateLenLo
	stateData
	stateSum
)

// parseResult is the outcome of one parsing step. A non-zero sync is
// the sync byte to send, followed by our own sequence number.
type parseResult struct {
	sync  byte
	state SyncState
	frame *Frame
}

// restartTimer decides whether the resync timer runs: it guards every
// handshake and partially received frame.
func (r parseResult) restartTimer() bool {
	return r.state.IsReceiving() || r.sync == syncREQ
}

type parser struct {
	peerSeq Seq
	state   parseState
	frame   *Frame
	recvLen int
}

func (p *parser) syncState() SyncState {
	switch {
	case p.state == stateSync:
		return SyncStateSyncing
	case p.state == stateSeq:
		return SyncStateReady
	case p.state > stateSeq:
		return SyncStateReady | SyncStateReceiving
	}
	return SyncStateSyncing | SyncStateReceiving
}

func (p *parser) result(sync byte, f *Frame) parseResult {
	return parseResult{sync: sync, state: p.syncState(), frame: f}
}

// reset drops the current frame and requests a handshake.
func (p *parser) reset() parseResult {
	p.frame = nil
	return p.result(p.resync())
}

// timeout aborts an incomplete handshake or frame.
func (p *parser) timeout() parseResult {
	if p.state != stateSeq {
		return p.result(p.resync())
	}
	return p.result(0, nil)
}

func (p *parser) parse(b byte) parseResult {
	return p.result(p.parseByte(b))
}

func (p *parser) parseByte(b byte) (byte, *Frame) {
	switch p.state {
	case stateSync:
		switch b {
		case syncREQ:
			p.state = stateSyncReqSeq
		case syncACK:
			p.state = stateSyncAckSeq
		}
	case stateSyncReqSeq:
		if seq := Seq(b); seq.IsValid() {
			p.peerSeq, p.state = seq, stateSeq
			return syncACK, nil
		}
		return p.resync()
	case stateSyncAckSeq:
		if seq := Seq(b); seq.IsValid() {
			p.peerSeq, p.state = seq, stateSeq
			return 0, nil
		}
		return p.resync()
	case stateSeq:
		switch {
		case b == syncREQ:
			p.state = stateSyncReqSeq
		case b == syncACK:
			p.state = stateAckSeq
		case Seq(b) != p.peerSeq:
			return p.resync()
		default:
			p.frame = &Frame{Seq: p.peerSeq}
			p.state = stateLenHi
		}
	case stateAckSeq:
		if Seq(b) != p.peerSeq {
			return p.resync()
		}
		p.state = stateSeq
	case stateLenHi:
		if b >= 0x80 {
			return p.resync()
		}
		p.recvLen = int(b) << 8
		p.state = stateLenLo
	case stateLenLo:
		p.frame.Data = make([]byte, p.recvLen|int(b))
		p.recvLen = 0
		p.state = stateData
		if len(p.frame.Data) == 0 {
			p.state = stateSum
		}
	case stateData:
		p.frame.Data[p.recvLen] = b
		if p.recvLen++; p.recvLen >= len(p.frame.Data) {
			p.state = stateSum
		}
	case stateSum:
		if b != checksum(p.frame.Data) {
			return p.resync()
		}
		f := p.frame
		p.frame, p.peerSeq, p.state = nil, p.peerSeq.Next(), stateSeq
		return 0, f
	}
	return 0, nil
}

func (p *parser) resync() (byte, *Frame) {
	p.state, p.frame = stateSync, nil
	return syncREQ, nil
}
