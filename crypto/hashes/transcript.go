package hashes

// TranscriptBuffer holds handshake messages received before the hash
// algorithm is known.
type TranscriptBuffer struct {
	buf    []byte
	retain bool
}

// NewTranscriptBuffer returns an empty buffer. If retain is set, the raw
// messages stay available from the started Transcript (needed when the
// transcript must later be re-hashed, e.g. for client authentication).
func NewTranscriptBuffer(retain bool) *TranscriptBuffer {
	return &TranscriptBuffer{retain: retain}
}

func (b *TranscriptBuffer) Add(msg []byte) {
	b.buf = append(b.buf, msg...)
}

// Start hashes everything buffered so far with p and returns the running
// transcript.
func (b *TranscriptBuffer) Start(p Provider) *Transcript {
	ctx := p.Start()
	ctx.Update(b.buf)
	t := &Transcript{provider: p, ctx: ctx}
	if b.retain {
		t.retained = append([]byte(nil), b.buf...)
		t.retain = true
	}
	return t
}

// Transcript is a running digest over every handshake message added to it.
type Transcript struct {
	provider Provider
	ctx      Context
	retained []byte
	retain   bool
}

func (t *Transcript) Algorithm() HashAlgorithm { return t.provider.Algorithm() }

func (t *Transcript) Add(msg []byte) {
	t.ctx.Update(msg)
	if t.retain {
		t.retained = append(t.retained, msg...)
	}
}

// Current returns the digest of the transcript so far; the transcript keeps
// accepting messages afterwards.
func (t *Transcript) Current() Output {
	return t.ctx.ForkFinish()
}

// CurrentWith returns the digest of the transcript followed by extra, without
// adding extra to the transcript.
func (t *Transcript) CurrentWith(extra []byte) Output {
	f := t.ctx.Fork()
	f.Update(extra)
	return f.Finish()
}

// Fork returns an independent copy of the transcript.
func (t *Transcript) Fork() *Transcript {
	out := &Transcript{provider: t.provider, ctx: t.ctx.Fork(), retain: t.retain}
	if t.retain {
		out.retained = append([]byte(nil), t.retained...)
	}
	return out
}

// Buffered returns the raw messages when the transcript was started with
// retention, or nil otherwise.
func (t *Transcript) Buffered() []byte {
	if !t.retain {
		return nil
	}
	return append([]byte(nil), t.retained...)
}

// StopRetaining drops the raw messages.
func (t *Transcript) StopRetaining() {
	t.retain = false
	t.retained = nil
}

func (t *Transcript) Finish() Output {
	return t.ctx.Finish()
}
