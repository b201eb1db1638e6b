package domain

import (
	"bytes"
	"time"
)

// Artifact is the newline-joined publish payload plus the metadata used for
// the commit message.
type Artifact struct {
	Content     []byte
	Count       int
	GeneratedAt time.Time
}

// NewArtifact joins addrs with "\n" and terminates the last line.
func NewArtifact(addrs []Address, generatedAt time.Time) Artifact {
	var buf bytes.Buffer
	for _, addr := range addrs {
		buf.WriteString(string(addr))
		buf.WriteByte('\n')
	}
	return Artifact{
		Content:     buf.Bytes(),
		Count:       len(addrs),
		GeneratedAt: generatedAt,
	}
}
