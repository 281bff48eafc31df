package link

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// PeerRef is a reference to a peer serving a mailbox.
type PeerRef struct {
	// Type is the peer type (service kind).
	Type string
	// ID is unique ID of the device.
	ID string
}

// Name retrieves the name from ref.
func (r PeerRef) Name() string {
	return r.Type + "/" + r.ID
}

// IsValid indicates PeerRef is valid.
func (r PeerRef) IsValid() bool {
	return r.Type != "" && r.ID != ""
}

// PeerMeta provides metadata of a peer.
type PeerMeta struct {
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// PeerInfo provides information of a peer.
type PeerInfo struct {
	Ref  PeerRef
	Meta PeerMeta
}
