package services

import (
	"encoding/json"
	"strings"

	"shuttle/internal/domain"
	"shuttle/internal/domain/models"

	"github.com/fxamacker/cbor/v2"
)

// SnapshotVersion is bumped whenever the snapshot layout changes incompatibly.
const SnapshotVersion = 1

// SnapshotCodec serializes snapshots for the store. The codec name is stored
// next to the blob so either encoding can be read back.
type SnapshotCodec interface {
	Name() string
	Marshal(s models.Snapshot) ([]byte, error)
	Unmarshal(data []byte, s *models.Snapshot) error
}

type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(s models.Snapshot) ([]byte, error) { return json.Marshal(s) }

func (JSONCodec) Unmarshal(data []byte, s *models.Snapshot) error { return json.Unmarshal(data, s) }

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	opts := cbor.CoreDetEncOptions()
	// keep sub-second precision on timestamps
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	cborEnc, err = opts.EncMode()
	if err != nil {
		panic("snapshot: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("snapshot: CBOR decoder initialization failed: " + err.Error())
	}
}

// CBORCodec is the compact deterministic encoding.
type CBORCodec struct{}

func (CBORCodec) Name() string { return "cbor" }

func (CBORCodec) Marshal(s models.Snapshot) ([]byte, error) { return cborEnc.Marshal(s) }

func (CBORCodec) Unmarshal(data []byte, s *models.Snapshot) error { return cborDec.Unmarshal(data, s) }

// CodecByName resolves the configured codec. Empty means JSON.
func CodecByName(name string) (SnapshotCodec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSONCodec{}, nil
	case "cbor":
		return CBORCodec{}, nil
	default:
		return nil, domain.ValidationError{Field: "snapshot_codec", Msg: "unknown codec " + name}
	}
}
