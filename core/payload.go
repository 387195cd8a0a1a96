package core

import "context"

type Payload struct {
	ID   string `json:"id"`
	Blob []byte `json:"blob"`
}

type PayloadStore interface {
	Persist(ctx context.Context, payloads []*Payload) error
	Restore(ctx context.Context) ([][]byte, error)
	Clear(ctx context.Context) error
}

type (
	DoneFunc    func(ctx context.Context, err error)
	RestoreFunc func(ctx context.Context, blobs [][]byte, err error)
)

// CallbackPayloadStore is the callback flavour of PayloadStore. Each callback
// receives the context captured when the operation was started.
type CallbackPayloadStore interface {
	Persist(ctx context.Context, payloads []*Payload, done DoneFunc)
	Restore(ctx context.Context, done RestoreFunc)
	Clear(ctx context.Context, done DoneFunc)
}
