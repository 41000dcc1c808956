package job

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Request is what the queue façade pushes: a job name, its encoded
// parameters, and the bookkeeping fields the worker pool needs to
// enforce delay and retry budget across re-pushes.
type Request struct {
	Name       string    `msgpack:"name"`
	Parameters []byte    `msgpack:"parameters"`
	QueuedAt   time.Time `msgpack:"queuedAt"`
	Attempts   int       `msgpack:"attempts"`
	DelayUntil time.Time `msgpack:"delayUntil"`
	// Queue is the logical queue this job was pushed to. It travels in
	// the envelope, not just driver.PushOptions, so a retry re-push
	// (worker.Pool.retry/requeueUnchanged) lands the job back on the
	// same queue it came from.
	Queue string `msgpack:"queue"`
}

// EncodeRequest serializes a Request into the opaque buffer a driver
// persists and later hands back through its iterator. The encoding is a
// self-describing msgpack map, so decoders tolerate field additions.
func EncodeRequest(req Request) ([]byte, error) {
	buf, err := msgpack.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("job: encode request %q: %w", req.Name, err)
	}

	return buf, nil
}

// DecodeRequest parses a buffer produced by EncodeRequest.
func DecodeRequest(buffer []byte) (Request, error) {
	var req Request
	if err := msgpack.Unmarshal(buffer, &req); err != nil {
		return Request{}, fmt.Errorf("job: decode request: %w", err)
	}

	return req, nil
}
