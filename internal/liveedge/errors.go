package liveedge

import "errors"

var (
	errNoObservation = errors.New("no live-edge observation yet for this playlist")
	errStale         = errors.New("live-edge observation is stale")
)
