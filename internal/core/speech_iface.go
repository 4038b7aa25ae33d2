package core

// Segment is one recognition result. Only Final segments are stable.
type Segment struct {
	Text  string
	Final bool
}

// Recognizer is the platform speech-recognition capability.
// Start and Stop are idempotent. Callbacks may run on any goroutine.
type Recognizer interface {
	// Start returns domain.ErrRecognitionUnsupported when no backend exists.
	Start() error
	Stop()
	OnResult(func(Segment))
	// OnEnd fires when recognition stops on its own.
	OnEnd(func())
	// OnError reports failures; domain.ErrRecognitionPermissionDenied is terminal.
	OnError(func(error))
}
