package rtc

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Howdy/internal/core"
)

type Options struct {
	STUNURLs []string
	// IncludeLoopback gathers 127.0.0.1 candidates; used for same-host calls.
	IncludeLoopback bool
}

// Factory builds PeerConnections that share one pion API: default codecs,
// default interceptors and zerolog-backed pion logging.
type Factory struct {
	api *webrtc.API
	cfg webrtc.Configuration
}

func NewFactory(opts Options) (*Factory, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{LoggerFactory: newLoggerFactory()}
	se.SetIncludeLoopbackCandidate(opts.IncludeLoopback)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(se),
	)

	cfg := webrtc.Configuration{}
	if len(opts.STUNURLs) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: opts.STUNURLs}}
	}
	return &Factory{api: api, cfg: cfg}, nil
}

func (f *Factory) NewPeerSession() (core.PeerSession, error) {
	return NewWebRTCConnection(f.api, f.cfg)
}
