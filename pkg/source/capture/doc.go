// Package capture provides a Pion WebRTC interceptor that records the frame
// sizes of incoming video streams, so a live stream can be analysed with the
// hrd package the same way as a file.
//
// # Quick Start
//
// Register the recorder factory with your Pion WebRTC API:
//
//	import (
//	    "github.com/pion/interceptor"
//	    "github.com/pion/webrtc/v4"
//	    "github.com/martinpickett/Plex-Tools/pkg/hrd"
//	    "github.com/martinpickett/Plex-Tools/pkg/source"
//	    "github.com/martinpickett/Plex-Tools/pkg/source/capture"
//	)
//
//	factory, err := capture.NewRecorderFactory(
//	    capture.WithFactoryOnStreamEnd(func(ssrc uint32, log *source.FrameLog) {
//	        s, _ := log.Schedule(0, hrd.DefaultDelay)
//	        // solve s ...
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//	i := &interceptor.Registry{}
//	i.Add(factory)
//	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i))
//
// # How It Works
//
// 1. When a remote video stream is bound (BindRemoteStream), the recorder
// starts a per-SSRC frame assembler using the negotiated clock rate. Audio
// streams pass through untouched.
//
// 2. Each RTP packet read from the stream adds its payload size to the frame
// carrying its timestamp.
//
// 3. When the stream is unbound, the recording is kept and the optional
// stream-end callback receives its FrameLog.
package capture
