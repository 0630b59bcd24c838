package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"venue-system/internal/status"
)

// DefaultCaptureInterval is how often the loop samples the camera feed.
const DefaultCaptureInterval = 100 * time.Millisecond

// CameraDevice is one enumerated capture device.
type CameraDevice struct {
	ID    string
	Label string
}

// StreamConstraints is the open request passed to the camera collaborator.
// When Exact is set the platform must honor DeviceID; the relaxed retry
// clears it and lets the platform pick.
type StreamConstraints struct {
	DeviceID string
	Exact    bool
}

// Camera is the platform capture collaborator for kiosk deployments.
type Camera interface {
	EnumerateDevices(ctx context.Context) ([]CameraDevice, error)
	OpenStream(ctx context.Context, constraints StreamConstraints) (CameraStream, error)
}

// CameraStream is an open camera feed. Frame returns the current frame
// snapshot; the stream is exclusively owned by one capture loop until Close.
type CameraStream interface {
	Frame(ctx context.Context) ([]byte, error)
	Close() error
}

// FrameDecoder extracts QR text from a frame. ok is false for frames with
// no readable payload, which is the common case and not an error.
type FrameDecoder interface {
	Decode(frame []byte) (text string, ok bool)
}

// CaptureLoop continuously samples frames from a camera and feeds successful
// decodes into a scan session. It must be explicitly started and stopped;
// Stop always releases the stream, whatever state the loop is in.
type CaptureLoop struct {
	camera   Camera
	decoder  FrameDecoder
	session  *ScanSession
	interval time.Duration

	mu      sync.Mutex
	running bool
	stream  CameraStream
	stop    chan struct{}
	wg      sync.WaitGroup
	failure error
}

func NewCaptureLoop(camera Camera, decoder FrameDecoder, session *ScanSession, interval time.Duration) *CaptureLoop {
	if interval <= 0 {
		interval = DefaultCaptureInterval
	}
	return &CaptureLoop{
		camera:   camera,
		decoder:  decoder,
		session:  session,
		interval: interval,
	}
}

// Start acquires a camera stream and begins polling. Device selection
// prefers a rear-facing label, falls back to the first device, and retries
// with relaxed constraints when the strict open is refused.
func (l *CaptureLoop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}

	stream, err := l.openStream(ctx)
	if err != nil {
		return err
	}

	l.stream = stream
	l.running = true
	l.failure = nil
	l.stop = make(chan struct{})

	l.wg.Add(1)
	go l.run(context.WithoutCancel(ctx), stream, l.stop)

	return nil
}

// Stop ends the loop and releases the camera. Safe to call more than once
// and from abnormal exits; the stream is always closed.
func (l *CaptureLoop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stop)
	stream := l.stream
	l.stream = nil
	l.mu.Unlock()

	l.wg.Wait()
	if stream != nil {
		stream.Close()
	}
}

// Failure returns the terminal camera error that stopped the loop, if any.
func (l *CaptureLoop) Failure() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failure
}

func (l *CaptureLoop) openStream(ctx context.Context) (CameraStream, error) {
	devices, err := l.camera.EnumerateDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, status.ErrCameraNotFound
	}

	device := selectDevice(devices)

	stream, err := l.camera.OpenStream(ctx, StreamConstraints{DeviceID: device.ID, Exact: true})
	if err == nil {
		return stream, nil
	}
	if errors.Is(err, status.ErrCameraPermissionDenied) || errors.Is(err, status.ErrCameraInUse) {
		return nil, err
	}

	// Strict constraint was refused by the platform, retry relaxed.
	return l.camera.OpenStream(ctx, StreamConstraints{})
}

func (l *CaptureLoop) run(ctx context.Context, stream CameraStream, stop chan struct{}) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frame, err := stream.Frame(ctx)
			if err != nil {
				l.fail(err)
				return
			}

			raw, ok := l.decoder.Decode(frame)
			if !ok {
				continue
			}

			// Admitted runs go to completion; the guard drops overlapping
			// decodes, so firing each one off is safe.
			go l.session.HandleScan(ctx, raw)
		}
	}
}

func (l *CaptureLoop) fail(err error) {
	log.Printf("capture: session %s terminal camera failure: %v", l.session.ID, err)

	l.mu.Lock()
	l.failure = err
	if l.running {
		l.running = false
		close(l.stop)
	}
	stream := l.stream
	l.stream = nil
	l.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
}

// selectDevice prefers a rear-facing camera by label, then the first device.
func selectDevice(devices []CameraDevice) CameraDevice {
	for _, d := range devices {
		label := strings.ToLower(d.Label)
		if strings.Contains(label, "back") || strings.Contains(label, "rear") {
			return d
		}
	}
	return devices[0]
}

// CameraFailureMessage maps a camera failure to the message shown to the
// operator. Every failure is terminal for the session.
func CameraFailureMessage(err error) string {
	switch {
	case errors.Is(err, status.ErrCameraPermissionDenied):
		return "Camera access was denied. Allow camera access and restart scanning."
	case errors.Is(err, status.ErrCameraNotFound):
		return "No camera was found on this device."
	case errors.Is(err, status.ErrCameraInUse):
		return "The camera is in use by another application."
	default:
		return fmt.Sprintf("Camera playback failed: %v. Restart scanning to retry.", err)
	}
}
