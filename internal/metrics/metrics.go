package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Capture source metrics
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "screenwatch_capture_sessions_active",
		Help: "Number of running capture sessions",
	})

	captureStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screenwatch_capture_starts_total",
		Help: "Capture start attempts by result",
	}, []string{"result"})

	chunksReadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screenwatch_capture_chunks_read_total",
		Help: "Total chunks read from the capture stream",
	})

	bytesReadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screenwatch_capture_bytes_read_total",
		Help: "Total bytes read from the capture stream",
	})

	// Decode metrics
	packetsParsedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screenwatch_decoder_packets_parsed_total",
		Help: "Packets produced by the stream parser",
	}, []string{"codec"})

	packetsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screenwatch_decoder_packets_dropped_total",
		Help: "Packets parsed but superseded by a later packet in the same chunk",
	}, []string{"codec"})

	decodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screenwatch_decoder_errors_total",
		Help: "Chunks skipped because parsing or decoding failed",
	}, []string{"codec", "stage"})

	framesDecodedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screenwatch_decoder_frames_decoded_total",
		Help: "Frames decoded and published to the latest-frame cell",
	}, []string{"codec"})

	// Consumer side
	frameWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "screenwatch_frame_wait_seconds",
		Help:    "Time a caller waited for the first decoded frame",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})

	framesServedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screenwatch_frames_served_total",
		Help: "Normalized frames handed to callers, by normalization path",
	}, []string{"path"})

	// Detection metrics
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screenwatch_detector_analyses_total",
		Help: "Detector runs by result",
	}, []string{"detector", "result"})

	analysisSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "screenwatch_detector_analysis_seconds",
		Help:    "Time spent in a single detector analysis",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
	}, []string{"detector"})

	gaugeLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "screenwatch_gauge_level",
		Help: "Most recently detected gauge level",
	})

	// Sink metrics
	sinkPublishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screenwatch_sink_publishes_total",
		Help: "State publishes by sink and result",
	}, []string{"sink", "result"})
)

// Normalization paths reported by RecordFrameServed.
const (
	PathDirect     = "direct"
	PathCropResize = "crop_resize"
	PathFallback   = "fallback"
)

// SetSessionActive flips the active session gauge.
func SetSessionActive(active bool) {
	if active {
		sessionsActive.Inc()
		return
	}
	sessionsActive.Dec()
}

// RecordCaptureStart counts a start attempt.
func RecordCaptureStart(err error) {
	if err != nil {
		captureStartsTotal.WithLabelValues("error").Inc()
		return
	}
	captureStartsTotal.WithLabelValues("ok").Inc()
}

// RecordChunk counts one chunk read from the capture source.
func RecordChunk(n int) {
	chunksReadTotal.Inc()
	bytesReadTotal.Add(float64(n))
}

// RecordPackets counts parsed packets and how many were skipped in favor of the last one.
func RecordPackets(codec string, parsed, dropped int) {
	packetsParsedTotal.WithLabelValues(codec).Add(float64(parsed))
	if dropped > 0 {
		packetsDroppedTotal.WithLabelValues(codec).Add(float64(dropped))
	}
}

// IncrementDecodeError counts a skipped chunk. stage is "parse" or "decode".
func IncrementDecodeError(codec, stage string) {
	decodeErrorsTotal.WithLabelValues(codec, stage).Inc()
}

// IncrementFramesDecoded counts a frame published to the cell.
func IncrementFramesDecoded(codec string) {
	framesDecodedTotal.WithLabelValues(codec).Inc()
}

// ObserveFrameWait records how long a caller blocked on the first frame.
func ObserveFrameWait(seconds float64) {
	frameWaitSeconds.Observe(seconds)
}

// RecordFrameServed counts a normalized frame by the path that produced it.
func RecordFrameServed(path string) {
	framesServedTotal.WithLabelValues(path).Inc()
}

// RecordAnalysis counts a detector run and its duration.
func RecordAnalysis(detector string, seconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	analysesTotal.WithLabelValues(detector, result).Inc()
	analysisSeconds.WithLabelValues(detector).Observe(seconds)
}

// SetGaugeLevel exports the latest gauge level.
func SetGaugeLevel(level int) {
	gaugeLevel.Set(float64(level))
}

// RecordSinkPublish counts a publish attempt for a sink.
func RecordSinkPublish(sink string, err error) {
	if err != nil {
		sinkPublishesTotal.WithLabelValues(sink, "error").Inc()
		return
	}
	sinkPublishesTotal.WithLabelValues(sink, "ok").Inc()
}
