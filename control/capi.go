//go:build cgo

// C-linkage entry points for the process-boundary control surface
// (spec.md §4.F). Built only as part of a `-buildmode=c-archive` or
// `-buildmode=c-shared` artifact; every exported function translates
// C inputs into calls against the pure-Go API in api.go and encodes
// the result as the five-value Result enum.
package control

/*
#include <stdint.h>
#include <stdlib.h>
#include <time.h>

// positional_cb mirrors the "(data, timestamp, u32, u32)" callback
// shape from spec.md §4.E/§9; dynamic_cb mirrors "(data, timestamp,
// user_ctx)". Both receive the payload as a pointer+length pair
// since C has no slice type.
typedef void (*positional_cb)(const unsigned char *data, size_t len, int64_t unix_nanos, uint32_t sequence, uint32_t stream_id);
typedef void (*dynamic_cb)(const unsigned char *data, size_t len, int64_t unix_nanos, void *user_ctx);

typedef void (*log_sink_cb)(int level, const char *message);

static void call_positional_cb(positional_cb fn, const unsigned char *data, size_t len, int64_t unix_nanos, uint32_t sequence, uint32_t stream_id) {
	fn(data, len, unix_nanos, sequence, stream_id);
}

static void call_dynamic_cb(dynamic_cb fn, const unsigned char *data, size_t len, int64_t unix_nanos, void *user_ctx) {
	fn(data, len, unix_nanos, user_ctx);
}

static void call_log_sink_cb(log_sink_cb fn, int level, const char *message) {
	fn(level, message);
}
*/
import "C"

import (
	"time"
	"unsafe"

	"github.com/skalow/daqrx/daqlog"
	"github.com/skalow/daqrx/receiver"
)

//export start_receiver
func start_receiver(iface, ip *C.char, frameSize, framesPerBlock, nofBlocks, nofWorkers C.int) C.int {
	cfg := receiver.Config{
		Interface:      C.GoString(iface),
		IP:             C.GoString(ip),
		FrameSize:      int(frameSize),
		FramesPerBlock: int(framesPerBlock),
		NofBlocks:      int(nofBlocks),
		NofWorkers:     int(nofWorkers),
	}
	return C.int(StartReceiver(cfg))
}

//export start_receiver_threaded
func start_receiver_threaded(iface, ip *C.char, frameSize, framesPerBlock, nofBlocks, nofWorkers C.int) C.int {
	cfg := receiver.Config{
		Interface:      C.GoString(iface),
		IP:             C.GoString(ip),
		FrameSize:      int(frameSize),
		FramesPerBlock: int(framesPerBlock),
		NofBlocks:      int(nofBlocks),
		NofWorkers:     int(nofWorkers),
	}
	return C.int(StartReceiverThreaded(cfg))
}

//export stop_receiver
func stop_receiver() C.int {
	return C.int(StopReceiver())
}

//export add_receiver_port
func add_receiver_port(port C.int) C.int {
	return C.int(AddReceiverPort(uint16(port)))
}

//export load_consumer
func load_consumer(module, symbol *C.char, outName *C.char, outNameLen C.int) C.int {
	name, res := LoadConsumer(C.GoString(module), C.GoString(symbol))
	if res == Success {
		copyIntoCBuffer(name, outName, outNameLen)
	}
	return C.int(res)
}

//export initialise_consumer
func initialise_consumer(name, jsonConfig *C.char) C.int {
	return C.int(InitialiseConsumer(C.GoString(name), C.GoString(jsonConfig)))
}

//export start_consumer
func start_consumer(name *C.char, cb C.positional_cb) C.int {
	goName := C.GoString(name)
	fn := func(data []byte, ts time.Time, sequence, streamID uint32) {
		var ptr *C.uchar
		if len(data) > 0 {
			ptr = (*C.uchar)(unsafe.Pointer(&data[0]))
		}
		C.call_positional_cb(cb, ptr, C.size_t(len(data)), C.int64_t(ts.UnixNano()), C.uint32_t(sequence), C.uint32_t(streamID))
	}
	return C.int(StartConsumer(goName, fn))
}

//export start_consumer_dynamic
func start_consumer_dynamic(name *C.char, cb C.dynamic_cb, userCtx unsafe.Pointer) C.int {
	goName := C.GoString(name)
	fn := func(data []byte, ts time.Time, ctx any) {
		var ptr *C.uchar
		if len(data) > 0 {
			ptr = (*C.uchar)(unsafe.Pointer(&data[0]))
		}
		C.call_dynamic_cb(cb, ptr, C.size_t(len(data)), C.int64_t(ts.UnixNano()), userCtx)
	}
	return C.int(StartConsumerDynamic(goName, fn, userCtx))
}

//export stop_consumer
func stop_consumer(name *C.char) C.int {
	return C.int(StopConsumer(C.GoString(name)))
}

//export attach_logger
func attach_logger(cb C.log_sink_cb) {
	if cb == nil {
		AttachLogger(nil)
		return
	}
	AttachLogger(func(level daqlog.Level, message string) {
		cMsg := C.CString(message)
		defer C.free(unsafe.Pointer(cMsg))
		C.call_log_sink_cb(cb, C.int(level), cMsg)
	})
}

// copyIntoCBuffer copies s, truncated to fit, into a caller-supplied
// C buffer. Used to hand LoadConsumer's generated name back across
// the C boundary without allocating on the C side.
func copyIntoCBuffer(s string, buf *C.char, bufLen C.int) {
	if buf == nil || bufLen <= 0 {
		return
	}
	n := int(bufLen) - 1
	if n > len(s) {
		n = len(s)
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(buf)), int(bufLen))
	copy(dst, s[:n])
	dst[n] = 0
}
